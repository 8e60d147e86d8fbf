package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"

	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`
	selectVersion = `SELECT COALESCE(MAX(version), 0) FROM schema_version`
	insertVersion = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// IsPostgres reports whether dsn points to a PostgreSQL server rather than a
// local SQLite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Init creates or migrates the history schema for the given database.
func Init(dsn string) error {
	if dsn == "" {
		return errors.New("database path not specified")
	}

	db, err := GetDB(dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// GetDB opens a connection pool for dsn: a PostgreSQL URL or a SQLite file path.
func GetDB(dsn string) (*sql.DB, error) {
	driver := dialectSQLite
	if IsPostgres(dsn) {
		driver = dialectPostgres
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer for the local file
	if driver == dialectSQLite {
		conn.SetMaxOpenConns(1)
	}
	return conn, nil
}

func dialect(db *sql.DB) string {
	if _, ok := db.Driver().(*pq.Driver); ok {
		return dialectPostgres
	}
	return dialectSQLite
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func rebind(db *sql.DB, q string) string {
	if dialect(db) != dialectPostgres {
		return q
	}

	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(createVersionTable); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRow(selectVersion).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	dir := path.Join("sql", dialect(db))
	entries, err := fs.ReadDir(f, dir)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return fmt.Errorf("invalid migration name %s: %w", e.Name(), err)
		}
		if version <= current {
			continue
		}

		b, err := f.ReadFile(path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", e.Name(), err)
		}

		if err := applyMigration(db, version, string(b)); err != nil {
			return fmt.Errorf("applying migration %s: %w", e.Name(), err)
		}
		slog.Debug("migration applied", "version", version, "dialect", dialect(db))
	}

	return nil
}

func applyMigration(db *sql.DB, version int, ddl string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ddl); err != nil {
		return err
	}
	if _, err := tx.Exec(rebind(db, insertVersion), version, time.Now().UTC().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}
