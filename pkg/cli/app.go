package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/pricer/pkg/config"
	"github.com/mchmarny/pricer/pkg/data"
	"github.com/mchmarny/pricer/pkg/logging"
	"github.com/mchmarny/pricer/pkg/metrics"
	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "pricer"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat           = formatJSON
	stdout       io.Writer = os.Stdout

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level [debug, info, warn, error]",
		Sources: cli.EnvVars("PRICER_LOG_LEVEL"),
	}

	dbFlag = &cli.StringFlag{
		Name:    "db",
		Usage:   "Path to the Sqlite history file or a postgres:// connection string",
		Sources: cli.EnvVars("PRICER_DB"),
	}

	modelFlag = &cli.StringFlag{
		Name:    "model",
		Usage:   "Path to a model artifact (default: embedded Boston Housing model)",
		Sources: cli.EnvVars("PRICER_MODEL"),
	}

	configDirFlag = &cli.StringFlag{
		Name:    "config-dir",
		Usage:   "Directory holding config.yaml and the history database (default: ~/.pricer)",
		Sources: cli.EnvVars("PRICER_CONFIG_DIR"),
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger(config.DefaultLogLevel)

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir     string
	Config  *config.Config
	DB      *sql.DB
	Metrics *metrics.Metrics
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Housing price predictions for single records and CSV batches",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			debugFlag,
			logLevelFlag,
			dbFlag,
			modelFlag,
			configDirFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			predictCmd,
			batchCmd,
			schemaCmd,
			historyCmd,
			modelCmd,
			authCmd,
			serverCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			dir := cmd.String(configDirFlag.Name)
			if dir == "" {
				dir = getHomeDir()
			}

			c, err := config.ReadOrCreate(dir)
			if err != nil {
				return ctx, fmt.Errorf("reading config: %w", err)
			}
			applyFlags(cmd, c)

			cfg := &appConfig{
				Dir:     dir,
				Config:  c,
				Metrics: metrics.New(),
			}

			if c.History {
				dsn := c.DB
				if dsn == "" {
					dsn = filepath.Join(dir, data.DataFileName)
				}
				if err := data.Init(dsn); err != nil {
					return ctx, fmt.Errorf("initializing database: %w", err)
				}
				if cfg.DB, err = data.GetDB(dsn); err != nil {
					return ctx, fmt.Errorf("opening database: %w", err)
				}
			}

			cmd.Root().Metadata[appConfigKey] = cfg
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

// applyFlags lets global flags override values from the config file.
func applyFlags(cmd *cli.Command, c *config.Config) {
	if v := cmd.String(dbFlag.Name); v != "" {
		c.DB = v
	}
	if v := cmd.String(modelFlag.Name); v != "" {
		c.ModelPath = v
	}
	if v := cmd.String(logLevelFlag.Name); v != "" {
		c.LogLevel = v
	}
	if cmd.Bool(debugFlag.Name) {
		c.LogLevel = "debug"
	}
	logging.SetDefaultCLILogger(c.LogLevel)

	f := strings.ToLower(cmd.String(formatFlag.Name))
	if f == formatYAML || f == "yml" {
		outputFormat = formatYAML
	} else {
		outputFormat = formatJSON
	}
}

// newRunner loads the configured model and binds it to the Boston schema.
func newRunner(c *config.Config, opts ...predict.Option) (*predict.Runner, error) {
	m, err := model.Load(c.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	a, err := predict.NewAdapter(m, schema.Boston())
	if err != nil {
		return nil, fmt.Errorf("binding model: %w", err)
	}

	info := a.Model()
	slog.Debug("model ready", "name", info.Name, "version", info.Version, "source", info.Source)
	return predict.NewRunner(a, opts...)
}

// newScorer loads the configured model and wires it to metrics and history.
func newScorer(cfg *appConfig, opts ...predict.Option) (*scorer, error) {
	runner, err := newRunner(cfg.Config, opts...)
	if err != nil {
		return nil, err
	}
	return &scorer{runner: runner, db: cfg.DB, metrics: cfg.Metrics}, nil
}

func getHomeDir() string {
	dir, created, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	if created {
		slog.Debug("created home dir", "path", dir)
	}
	return dir
}

func encode(v any) error {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(stdout).Encode(v)
	}
	e := json.NewEncoder(stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
