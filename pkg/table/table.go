package table

import (
	"fmt"
	"strconv"
)

// Record maps a feature name to its value.
type Record map[string]float64

// Table is an ordered set of rows sharing the same columns. Cells are kept
// as raw text so columns that are not scored pass through unchanged.
type Table struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: make([][]string, 0)}
}

// FromRecord builds a one-row table from rec with the columns in the given order.
// Names absent from rec produce empty cells.
func FromRecord(rec Record, columns []string) *Table {
	t := New(columns...)
	row := make([]string, len(columns))
	for i, name := range columns {
		if v, ok := rec[name]; ok {
			row[i] = FormatFloat(v)
		}
	}
	t.Rows = append(t.Rows, row)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the first column with the given name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Check reports an *InputFormatError when a column name repeats or a row
// does not have exactly one cell per column.
func (t *Table) Check() error {
	seen := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if j, ok := seen[c]; ok {
			return &InputFormatError{Cause: fmt.Errorf("duplicate column %q at positions %d and %d", c, j+1, i+1)}
		}
		seen[c] = i
	}

	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return &InputFormatError{Cause: fmt.Errorf("row %d: expected %d fields, saw %d", i+1, len(t.Columns), len(row))}
		}
	}
	return nil
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.Index(name) >= 0
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := New(t.Columns...)
	c.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(r))
		copy(row, r)
		c.Rows[i] = row
	}
	return c
}

// Head returns a copy of the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	h := &Table{Columns: t.Columns, Rows: t.Rows[:n]}
	return h.Clone()
}

// SetColumn sets values as the named column, overwriting it in place when it
// exists and appending it otherwise. len(values) must equal the row count.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}

	i := t.Index(name)
	if i < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], values[r])
		}
		return nil
	}

	for r := range t.Rows {
		t.Rows[r][i] = values[r]
	}
	return nil
}

// FormatFloat renders v with the shortest representation that parses back to v.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
