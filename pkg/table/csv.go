package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// FileName is the name under which batch results are offered for download.
	FileName = "batch_predictions.csv"
	// ContentType is the MIME type of the delimited export.
	ContentType = "text/csv"

	delimiter = ','
	utf8BOM   = "\ufeff"
)

// InputFormatError is returned when an uploaded table cannot be parsed.
type InputFormatError struct {
	Cause error
}

func (e *InputFormatError) Error() string {
	return fmt.Sprintf("error reading file: %v", e.Cause)
}

func (e *InputFormatError) Unwrap() error {
	return e.Cause
}

// ReadCSV parses a comma-delimited table with a header row. Rows shorter than
// the header are padded with empty cells; wider rows are an error.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InputFormatError{Cause: errors.New("no columns to parse from file")}
		}
		return nil, &InputFormatError{Cause: err}
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if len(header) == 1 && header[0] == "" {
		return nil, &InputFormatError{Cause: errors.New("no columns to parse from file")}
	}

	t := New(header...)
	if err := t.Check(); err != nil {
		return nil, err
	}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &InputFormatError{Cause: err}
		}

		if len(rec) > len(header) {
			return nil, &InputFormatError{
				Cause: fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(rec)),
			}
		}

		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// WriteCSV writes the header and rows of t to w without an index column.
func WriteCSV(w io.Writer, t *Table) error {
	if t == nil {
		return errors.New("table required")
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}

// ToDelimitedText serializes t as UTF-8 comma-delimited text.
func ToDelimitedText(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
