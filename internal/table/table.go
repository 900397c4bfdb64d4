// Package table reads header-first CSV files into an in-memory table and
// validates the columns an analysis requires.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MissingColumnsError reports required columns absent from a source.
type MissingColumnsError struct {
	Source  string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Columns, ", "))
}

// Table is a parsed CSV file. Cells are kept as raw strings; parsing is left
// to the consumer so a malformed field only affects the group it belongs to.
type Table struct {
	Source  string
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// Open reads the CSV file at path.
func Open(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return Read(path, file)
}

// Read parses CSV from r. The first record is the header.
func Read(source string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}

	t := &Table{Source: source, index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Columns = append(t.Columns, name)
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// Has reports whether the table carries column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Require fails with a *MissingColumnsError naming every absent column.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Source: t.Source, Columns: missing}
	}
	return nil
}

// Get returns the trimmed cell of row for column, or "" when the column or
// cell is absent.
func (t *Table) Get(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Lookup is Get plus whether the column exists.
func (t *Table) Lookup(row []string, column string) (string, bool) {
	if !t.Has(column) {
		return "", false
	}
	return t.Get(row, column), true
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
