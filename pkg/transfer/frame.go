// Package transfer holds the row-oriented tables that are copied into PostgreSQL
package transfer

import (
	"github.com/pkg/errors"
)

// Frame is a row-oriented table. Every row has one value per column, in column order.
// A nil value is written as SQL NULL.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Validate checks that the frame has named, unique columns and rectangular rows.
func (f *Frame) Validate() error {
	if f == nil || len(f.Columns) == 0 {
		return errors.New("frame has no columns")
	}
	seen := make(map[string]struct{}, len(f.Columns))
	for i, c := range f.Columns {
		if c == "" {
			return errors.Errorf("column %d has an empty name", i)
		}
		if _, ok := seen[c]; ok {
			return errors.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return errors.Errorf("row %d has %d values, expected %d", i, len(row), len(f.Columns))
		}
	}
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Select projects the frame onto the given columns, in the given order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		return f, nil
	}
	index := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		index[c] = i
	}
	positions := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := index[c]
		if !ok {
			return nil, errors.Errorf("column %q not found in frame", c)
		}
		positions[i] = pos
	}

	out := &Frame{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]any, 0, len(f.Rows)),
	}
	for _, row := range f.Rows {
		projected := make([]any, len(positions))
		for i, pos := range positions {
			projected[i] = row[pos]
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, nil
}

// Records returns the rows keyed by column name.
func (f *Frame) Records() []map[string]any {
	records := make([]map[string]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		record := make(map[string]any, len(f.Columns))
		for i, c := range f.Columns {
			record[c] = row[i]
		}
		records = append(records, record)
	}
	return records
}
