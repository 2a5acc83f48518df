package transfer

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const defaultAnnotation = "#default"

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening csv %q", path)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading csv %q", path)
	}
	return frame, nil
}

// ReadCSV parses an InfluxDB CSV export, either plain or annotated.
//
// Lines starting with '#' are annotations. A #default annotation supplies the value of
// empty cells until the next annotation block; other annotations are skipped. Columns with
// an empty header, such as the leading column of annotated exports, are dropped.
//
// A multi-table export starts each table with annotations or a blank line followed by a
// header row. Every table must have the same column names as the first one, in any
// order; rows are mapped by name. Remaining empty cells are returned as nil so they load
// as NULL.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		frame        *Frame
		table        tableLayout
		defaults     []string
		expectHeader = true
		inAnnotation bool
		lastLine     int
		tables       int
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing csv")
		}
		line, _ := cr.FieldPos(0)
		if lastLine > 0 && line > lastLine+1 {
			// the reader skips blank lines, so a gap in line numbers separates tables
			expectHeader = true
		}
		lastLine = recordEndLine(cr, record)

		if strings.HasPrefix(strings.TrimSpace(record[0]), "#") {
			if !inAnnotation {
				defaults = nil
			}
			inAnnotation = true
			expectHeader = true
			if strings.TrimSpace(record[0]) == defaultAnnotation {
				defaults = record
			}
			continue
		}
		inAnnotation = false
		if isBlank(record) {
			continue
		}

		if frame == nil {
			table = newTableLayout(record)
			frame = &Frame{Columns: table.names}
			expectHeader = false
			tables++
			continue
		}
		if expectHeader || sameRecord(record, table.header) {
			next := newTableLayout(record)
			tables++
			if table, err = next.projectOnto(frame.Columns); err != nil {
				return nil, errors.Wrapf(err, "table %d", tables)
			}
			expectHeader = false
			continue
		}

		row := make([]any, len(table.positions))
		for j, i := range table.positions {
			switch {
			case i < len(record) && record[i] != "":
				row[j] = record[i]
			case i < len(defaults) && defaults[i] != "":
				row[j] = defaults[i]
			}
		}
		frame.Rows = append(frame.Rows, row)
	}

	if frame == nil {
		return nil, errors.New("csv has no header")
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// tableLayout maps frame columns to record positions for one table of an export.
type tableLayout struct {
	header    []string
	names     []string
	positions []int
}

func newTableLayout(header []string) tableLayout {
	l := tableLayout{header: header}
	for i, name := range header {
		if name = strings.TrimSpace(name); name != "" {
			l.names = append(l.names, name)
			l.positions = append(l.positions, i)
		}
	}
	return l
}

// projectOnto reorders the layout to follow columns. The layout must carry exactly those columns.
func (l tableLayout) projectOnto(columns []string) (tableLayout, error) {
	index := make(map[string]int, len(l.names))
	for j, name := range l.names {
		index[name] = l.positions[j]
	}
	if len(index) != len(columns) {
		return tableLayout{}, errors.Errorf("header %v does not match columns %v", l.names, columns)
	}
	out := tableLayout{header: l.header, names: columns, positions: make([]int, len(columns))}
	for j, name := range columns {
		i, ok := index[name]
		if !ok {
			return tableLayout{}, errors.Errorf("header %v does not match columns %v", l.names, columns)
		}
		out.positions[j] = i
	}
	return out, nil
}

func recordEndLine(cr *csv.Reader, record []string) int {
	last := len(record) - 1
	line, _ := cr.FieldPos(last)
	return line + strings.Count(record[last], "\n")
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sameRecord(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}
