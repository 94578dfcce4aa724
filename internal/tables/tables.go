// Package tables reads the flat delimited tables loaded at startup.
package tables

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/scoreerr"
)

// Table is a parsed delimited file with a header row.
type Table struct {
	Path   string
	Header []string
	Rows   []Row

	index map[string]int
}

// Row is a single data row. Line is the 1-based line in the source file.
type Row struct {
	Line   int
	Values []string

	table *Table
}

// Get returns the trimmed value of column col, or "" when the column is absent.
func (r Row) Get(col string) string {
	i, ok := r.table.index[col]
	if !ok || i >= len(r.Values) {
		return ""
	}
	return strings.TrimSpace(r.Values[i])
}

// Float parses column col as a finite float64.
func (r Row) Float(col string) (float64, error) {
	raw := r.Get(col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, r.Malformed("column %s: %q is not a number", col, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, r.Malformed("column %s: %q is not finite", col, raw)
	}
	return v, nil
}

// Malformed returns a MalformedTableRow configuration error located at this row.
func (r Row) Malformed(format string, args ...any) error {
	return scoreerr.Configuration(scoreerr.MalformedTableRow,
		r.table.Path+":"+strconv.Itoa(r.Line), format, args...)
}

// Options controls parsing.
type Options struct {
	// Delimiter separates fields; defaults to ','.
	Delimiter rune
	// Required lists header columns that must be present.
	Required []string
}

// Read parses the delimited file at path. A missing file or a file without
// data rows is a MissingWeightTable error; structural problems are
// MalformedTableRow errors.
func Read(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, path, "table file not found")
		}
		return nil, eris.Wrapf(err, "tables: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := Parse(f, path, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadOptional is Read, except that a missing file yields (nil, nil).
func ReadOptional(path string, opts Options) (*Table, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return Read(path, opts)
}

// Parse reads a table from r. name is used in error messages.
func Parse(r io.Reader, name string, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, name, "table is empty")
	}
	if err != nil {
		return nil, malformed(name, err)
	}

	t := &Table{Path: name, index: make(map[string]int, len(header))}
	for i, h := range header {
		col := strings.ToLower(strings.TrimSpace(h))
		t.Header = append(t.Header, col)
		t.index[col] = i
	}
	for _, col := range opts.Required {
		if _, ok := t.index[col]; !ok {
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, name,
				"missing required column %q (have %s)", col, strings.Join(t.Header, ","))
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(name, err)
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Values: rec, table: t})
	}

	if len(t.Rows) == 0 {
		return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, name, "table has no data rows")
	}
	return t, nil
}

func malformed(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &scoreerr.Error{
			Kind:    scoreerr.KindConfiguration,
			Code:    scoreerr.MalformedTableRow,
			Subject: name + ":" + strconv.Itoa(pe.Line),
			Err:     pe.Err,
		}
	}
	return &scoreerr.Error{Kind: scoreerr.KindConfiguration, Code: scoreerr.MalformedTableRow, Subject: name, Err: err}
}
