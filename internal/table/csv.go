package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Read parses delimited text with a header line. Quoted fields follow the
// usual CSV rules with lazy quotes allowed; blank lines are skipped. Rows
// shorter than the header are padded with empty values, longer rows are an
// error. Duplicate header names get .1, .2 ... suffixes.
func Read(r io.Reader, name string, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("table %s: empty input", name)
	}
	if err != nil {
		return nil, fmt.Errorf("table %s: read header: %w", name, err)
	}
	cols := dedupe(header)
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if len(rec) > len(cols) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("table %s: line %d has %d fields, header has %d", name, line, len(rec), len(cols))
		}
		rows = append(rows, rec)
	}
	return New(name, cols, rows), nil
}

func dedupe(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		n := seen[h]
		seen[h] = n + 1
		if n > 0 {
			h = h + "." + strconv.Itoa(n)
		}
		out[i] = h
	}
	return out
}

// WriteCSV writes the table as comma-separated text. The first column is an
// unnamed 0-based row index, matching the layout downstream loaders expect.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rec := make([]string, len(t.Columns)+1)
	copy(rec[1:], t.Columns)
	if err := cw.Write(rec); err != nil {
		return err
	}
	for i, row := range t.Rows {
		rec[0] = strconv.Itoa(i)
		copy(rec[1:], row)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
