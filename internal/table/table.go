// Package table holds delimited reference files in memory and provides the
// column primitives the merge routines are built from: rename, drop, select,
// derive and left join.
//
// Tables are values: every operation returns a new *Table and never mutates
// the rows of its inputs, so a loaded table can safely feed several routines.
package table

import (
	"fmt"
	"strings"
)

// MultiValueSeparator joins right-hand values when a left join finds more
// than one matching row.
const MultiValueSeparator = "|"

// Table is an ordered sequence of rows sharing one header. Every row has
// exactly len(Columns) cells; a missing value is the empty string.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ErrMissingColumn reports an expected column that is absent from a table.
type ErrMissingColumn struct {
	Table  string
	Column string
}

func (e ErrMissingColumn) Error() string {
	return fmt.Sprintf("table %s: missing column %q", e.Table, e.Column)
}

// New builds a table, padding short rows so every row matches the header width.
func New(name string, columns []string, rows [][]string) *Table {
	t := &Table{Name: name, Columns: append([]string(nil), columns...), Rows: make([][]string, len(rows))}
	for i, r := range rows {
		if len(r) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, r)
			r = padded
		}
		t.Rows[i] = r
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column col.
func (t *Table) Index(col string) (int, error) {
	for i, c := range t.Columns {
		if c == col {
			return i, nil
		}
	}
	return -1, ErrMissingColumn{Table: t.Name, Column: col}
}

// Has reports whether the table has column col.
func (t *Table) Has(col string) bool {
	_, err := t.Index(col)
	return err == nil
}

// Require fails with ErrMissingColumn for the first absent column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if _, err := t.Index(c); err != nil {
			return err
		}
	}
	return nil
}

// Column returns a copy of the values of col in row order.
func (t *Table) Column(col string) ([]string, error) {
	idx, err := t.Index(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Rename applies the mapping old→new to the header. Names absent from the
// table are ignored, so applying a rename map to already-renamed headers is
// a no-op.
func (t *Table) Rename(mapping map[string]string) *Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if to, ok := mapping[c]; ok {
			cols[i] = to
			continue
		}
		cols[i] = c
	}
	return &Table{Name: t.Name, Columns: cols, Rows: t.Rows}
}

// Drop removes the named columns. Every name must exist.
func (t *Table) Drop(cols ...string) (*Table, error) {
	drop := make(map[int]struct{}, len(cols))
	for _, c := range cols {
		idx, err := t.Index(c)
		if err != nil {
			return nil, err
		}
		drop[idx] = struct{}{}
	}
	keep := make([]string, 0, len(t.Columns)-len(drop))
	for i, c := range t.Columns {
		if _, ok := drop[i]; !ok {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// Select projects the table onto cols, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := t.Index(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return &Table{Name: t.Name, Columns: append([]string(nil), cols...), Rows: rows}, nil
}

// MoveToFront reorders the header so col comes first; the rest keep their order.
func (t *Table) MoveToFront(col string) (*Table, error) {
	if _, err := t.Index(col); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(t.Columns))
	cols = append(cols, col)
	for _, c := range t.Columns {
		if c != col {
			cols = append(cols, c)
		}
	}
	return t.Select(cols...)
}

// LeftJoin keeps every row of left, in order, and appends the non-key columns
// of right. Rows of right are matched on exact equality of all key columns.
// Unmatched rows get empty right-hand values. When several right rows match,
// their values are joined per column with MultiValueSeparator in match order,
// so the result always has exactly left.Len() rows.
//
// A non-key column present on both sides is emitted as name_x (left) and
// name_y (right).
func LeftJoin(left, right *Table, keys ...string) (*Table, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("join %s with %s: no key columns", left.Name, right.Name)
	}
	leftKeys, err := indexes(left, keys)
	if err != nil {
		return nil, err
	}
	rightKeys, err := indexes(right, keys)
	if err != nil {
		return nil, err
	}

	isKey := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		isKey[k] = struct{}{}
	}
	var rightCols []int
	rightNames := make(map[string]struct{})
	for i, c := range right.Columns {
		if _, ok := isKey[c]; ok {
			continue
		}
		rightCols = append(rightCols, i)
		rightNames[c] = struct{}{}
	}

	cols := make([]string, 0, len(left.Columns)+len(rightCols))
	leftNames := make(map[string]struct{}, len(left.Columns))
	for _, c := range left.Columns {
		leftNames[c] = struct{}{}
		if _, clash := rightNames[c]; clash {
			if _, key := isKey[c]; !key {
				c += "_x"
			}
		}
		cols = append(cols, c)
	}
	for _, i := range rightCols {
		c := right.Columns[i]
		if _, clash := leftNames[c]; clash {
			c += "_y"
		}
		cols = append(cols, c)
	}

	matches := make(map[string][]int, len(right.Rows))
	for r, row := range right.Rows {
		k := joinKey(row, rightKeys)
		matches[k] = append(matches[k], r)
	}

	rows := make([][]string, len(left.Rows))
	for r, row := range left.Rows {
		out := make([]string, 0, len(cols))
		out = append(out, row...)
		hits := matches[joinKey(row, leftKeys)]
		for _, c := range rightCols {
			out = append(out, collect(right.Rows, hits, c))
		}
		rows[r] = out
	}
	return &Table{Name: left.Name, Columns: cols, Rows: rows}, nil
}

func indexes(t *Table, cols []string) ([]int, error) {
	out := make([]int, len(cols))
	for i, c := range cols {
		idx, err := t.Index(c)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func joinKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = row[j]
	}
	return strings.Join(parts, "\x1f")
}

func collect(rows [][]string, hits []int, col int) string {
	switch len(hits) {
	case 0:
		return ""
	case 1:
		return rows[hits[0]][col]
	}
	values := make([]string, len(hits))
	empty := true
	for i, h := range hits {
		values[i] = rows[h][col]
		if values[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(values, MultiValueSeparator)
}
