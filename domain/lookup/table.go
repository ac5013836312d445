// Package lookup provides in-memory reference tables with case-insensitive
// filtered lookups. Tables are loaded once from CSV metadata and are
// immutable afterwards.
package lookup

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is an immutable, column-addressable reference table.
type Table struct {
	name    string
	columns []string
	colIdx  map[string]int
	rows    [][]string
}

// Load reads a table from CSV. The first record is the header row.
func Load(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read table %s: missing header row", name)
	}
	t := &Table{
		name:    name,
		columns: records[0],
		colIdx:  make(map[string]int, len(records[0])),
		rows:    records[1:],
	}
	for i, col := range records[0] {
		t.colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return t, nil
}

// New builds a table directly from a header and rows.
func New(name string, columns []string, rows [][]string) *Table {
	t := &Table{
		name:    name,
		columns: columns,
		colIdx:  make(map[string]int, len(columns)),
		rows:    rows,
	}
	for i, col := range columns {
		t.colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return t
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Columns returns the header row.
func (t *Table) Columns() []string { return t.columns }

// RowCount returns the number of data rows.
func (t *Table) RowCount() int { return len(t.rows) }

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.colIdx[strings.ToLower(strings.TrimSpace(column))]
	return ok
}

// Filter starts a new filtered query over the table.
func (t *Table) Filter() *Filter {
	return &Filter{table: t}
}

// Filter is a chainable set of column predicates over one table.
type Filter struct {
	table *Table
	preds []pred
}

type pred struct {
	col   string
	value string
}

// EqualsIgnoreCase adds a case-insensitive equality predicate on a column.
// An unknown column matches nothing.
func (f *Filter) EqualsIgnoreCase(column, value string) *Filter {
	f.preds = append(f.preds, pred{col: column, value: value})
	return f
}

// FindSingleResult returns the value of resultColumn from the unique row
// matching every predicate. Zero matches and ambiguous (multi-row) matches
// both return ok=false: a non-unique key means the table cannot answer.
func (f *Filter) FindSingleResult(resultColumn string) (string, bool) {
	rows := f.matches()
	if len(rows) != 1 {
		return "", false
	}
	idx, ok := f.table.colIdx[strings.ToLower(strings.TrimSpace(resultColumn))]
	if !ok {
		return "", false
	}
	row := rows[0]
	if idx >= len(row) {
		return "", false
	}
	return row[idx], true
}

func (f *Filter) matches() [][]string {
	var out [][]string
	for _, row := range f.table.rows {
		if f.matchRow(row) {
			out = append(out, row)
		}
	}
	return out
}

func (f *Filter) matchRow(row []string) bool {
	for _, p := range f.preds {
		idx, ok := f.table.colIdx[strings.ToLower(strings.TrimSpace(p.col))]
		if !ok || idx >= len(row) {
			return false
		}
		if !strings.EqualFold(strings.TrimSpace(row[idx]), strings.TrimSpace(p.value)) {
			return false
		}
	}
	return true
}
