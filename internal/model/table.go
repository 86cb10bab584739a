// Package model defines the domain types shared by the enrichment pipeline.
package model

// Row holds one record's values, aligned to its table's Columns.
type Row []string

// Table is a rectangular, ordered set of rows under a single header.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnIndex returns the position of the first column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Value returns the value of column name in row i. The second result is
// false when the column does not exist.
func (t *Table) Value(i int, name string) (string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return "", true
	}
	return row[idx], true
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
