package core

// RawRow is one data line of a source table keyed by its header columns.
type RawRow struct {
	Index  int // zero-based position among data rows
	Fields map[string]string
}

// Get returns the raw value of column and whether the column exists in the row.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Fields[column]
	return v, ok
}
