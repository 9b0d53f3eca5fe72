package schema

// Column describes one column of a user table, as reported by the catalog.
type Column struct {
	Name      string
	DataType  string
	MaxLength *int
	Nullable  bool
	Default   *string
}

// Table is one table's snapshot unit: columns in ordinal order and the
// primary-key column names in index order (empty when no primary key exists).
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// ColumnNames returns the column names in ordinal order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
