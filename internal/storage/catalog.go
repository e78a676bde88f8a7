package storage

import (
	"github.com/prismdb/prismdb/internal/errs"
)

// Column holds column schema information in a table.
type Column struct {
	Name string
	Type ColType
}

// Table stores rows along with column metadata. Rows are append-only
// and keep insertion order; every row matches the schema in arity and
// per-slot type, enforced at insert time.
type Table struct {
	Name   string
	Cols   []Column
	Rows   [][]Value
	colPos map[string]int
}

// NewTable creates a new Table. Column names are case-sensitive.
func NewTable(name string, cols []Column) *Table {
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c.Name] = i
	}
	return &Table{Name: name, Cols: cols, colPos: pos}
}

// ColIndex returns the zero-based index of the named column.
func (t *Table) ColIndex(name string) (int, error) {
	i, ok := t.colPos[name]
	if !ok {
		return -1, errs.Newf(errs.UnknownColumn, "no column %q on table %q", name, t.Name)
	}
	return i, nil
}

// coerceRow type-checks values against the schema and returns the row
// ready for storage. It never mutates the table.
func (t *Table) coerceRow(values []Value) ([]Value, error) {
	if len(values) != len(t.Cols) {
		return nil, errs.Newf(errs.TypeMismatch, "table %q expects %d values, got %d", t.Name, len(t.Cols), len(values))
	}
	row := make([]Value, len(values))
	for i, v := range values {
		cv, err := CoerceTo(v, t.Cols[i].Type)
		if err != nil {
			return nil, errs.Newf(errs.TypeMismatch, "column %q: %v", t.Cols[i].Name, err)
		}
		row[i] = cv
	}
	return row, nil
}

func (t *Table) appendRow(row []Value) { t.Rows = append(t.Rows, row) }

// RowIter is a fresh, restartable iterator over a table's rows. Each
// Scan call returns a new iterator; no cursor state outlives it.
type RowIter struct {
	t *Table
	i int
}

// Scan returns an iterator positioned before the first row.
func (t *Table) Scan() *RowIter { return &RowIter{t: t} }

// Next returns the next row, or nil and false at the end. The returned
// slice is the stored row and must not be mutated.
func (it *RowIter) Next() ([]Value, bool) {
	if it.i >= len(it.t.Rows) {
		return nil, false
	}
	r := it.t.Rows[it.i]
	it.i++
	return r, true
}

// Catalog is the schema registry mapping table names to definitions.
// Lookup is case-sensitive.
type Catalog struct {
	tables map[string]*Table
	order  []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: map[string]*Table{}}
}

// Create registers a new table.
func (c *Catalog) Create(name string, cols []Column) (*Table, error) {
	if _, exists := c.tables[name]; exists {
		return nil, errs.Newf(errs.DuplicateTable, "table %q already exists", name)
	}
	t := NewTable(name, cols)
	c.tables[name] = t
	c.order = append(c.order, name)
	return t, nil
}

// Lookup resolves a table by name.
func (c *Catalog) Lookup(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, errs.Newf(errs.UnknownTable, "no such table %q", name)
	}
	return t, nil
}

// Tables returns all tables in creation order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.tables[n])
	}
	return out
}
