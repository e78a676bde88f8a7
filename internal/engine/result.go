package engine

import "github.com/prismdb/prismdb/internal/storage"

// Row is one result row in output column order.
type Row []storage.Value

// ResultSet is the single-pass output of a statement. Column names
// are qualified table.column for direct projections and the alias or
// rendered expression for computed ones. Row order is insertion order
// unless the statement ordered it.
type ResultSet struct {
	Cols []string
	rows []Row
	pos  int
}

func newResultSet(cols []string, rows []Row) *ResultSet {
	return &ResultSet{Cols: cols, rows: rows}
}

// emptyResultSet is what DDL and DML statements return.
func emptyResultSet() *ResultSet { return &ResultSet{} }

// Len reports the total number of rows, consumed or not.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Next returns the next row and advances the cursor.
func (rs *ResultSet) Next() (Row, bool) {
	if rs.pos >= len(rs.rows) {
		return nil, false
	}
	r := rs.rows[rs.pos]
	rs.pos++
	return r, true
}

// FetchOne returns the next row as native Go values, or nil when the
// set is exhausted.
func (rs *ResultSet) FetchOne() []any {
	r, ok := rs.Next()
	if !ok {
		return nil
	}
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v.Native()
	}
	return out
}

// FetchAll drains the remaining rows.
func (rs *ResultSet) FetchAll() [][]any {
	var out [][]any
	for {
		row := rs.FetchOne()
		if row == nil {
			return out
		}
		out = append(out, row)
	}
}

// ToDict drains the remaining rows into a map from column name to the
// ordered slice of that column's values.
func (rs *ResultSet) ToDict() map[string][]any {
	out := make(map[string][]any, len(rs.Cols))
	for _, c := range rs.Cols {
		out[c] = []any{}
	}
	for {
		r, ok := rs.Next()
		if !ok {
			return out
		}
		for i, v := range r {
			out[rs.Cols[i]] = append(out[rs.Cols[i]], v.Native())
		}
	}
}
