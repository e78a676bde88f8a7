package prismdb

import (
	"github.com/prismdb/prismdb/internal/errs"
)

// Cursor executes statements and walks their results. It holds at
// most one active result set; executing a new statement discards the
// previous one. A cursor is not safe for concurrent use.
type Cursor struct {
	conn *Connection
	rs   *ResultSet
}

// Execute runs one statement and makes its result the active set.
func (c *Cursor) Execute(sql string) error {
	rs, err := c.conn.Execute(sql)
	if err != nil {
		return err
	}
	c.rs = rs
	return nil
}

// Columns returns the active result set's column names.
func (c *Cursor) Columns() ([]string, error) {
	if c.rs == nil {
		return nil, errs.New(errs.Value, "no active result set")
	}
	return c.rs.Cols, nil
}

// FetchOne returns the next row as native values, or nil at
// exhaustion.
func (c *Cursor) FetchOne() ([]any, error) {
	if c.rs == nil {
		return nil, errs.New(errs.Value, "no active result set")
	}
	return c.rs.FetchOne(), nil
}

// FetchAll drains the remaining rows.
func (c *Cursor) FetchAll() ([][]any, error) {
	if c.rs == nil {
		return nil, errs.New(errs.Value, "no active result set")
	}
	return c.rs.FetchAll(), nil
}

// ToDict drains the remaining rows column-oriented.
func (c *Cursor) ToDict() (map[string][]any, error) {
	if c.rs == nil {
		return nil, errs.New(errs.Value, "no active result set")
	}
	return c.rs.ToDict(), nil
}

// Close discards the active result set. The cursor stays usable; a
// later Execute starts a fresh one.
func (c *Cursor) Close() {
	c.rs = nil
}
