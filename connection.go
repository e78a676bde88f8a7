package prismdb

import (
	"context"
	"sync"

	"github.com/prismdb/prismdb/internal/engine"
	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// Connection is the handle to one open database. Execution is fully
// synchronous; a mutating statement has reached the WAL when Execute
// returns. The mutex serializes caller statements with scheduled
// checkpoints; a single-goroutine caller never contends on it.
type Connection struct {
	mu     sync.Mutex
	store  *storage.Store
	cache  *engine.StatementCache
	sched  *storage.CheckpointScheduler
	closed bool
}

// Execute parses and runs one SQL statement. DDL and DML return an
// empty result set; SELECT returns the rows.
func (c *Connection) Execute(sql string) (*ResultSet, error) {
	return c.ExecuteContext(context.Background(), sql)
}

// ExecuteContext is Execute with a context checked between pipeline
// stages of a SELECT.
func (c *Connection) ExecuteContext(ctx context.Context, sql string) (*ResultSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errs.New(errs.ConnectionClosed, "connection is closed")
	}
	compiled, err := c.cache.Compile(sql)
	if err != nil {
		return nil, err
	}
	return engine.Execute(ctx, c.store, compiled.Statement)
}

// Cursor returns a new cursor bound to this connection.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{conn: c}
}

// ToDict executes sql and returns the full result column-oriented:
// column name to the ordered slice of native values.
func (c *Connection) ToDict(sql string) (map[string][]any, error) {
	rs, err := c.Execute(sql)
	if err != nil {
		return nil, err
	}
	return rs.ToDict(), nil
}

// Tables lists the table names in creation order.
func (c *Connection) Tables() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errs.New(errs.ConnectionClosed, "connection is closed")
	}
	var names []string
	for _, t := range c.store.Catalog().Tables() {
		names = append(names, t.Name)
	}
	return names, nil
}

// Checkpoint writes a snapshot and resets the WAL. A no-op for
// in-memory databases.
func (c *Connection) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.New(errs.ConnectionClosed, "connection is closed")
	}
	return c.store.Checkpoint()
}

// Close checkpoints file-backed databases and releases all resources.
// Close is idempotent; any later operation reports a closed
// connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sched != nil {
		// Stop outside the checkpoint path: scheduled runs take c.mu,
		// which we hold, so release it while waiting.
		c.mu.Unlock()
		c.sched.Stop()
		c.mu.Lock()
	}
	c.cache.Clear()
	return c.store.Close()
}
