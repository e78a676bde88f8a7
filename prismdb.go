// Package prismdb provides an embedded, in-process relational
// database accessed through a connection and cursor API.
//
// A connection owns one database: a SQL statement processor
// (lex, parse, plan, execute) on top of a storage layer with
// WAL-backed persistence. An empty path opens an in-memory database;
// a file path makes every mutating statement durable before it
// returns.
//
// # Basic Usage
//
//	conn, err := prismdb.Connect("app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	conn.Execute("CREATE TABLE users (id INTEGER, name VARCHAR)")
//	conn.Execute("INSERT INTO users VALUES (1, 'Alice')")
//
//	rs, _ := conn.Execute("SELECT users.name FROM users WHERE id = 1")
//	for {
//	    row := rs.FetchOne()
//	    if row == nil {
//	        break
//	    }
//	    fmt.Println(row)
//	}
//
// # Cursors
//
// A cursor holds at most one active result set; executing a new
// statement discards the previous one:
//
//	cur := conn.Cursor()
//	cur.Execute("SELECT * FROM users")
//	rows, _ := cur.FetchAll()
//
// # Column-oriented access
//
//	cols, _ := conn.ToDict("SELECT * FROM users")
//	// cols["users.id"] = []any{int64(1)}, cols["users.name"] = []any{"Alice"}
//
// # Scoped connections
//
//	err := prismdb.With("app.db", func(conn *prismdb.Connection) error {
//	    _, err := conn.Execute("INSERT INTO users VALUES (2, 'Bob')")
//	    return err
//	})
package prismdb

import (
	"github.com/prismdb/prismdb/internal/engine"
	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// Re-exported types for the public API.

// ResultSet holds query results: ordered column names and single-pass
// row access.
type ResultSet = engine.ResultSet

// Row is one result row in output column order.
type Row = engine.Row

// Value is the runtime representation of a single cell.
type Value = storage.Value

// Column describes one table column.
type Column = storage.Column

// Config controls persistence: snapshot path, checkpoint cadence and
// WAL sync behavior.
type Config = storage.Config

// Error sentinels for errors.Is matching. Every error returned by
// Execute and the cursor methods carries one of these kinds.
var (
	ErrSyntax           = errs.ErrSyntax
	ErrUnknownTable     = errs.ErrUnknownTable
	ErrUnknownColumn    = errs.ErrUnknownColumn
	ErrDuplicateTable   = errs.ErrDuplicateTable
	ErrTypeMismatch     = errs.ErrTypeMismatch
	ErrValue            = errs.ErrValue
	ErrIO               = errs.ErrIO
	ErrConnectionClosed = errs.ErrConnectionClosed
)

// Connect opens a database. An empty path gives a purely in-memory
// database; otherwise path names the snapshot file and the WAL lives
// next to it at path + ".wal". Existing state is recovered before
// Connect returns.
func Connect(path string) (*Connection, error) {
	return ConnectConfig(storage.DefaultConfig(path))
}

// ConnectConfig opens a database with explicit persistence settings.
func ConnectConfig(cfg Config) (*Connection, error) {
	st, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}
	conn := &Connection{
		store: st,
		cache: engine.NewStatementCache(256),
	}
	if cfg.CheckpointSchedule != "" {
		sched, err := storage.NewCheckpointScheduler(cfg.CheckpointSchedule, conn.Checkpoint)
		if err != nil {
			st.Close()
			return nil, err
		}
		conn.sched = sched
		sched.Start()
	}
	return conn, nil
}

// With runs fn with a freshly opened connection and closes it on
// every exit path. The close error is returned when fn succeeds.
func With(path string, fn func(*Connection) error) error {
	conn, err := Connect(path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := fn(conn); err != nil {
		return err
	}
	return conn.Close()
}
