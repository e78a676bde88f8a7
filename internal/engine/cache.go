package engine

import (
	"sync"
	"time"
)

// CompiledStatement is a parsed statement kept for reuse.
type CompiledStatement struct {
	SQL       string
	Statement Statement
	ParsedAt  time.Time
}

// StatementCache memoizes parsed statements keyed by their exact SQL
// text. Parsing repeats often in loops; caching keeps the hot path on
// execution. Eviction is FIFO by parse time.
type StatementCache struct {
	mu      sync.RWMutex
	stmts   map[string]*CompiledStatement
	maxSize int
}

// NewStatementCache creates a cache holding at most maxSize entries.
func NewStatementCache(maxSize int) *StatementCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &StatementCache{
		stmts:   make(map[string]*CompiledStatement),
		maxSize: maxSize,
	}
}

// Compile returns the cached parse of sql, parsing and caching on a
// miss.
func (c *StatementCache) Compile(sql string) (*CompiledStatement, error) {
	c.mu.RLock()
	if cached, ok := c.stmts[sql]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	stmt, err := NewParser(sql).ParseStatement()
	if err != nil {
		return nil, err
	}
	compiled := &CompiledStatement{
		SQL:       sql,
		Statement: stmt,
		ParsedAt:  time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stmts) >= c.maxSize {
		var oldestSQL string
		var oldestTime time.Time
		first := true
		for s, cs := range c.stmts {
			if first || cs.ParsedAt.Before(oldestTime) {
				oldestSQL = s
				oldestTime = cs.ParsedAt
				first = false
			}
		}
		delete(c.stmts, oldestSQL)
	}
	c.stmts[sql] = compiled
	return compiled, nil
}

// Clear drops all cached statements.
func (c *StatementCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stmts = make(map[string]*CompiledStatement)
}

// Size reports the number of cached statements.
func (c *StatementCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stmts)
}
