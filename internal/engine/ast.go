package engine

import (
	"strings"

	"github.com/prismdb/prismdb/internal/storage"
)

// Statement is a parsed SQL statement.
type Statement interface{ stmt() }

// CreateTableStmt is CREATE TABLE name (col type, ...).
type CreateTableStmt struct {
	Name string
	Cols []storage.Column
}

// InsertStmt is INSERT INTO name VALUES (...). Values are constant
// expressions evaluated without row context.
type InsertStmt struct {
	Table  string
	Values []Expr
}

// SelectItem is one projection: an expression with an optional alias,
// or the bare star.
type SelectItem struct {
	Star  bool
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is a full SELECT. From is empty for constant selects.
// Limit and Offset are -1 when absent.
type SelectStmt struct {
	Distinct bool
	Projs    []SelectItem
	From     string
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    int
	Offset   int
}

func (*CreateTableStmt) stmt() {}
func (*InsertStmt) stmt()      {}
func (*SelectStmt) stmt()      {}

// Expr is an expression tree node. String renders the expression in
// SQL-ish form; computed projections without an alias use it as their
// result column name.
type Expr interface {
	expr()
	String() string
}

// Literal is a constant value.
type Literal struct {
	Val storage.Value
}

// ColumnRef references a column, optionally table-qualified.
type ColumnRef struct {
	Table string
	Name  string
}

// Binary is a two-operand operator: arithmetic, comparison, AND, OR.
type Binary struct {
	Op string
	L  Expr
	R  Expr
}

// Unary is NOT or arithmetic negation.
type Unary struct {
	Op string
	X  Expr
}

// IsNull is x IS [NOT] NULL.
type IsNull struct {
	X      Expr
	Negate bool
}

// FuncCall is an aggregate or scalar function call. Star marks
// COUNT(*).
type FuncCall struct {
	Name string
	Args []Expr
	Star bool
}

func (*Literal) expr()   {}
func (*ColumnRef) expr() {}
func (*Binary) expr()    {}
func (*Unary) expr()     {}
func (*IsNull) expr()    {}
func (*FuncCall) expr()  {}

func (e *Literal) String() string {
	if e.Val.Kind == storage.KindText {
		return "'" + strings.ReplaceAll(e.Val.Str, "'", "''") + "'"
	}
	return e.Val.String()
}

func (e *ColumnRef) String() string {
	if e.Table != "" {
		return e.Table + "." + e.Name
	}
	return e.Name
}

func (e *Binary) String() string {
	return e.L.String() + " " + e.Op + " " + e.R.String()
}

func (e *Unary) String() string {
	if e.Op == "NOT" {
		return "NOT " + e.X.String()
	}
	return e.Op + e.X.String()
}

func (e *IsNull) String() string {
	if e.Negate {
		return e.X.String() + " IS NOT NULL"
	}
	return e.X.String() + " IS NULL"
}

func (e *FuncCall) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}
