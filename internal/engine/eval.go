package engine

import (
	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// scope supplies column values (and, inside grouped queries,
// aggregate results) to the evaluator.
type scope interface {
	col(ref *ColumnRef) (storage.Value, error)
	// agg evaluates an aggregate call. The bool reports whether the
	// scope handles aggregates at all.
	agg(fc *FuncCall) (storage.Value, bool, error)
}

// constScope evaluates constant expressions: INSERT values and
// FROM-less selects. Any column reference is an error.
type constScope struct{}

func (constScope) col(ref *ColumnRef) (storage.Value, error) {
	return storage.Value{}, errs.Newf(errs.UnknownColumn, "no column %q in this context", ref.String())
}

func (constScope) agg(fc *FuncCall) (storage.Value, bool, error) {
	return storage.Value{}, false, nil
}

// rowScope binds a single table row.
type rowScope struct {
	table *storage.Table
	row   []storage.Value
}

func (s *rowScope) col(ref *ColumnRef) (storage.Value, error) {
	if ref.Table != "" && ref.Table != s.table.Name {
		return storage.Value{}, errs.Newf(errs.UnknownTable, "no such table %q", ref.Table)
	}
	i, err := s.table.ColIndex(ref.Name)
	if err != nil {
		return storage.Value{}, err
	}
	return s.row[i], nil
}

func (s *rowScope) agg(fc *FuncCall) (storage.Value, bool, error) {
	return storage.Value{}, false, nil
}

// eval walks the expression tree against a scope. Boolean results are
// INTEGER 1/0 with NULL as the unknown third state.
func eval(e Expr, sc scope) (storage.Value, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Val, nil

	case *ColumnRef:
		return sc.col(n)

	case *Unary:
		return evalUnary(n, sc)

	case *Binary:
		return evalBinary(n, sc)

	case *IsNull:
		v, err := eval(n.X, sc)
		if err != nil {
			return storage.Value{}, err
		}
		if v.IsNull() != n.Negate {
			return storage.Integer(1), nil
		}
		return storage.Integer(0), nil

	case *FuncCall:
		if isAggregate(n.Name) {
			v, handled, err := sc.agg(n)
			if err != nil {
				return storage.Value{}, err
			}
			if !handled {
				return storage.Value{}, errs.Newf(errs.Syntax, "%s is not allowed here", n.Name)
			}
			return v, nil
		}
		return evalScalarFunc(n, sc)
	}
	return storage.Value{}, errs.New(errs.Syntax, "unsupported expression")
}

func isAggregate(name string) bool {
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	}
	return false
}

func evalUnary(n *Unary, sc scope) (storage.Value, error) {
	v, err := eval(n.X, sc)
	if err != nil {
		return storage.Value{}, err
	}
	switch n.Op {
	case "-":
		switch v.Kind {
		case storage.KindNull:
			return v, nil
		case storage.KindInteger:
			return storage.Integer(-v.Int), nil
		case storage.KindDouble:
			return storage.Double(-v.Float), nil
		}
		return storage.Value{}, errs.New(errs.TypeMismatch, "cannot negate TEXT")
	case "NOT":
		if v.IsNull() {
			return v, nil
		}
		b, err := truth(v)
		if err != nil {
			return storage.Value{}, err
		}
		if b {
			return storage.Integer(0), nil
		}
		return storage.Integer(1), nil
	}
	return storage.Value{}, errs.Newf(errs.Syntax, "unknown operator %s", n.Op)
}

func evalBinary(n *Binary, sc scope) (storage.Value, error) {
	switch n.Op {
	case "AND", "OR":
		return evalLogical(n, sc)
	}

	l, err := eval(n.L, sc)
	if err != nil {
		return storage.Value{}, err
	}
	r, err := eval(n.R, sc)
	if err != nil {
		return storage.Value{}, err
	}

	switch n.Op {
	case "+", "-", "*", "/", "%":
		return evalArith(n.Op, l, r)
	case "=", "<>", "<", "<=", ">", ">=":
		return evalCompare(n.Op, l, r)
	}
	return storage.Value{}, errs.Newf(errs.Syntax, "unknown operator %s", n.Op)
}

// evalLogical applies Kleene three-valued AND/OR. FALSE dominates AND
// and TRUE dominates OR even when the other side is NULL.
func evalLogical(n *Binary, sc scope) (storage.Value, error) {
	l, err := eval(n.L, sc)
	if err != nil {
		return storage.Value{}, err
	}
	r, err := eval(n.R, sc)
	if err != nil {
		return storage.Value{}, err
	}

	lv, err := triState(l)
	if err != nil {
		return storage.Value{}, err
	}
	rv, err := triState(r)
	if err != nil {
		return storage.Value{}, err
	}

	if n.Op == "AND" {
		switch {
		case lv == triFalse || rv == triFalse:
			return storage.Integer(0), nil
		case lv == triNull || rv == triNull:
			return storage.Null(), nil
		}
		return storage.Integer(1), nil
	}
	switch {
	case lv == triTrue || rv == triTrue:
		return storage.Integer(1), nil
	case lv == triNull || rv == triNull:
		return storage.Null(), nil
	}
	return storage.Integer(0), nil
}

type tri int

const (
	triFalse tri = iota
	triTrue
	triNull
)

func triState(v storage.Value) (tri, error) {
	if v.IsNull() {
		return triNull, nil
	}
	b, err := truth(v)
	if err != nil {
		return triFalse, err
	}
	if b {
		return triTrue, nil
	}
	return triFalse, nil
}

// truth interprets a non-NULL value as a condition. Numeric zero is
// false; TEXT is not a condition.
func truth(v storage.Value) (bool, error) {
	switch v.Kind {
	case storage.KindInteger:
		return v.Int != 0, nil
	case storage.KindDouble:
		return v.Float != 0, nil
	}
	return false, errs.New(errs.TypeMismatch, "TEXT is not a condition")
}

// evalArith implements numeric arithmetic with NULL propagation.
// INTEGER op INTEGER stays INTEGER except division, which always
// yields DOUBLE; any DOUBLE operand widens the result.
func evalArith(op string, l, r storage.Value) (storage.Value, error) {
	if l.IsNull() || r.IsNull() {
		return storage.Null(), nil
	}
	if l.Kind == storage.KindText || r.Kind == storage.KindText {
		return storage.Value{}, errs.Newf(errs.TypeMismatch, "cannot apply %s to TEXT", op)
	}

	if op == "%" {
		if l.Kind != storage.KindInteger || r.Kind != storage.KindInteger {
			return storage.Value{}, errs.New(errs.TypeMismatch, "% requires INTEGER operands")
		}
		if r.Int == 0 {
			return storage.Value{}, errs.New(errs.Value, "division by zero")
		}
		return storage.Integer(l.Int % r.Int), nil
	}

	if op == "/" {
		lf, _ := l.AsDouble()
		rf, _ := r.AsDouble()
		if rf == 0 {
			return storage.Value{}, errs.New(errs.Value, "division by zero")
		}
		return storage.Double(lf / rf), nil
	}

	if l.Kind == storage.KindInteger && r.Kind == storage.KindInteger {
		switch op {
		case "+":
			return storage.Integer(l.Int + r.Int), nil
		case "-":
			return storage.Integer(l.Int - r.Int), nil
		case "*":
			return storage.Integer(l.Int * r.Int), nil
		}
	}
	lf, _ := l.AsDouble()
	rf, _ := r.AsDouble()
	switch op {
	case "+":
		return storage.Double(lf + rf), nil
	case "-":
		return storage.Double(lf - rf), nil
	case "*":
		return storage.Double(lf * rf), nil
	}
	return storage.Value{}, errs.Newf(errs.Syntax, "unknown operator %s", op)
}

// evalCompare implements comparison with NULL propagation. Mixed
// text/numeric comparison is a type error, not NULL.
func evalCompare(op string, l, r storage.Value) (storage.Value, error) {
	if l.IsNull() || r.IsNull() {
		return storage.Null(), nil
	}
	c, err := storage.Compare(l, r)
	if err != nil {
		return storage.Value{}, err
	}
	var b bool
	switch op {
	case "=":
		b = c == 0
	case "<>":
		b = c != 0
	case "<":
		b = c < 0
	case "<=":
		b = c <= 0
	case ">":
		b = c > 0
	case ">=":
		b = c >= 0
	}
	if b {
		return storage.Integer(1), nil
	}
	return storage.Integer(0), nil
}
