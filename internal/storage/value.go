// Package storage provides the durable data structures for prismdb.
//
// This file defines the value model:
//   - What: A tagged-union Value covering the four runtime kinds
//     (NULL, INTEGER, DOUBLE, TEXT) plus the column type enumeration
//     and the single coercion table used at insert time.
//   - How: Value carries a Kind discriminant and one slot per payload
//     type; all dispatch is on the tag, never reflection. CoerceTo is
//     the only place a value changes type on the storage path.
//   - Why: Keeping type checking in one explicit table makes the
//     widening rule (INTEGER into DOUBLE, nothing else) auditable and
//     keeps the evaluator free of ad hoc conversions.
package storage

import (
	"fmt"
	"strconv"

	"github.com/prismdb/prismdb/internal/errs"
)

// ColType enumerates the declarable column types.
type ColType int

const (
	IntegerType ColType = iota
	DoubleType
	VarcharType
)

func (t ColType) String() string {
	switch t {
	case IntegerType:
		return "INTEGER"
	case DoubleType:
		return "DOUBLE"
	case VarcharType:
		return "VARCHAR"
	}
	return "UNKNOWN"
}

// ValueKind discriminates the runtime kind of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindDouble
	KindText
)

// Value is the runtime representation of a single cell. Exactly one
// payload field is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

// Null returns the NULL value.
func Null() Value { return Value{Kind: KindNull} }

// Integer wraps an int64.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Double wraps a float64.
func Double(f float64) Value { return Value{Kind: KindDouble, Float: f} }

// Text wraps a string.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// IsNull reports whether v is the NULL value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Native returns the Go representation: nil, int64, float64 or string.
func (v Value) Native() any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindDouble:
		return v.Float
	case KindText:
		return v.Str
	}
	return nil
}

// String renders the value for display. NULL renders as "NULL".
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindText:
		return v.Str
	}
	return "NULL"
}

// AsDouble returns the numeric payload widened to float64. The second
// result is false for NULL and TEXT.
func (v Value) AsDouble() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindDouble:
		return v.Float, true
	}
	return 0, false
}

func kindName(k ValueKind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindDouble:
		return "DOUBLE"
	case KindText:
		return "TEXT"
	}
	return "NULL"
}

// Compare orders two non-NULL values. Numeric kinds compare across
// INTEGER/DOUBLE; TEXT compares only with TEXT. NULL operands and
// mixed text/numeric pairs return a TypeMismatch error.
func Compare(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, errs.New(errs.TypeMismatch, "cannot compare NULL")
	}
	if a.Kind == KindText || b.Kind == KindText {
		if a.Kind != KindText || b.Kind != KindText {
			return 0, errs.Newf(errs.TypeMismatch, "cannot compare %s with %s", kindName(a.Kind), kindName(b.Kind))
		}
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		}
		return 0, nil
	}
	af, _ := a.AsDouble()
	bf, _ := b.AsDouble()
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

// CoerceTo checks v against a declared column type and returns the
// stored form. NULL is accepted by every type. The only conversion is
// INTEGER widening into a DOUBLE column; everything else must match
// exactly.
func CoerceTo(v Value, t ColType) (Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch t {
	case IntegerType:
		if v.Kind == KindInteger {
			return v, nil
		}
	case DoubleType:
		if v.Kind == KindDouble {
			return v, nil
		}
		if v.Kind == KindInteger {
			return Double(float64(v.Int)), nil
		}
	case VarcharType:
		if v.Kind == KindText {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("%s value does not fit %s column", kindName(v.Kind), t)
}
