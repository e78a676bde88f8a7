package storage

import (
	"errors"
	"testing"

	"github.com/prismdb/prismdb/internal/errs"
)

func TestValueNative(t *testing.T) {
	if v := Integer(42).Native(); v != int64(42) {
		t.Fatalf("Integer native = %v", v)
	}
	if v := Double(1.5).Native(); v != 1.5 {
		t.Fatalf("Double native = %v", v)
	}
	if v := Text("hi").Native(); v != "hi" {
		t.Fatalf("Text native = %v", v)
	}
	if v := Null().Native(); v != nil {
		t.Fatalf("Null native = %v", v)
	}
}

func TestCompareNumericCrossKind(t *testing.T) {
	c, err := Compare(Integer(2), Double(2.5))
	if err != nil {
		t.Fatal(err)
	}
	if c != -1 {
		t.Fatalf("2 vs 2.5 = %d, want -1", c)
	}
	c, err = Compare(Double(3.0), Integer(3))
	if err != nil {
		t.Fatal(err)
	}
	if c != 0 {
		t.Fatalf("3.0 vs 3 = %d, want 0", c)
	}
}

func TestCompareText(t *testing.T) {
	c, err := Compare(Text("apple"), Text("banana"))
	if err != nil {
		t.Fatal(err)
	}
	if c != -1 {
		t.Fatalf("apple vs banana = %d", c)
	}
	if _, err := Compare(Text("apple"), Integer(1)); !errors.Is(err, errs.ErrTypeMismatch) {
		t.Fatalf("text vs int err = %v", err)
	}
}

func TestCompareNull(t *testing.T) {
	if _, err := Compare(Null(), Integer(1)); !errors.Is(err, errs.ErrTypeMismatch) {
		t.Fatalf("null compare err = %v", err)
	}
}

func TestCoerceWidensIntegerToDouble(t *testing.T) {
	v, err := CoerceTo(Integer(7), DoubleType)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != KindDouble || v.Float != 7 {
		t.Fatalf("coerced = %+v", v)
	}
}

func TestCoerceRejectsNarrowing(t *testing.T) {
	if _, err := CoerceTo(Double(1.5), IntegerType); err == nil {
		t.Fatal("double into integer column should fail")
	}
	if _, err := CoerceTo(Text("1"), IntegerType); err == nil {
		t.Fatal("text into integer column should fail")
	}
	if _, err := CoerceTo(Integer(1), VarcharType); err == nil {
		t.Fatal("integer into varchar column should fail")
	}
}

func TestCoerceNullEverywhere(t *testing.T) {
	for _, typ := range []ColType{IntegerType, DoubleType, VarcharType} {
		v, err := CoerceTo(Null(), typ)
		if err != nil {
			t.Fatalf("NULL into %s: %v", typ, err)
		}
		if !v.IsNull() {
			t.Fatalf("NULL into %s = %+v", typ, v)
		}
	}
}
