package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func run(t *testing.T, st *storage.Store, sql string) *ResultSet {
	t.Helper()
	rs, err := tryRun(st, sql)
	if err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
	return rs
}

func tryRun(st *storage.Store, sql string) (*ResultSet, error) {
	stmt, err := NewParser(sql).ParseStatement()
	if err != nil {
		return nil, err
	}
	return Execute(context.Background(), st, stmt)
}

func salesStore(t *testing.T) *storage.Store {
	t.Helper()
	st := newStore(t)
	run(t, st, "CREATE TABLE sales (region VARCHAR, amount INTEGER)")
	for _, sql := range []string{
		"INSERT INTO sales VALUES ('north', 10)",
		"INSERT INTO sales VALUES ('south', 20)",
		"INSERT INTO sales VALUES ('north', 30)",
	} {
		run(t, st, sql)
	}
	return st
}

func TestSelectStarInsertionOrder(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT * FROM sales")
	if !reflect.DeepEqual(rs.Cols, []string{"sales.region", "sales.amount"}) {
		t.Fatalf("cols = %v", rs.Cols)
	}
	var regions []string
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		regions = append(regions, row[0].Str)
	}
	if !reflect.DeepEqual(regions, []string{"north", "south", "north"}) {
		t.Fatalf("order = %v", regions)
	}
}

func TestAggregatesOverWholeTable(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT COUNT(*), SUM(amount), AVG(amount), MIN(amount), MAX(amount) FROM sales")
	row, ok := rs.Next()
	if !ok {
		t.Fatal("no row")
	}
	if row[0].Int != 3 {
		t.Fatalf("count = %v", row[0])
	}
	if row[1].Kind != storage.KindInteger || row[1].Int != 60 {
		t.Fatalf("sum = %+v, want INTEGER 60", row[1])
	}
	if row[2].Kind != storage.KindDouble || row[2].Float != 20 {
		t.Fatalf("avg = %+v, want DOUBLE 20", row[2])
	}
	if row[3].Int != 10 || row[4].Int != 30 {
		t.Fatalf("min/max = %v/%v", row[3], row[4])
	}
}

func TestAggregateEmptyTable(t *testing.T) {
	st := newStore(t)
	run(t, st, "CREATE TABLE t (n INTEGER)")
	rs := run(t, st, "SELECT COUNT(*), SUM(n) FROM t")
	row, _ := rs.Next()
	if row[0].Int != 0 {
		t.Fatalf("count over empty = %v", row[0])
	}
	if !row[1].IsNull() {
		t.Fatalf("sum over empty = %v, want NULL", row[1])
	}
}

func TestGroupByFirstOccurrenceOrder(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT region, SUM(amount) FROM sales GROUP BY region")
	var got [][2]any
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		got = append(got, [2]any{row[0].Str, row[1].Int})
	}
	want := [][2]any{{"north", int64(40)}, {"south", int64(20)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("groups = %v, want %v", got, want)
	}
}

func TestGroupKeysWithEmbeddedDelimiterBytes(t *testing.T) {
	st := newStore(t)
	run(t, st, "CREATE TABLE t (a VARCHAR, b VARCHAR)")
	// the two tuples concatenate to the same bytes but differ in
	// where one value ends and the next begins
	run(t, st, "INSERT INTO t VALUES ('a\x1ft:b', 'c')")
	run(t, st, "INSERT INTO t VALUES ('a', 'b\x1ft:c')")

	rs := run(t, st, "SELECT a, b, COUNT(*) FROM t GROUP BY a, b")
	if rs.Len() != 2 {
		t.Fatalf("groups = %d, want 2", rs.Len())
	}
	rs = run(t, st, "SELECT DISTINCT a, b FROM t")
	if rs.Len() != 2 {
		t.Fatalf("distinct rows = %d, want 2", rs.Len())
	}
}

func TestHaving(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT region FROM sales GROUP BY region HAVING SUM(amount) > 30")
	row, ok := rs.Next()
	if !ok || row[0].Str != "north" {
		t.Fatalf("having row = %v", row)
	}
	if _, ok := rs.Next(); ok {
		t.Fatal("expected single group")
	}
}

func TestWhereThreeValuedLogic(t *testing.T) {
	st := newStore(t)
	run(t, st, "CREATE TABLE t (n INTEGER)")
	run(t, st, "INSERT INTO t VALUES (1)")
	run(t, st, "INSERT INTO t VALUES (NULL)")
	run(t, st, "INSERT INTO t VALUES (3)")

	// NULL comparison is unknown, so the NULL row never passes
	rs := run(t, st, "SELECT n FROM t WHERE n > 0")
	if rs.Len() != 2 {
		t.Fatalf("rows = %d, want 2", rs.Len())
	}
	rs = run(t, st, "SELECT n FROM t WHERE NOT n > 0")
	if rs.Len() != 0 {
		t.Fatalf("NOT rows = %d, want 0", rs.Len())
	}
	rs = run(t, st, "SELECT n FROM t WHERE n IS NULL")
	if rs.Len() != 1 {
		t.Fatalf("IS NULL rows = %d", rs.Len())
	}
	rs = run(t, st, "SELECT n FROM t WHERE n IS NULL OR n > 2")
	if rs.Len() != 2 {
		t.Fatalf("OR rows = %d", rs.Len())
	}
}

func TestDistinct(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT DISTINCT region FROM sales")
	var got []string
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		got = append(got, row[0].Str)
	}
	if !reflect.DeepEqual(got, []string{"north", "south"}) {
		t.Fatalf("distinct = %v", got)
	}
}

func TestOrderByStableAndDesc(t *testing.T) {
	st := newStore(t)
	run(t, st, "CREATE TABLE t (grp VARCHAR, n INTEGER)")
	run(t, st, "INSERT INTO t VALUES ('a', 2)")
	run(t, st, "INSERT INTO t VALUES ('b', 1)")
	run(t, st, "INSERT INTO t VALUES ('c', 2)")

	rs := run(t, st, "SELECT grp FROM t ORDER BY n")
	var got []string
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		got = append(got, row[0].Str)
	}
	// ties keep insertion order: b(1), then a and c (both 2)
	if !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("asc order = %v", got)
	}

	rs = run(t, st, "SELECT grp FROM t ORDER BY n DESC")
	got = got[:0]
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		got = append(got, row[0].Str)
	}
	if !reflect.DeepEqual(got, []string{"a", "c", "b"}) {
		t.Fatalf("desc order = %v", got)
	}
}

func TestOrderByAlias(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY total DESC")
	row, _ := rs.Next()
	if row[0].Str != "north" {
		t.Fatalf("first group = %v", row)
	}
}

func TestLimitOffset(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT amount FROM sales ORDER BY amount LIMIT 1 OFFSET 1")
	row, ok := rs.Next()
	if !ok || row[0].Int != 20 {
		t.Fatalf("row = %v", row)
	}
	if _, ok := rs.Next(); ok {
		t.Fatal("limit not applied")
	}
	rs = run(t, st, "SELECT amount FROM sales LIMIT 0")
	if rs.Len() != 0 {
		t.Fatalf("LIMIT 0 rows = %d", rs.Len())
	}
	rs = run(t, st, "SELECT amount FROM sales OFFSET 10")
	if rs.Len() != 0 {
		t.Fatalf("big OFFSET rows = %d", rs.Len())
	}
}

func TestProjectionNaming(t *testing.T) {
	st := salesStore(t)
	rs := run(t, st, "SELECT region, amount AS amt, amount * 2 FROM sales")
	want := []string{"sales.region", "amt", "amount * 2"}
	if !reflect.DeepEqual(rs.Cols, want) {
		t.Fatalf("cols = %v, want %v", rs.Cols, want)
	}
}

func TestConstantSelect(t *testing.T) {
	st := newStore(t)
	rs := run(t, st, "SELECT 1 + 2 AS three, 'x'")
	if !reflect.DeepEqual(rs.Cols, []string{"three", "'x'"}) {
		t.Fatalf("cols = %v", rs.Cols)
	}
	row, _ := rs.Next()
	if row[0].Int != 3 || row[1].Str != "x" {
		t.Fatalf("row = %v", row)
	}
}

func TestNumericPromotion(t *testing.T) {
	st := newStore(t)
	rs := run(t, st, "SELECT 2 + 3, 2 * 3, 7 / 2, 1 + 0.5")
	row, _ := rs.Next()
	if row[0].Kind != storage.KindInteger || row[0].Int != 5 {
		t.Fatalf("int add = %+v", row[0])
	}
	if row[1].Kind != storage.KindInteger || row[1].Int != 6 {
		t.Fatalf("int mul = %+v", row[1])
	}
	if row[2].Kind != storage.KindDouble || row[2].Float != 3.5 {
		t.Fatalf("division = %+v, want DOUBLE 3.5", row[2])
	}
	if row[3].Kind != storage.KindDouble || row[3].Float != 1.5 {
		t.Fatalf("mixed add = %+v", row[3])
	}
}

func TestExecErrors(t *testing.T) {
	st := salesStore(t)
	cases := []struct {
		sql  string
		want error
	}{
		{"SELECT * FROM nope", errs.ErrUnknownTable},
		{"SELECT bogus FROM sales", errs.ErrUnknownColumn},
		{"SELECT other.amount FROM sales", errs.ErrUnknownTable},
		{"SELECT amount / 0 FROM sales", errs.ErrValue},
		{"SELECT * FROM sales WHERE region > 1", errs.ErrTypeMismatch},
		{"INSERT INTO sales VALUES (1, 2)", errs.ErrTypeMismatch},
		{"CREATE TABLE sales (x INTEGER)", errs.ErrDuplicateTable},
	}
	for _, c := range cases {
		_, err := tryRun(st, c.sql)
		if !errors.Is(err, c.want) {
			t.Errorf("%q: err = %v, want %v", c.sql, err, c.want)
		}
	}
}

func TestResolutionBeforeExecution(t *testing.T) {
	st := salesStore(t)
	// the bad column reference sits behind a WHERE that matches no
	// rows; resolution still fails up front
	_, err := tryRun(st, "SELECT bogus FROM sales WHERE amount > 1000")
	if !errors.Is(err, errs.ErrUnknownColumn) {
		t.Fatalf("err = %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	st := salesStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stmt, err := NewParser("SELECT * FROM sales").ParseStatement()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Execute(ctx, st, stmt); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestInsertIntegerIntoDoubleColumn(t *testing.T) {
	st := newStore(t)
	run(t, st, "CREATE TABLE m (x DOUBLE)")
	run(t, st, "INSERT INTO m VALUES (3)")
	rs := run(t, st, "SELECT x FROM m")
	row, _ := rs.Next()
	if row[0].Kind != storage.KindDouble || row[0].Float != 3 {
		t.Fatalf("widened value = %+v", row[0])
	}
}

func TestStatementCache(t *testing.T) {
	cache := NewStatementCache(2)
	if _, err := cache.Compile("SELECT 1"); err != nil {
		t.Fatal(err)
	}
	a, _ := cache.Compile("SELECT 1")
	b, _ := cache.Compile("SELECT 1")
	if a != b {
		t.Fatal("cache miss on identical sql")
	}
	cache.Compile("SELECT 2")
	cache.Compile("SELECT 3")
	if cache.Size() != 2 {
		t.Fatalf("size = %d, want 2 after eviction", cache.Size())
	}
	if _, err := cache.Compile("SELEC"); !errors.Is(err, errs.ErrSyntax) {
		t.Fatalf("err = %v", err)
	}
}
