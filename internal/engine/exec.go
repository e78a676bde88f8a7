// Executor for parsed statements.
//
// What: Runs CREATE TABLE, INSERT and SELECT against a storage.Store.
// How: SELECT is a fixed pipeline: resolve identifiers, scan, WHERE,
// GROUP BY, HAVING, projection, DISTINCT, ORDER BY, LIMIT/OFFSET.
// Identifier resolution happens in full before any row is touched so
// that a failing statement leaves no partial effects.
// Why: Row-at-a-time execution over in-memory tables keeps the
// pipeline obvious and the error points exact.
package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// Execute runs one parsed statement. The context is checked between
// pipeline stages; cancellation surfaces as the context's error.
func Execute(ctx context.Context, st *storage.Store, stmt Statement) (*ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch s := stmt.(type) {
	case *CreateTableStmt:
		return execCreateTable(st, s)
	case *InsertStmt:
		return execInsert(st, s)
	case *SelectStmt:
		return execSelect(ctx, st, s)
	}
	return nil, errs.New(errs.Syntax, "unsupported statement")
}

func execCreateTable(st *storage.Store, s *CreateTableStmt) (*ResultSet, error) {
	seen := make(map[string]bool, len(s.Cols))
	for _, c := range s.Cols {
		if seen[c.Name] {
			return nil, errs.Newf(errs.Syntax, "duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	if err := st.CreateTable(s.Name, s.Cols); err != nil {
		return nil, err
	}
	return emptyResultSet(), nil
}

func execInsert(st *storage.Store, s *InsertStmt) (*ResultSet, error) {
	vals := make([]storage.Value, len(s.Values))
	for i, e := range s.Values {
		v, err := eval(e, constScope{})
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if err := st.Insert(s.Table, vals); err != nil {
		return nil, err
	}
	return emptyResultSet(), nil
}

// projected pairs an output row with its ORDER BY sort keys, computed
// during projection so that sorting after DISTINCT still sees them.
type projected struct {
	row  Row
	keys []storage.Value
}

func execSelect(ctx context.Context, st *storage.Store, s *SelectStmt) (*ResultSet, error) {
	if s.From == "" {
		return execConstSelect(s)
	}

	table, err := st.Catalog().Lookup(s.From)
	if err != nil {
		return nil, err
	}
	if err := resolveSelect(s, table); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := scanFiltered(table, s.Where)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, err := outputColumns(s, table)
	if err != nil {
		return nil, err
	}

	var projs []projected
	if isAggregateQuery(s) {
		projs, err = projectGrouped(s, table, rows)
	} else {
		projs, err = projectRows(s, table, rows)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.Distinct {
		projs = distinct(projs)
	}
	if len(s.OrderBy) > 0 {
		if err := orderRows(projs, s.OrderBy); err != nil {
			return nil, err
		}
	}
	projs = applyLimit(projs, s.Limit, s.Offset)

	out := make([]Row, len(projs))
	for i, p := range projs {
		out[i] = p.row
	}
	return newResultSet(cols, out), nil
}

// execConstSelect evaluates a FROM-less statement: one output row of
// constant expressions.
func execConstSelect(s *SelectStmt) (*ResultSet, error) {
	if len(s.GroupBy) > 0 || s.Where != nil || s.Having != nil {
		return nil, errs.New(errs.Syntax, "clause requires FROM")
	}
	cols := make([]string, 0, len(s.Projs))
	row := make(Row, 0, len(s.Projs))
	for _, item := range s.Projs {
		if item.Star {
			return nil, errs.New(errs.Syntax, "* requires FROM")
		}
		v, err := eval(item.Expr, constScope{})
		if err != nil {
			return nil, err
		}
		cols = append(cols, itemName(item, ""))
		row = append(row, v)
	}
	rows := []Row{row}
	if s.Limit == 0 || s.Offset > 0 {
		rows = nil
	}
	return newResultSet(cols, rows), nil
}

// resolveSelect checks every identifier in the statement against the
// table before execution starts.
func resolveSelect(s *SelectStmt, table *storage.Table) error {
	var exprs []Expr
	for _, item := range s.Projs {
		if !item.Star {
			exprs = append(exprs, item.Expr)
		}
	}
	if s.Where != nil {
		exprs = append(exprs, s.Where)
	}
	exprs = append(exprs, s.GroupBy...)
	if s.Having != nil {
		exprs = append(exprs, s.Having)
	}
	for _, o := range s.OrderBy {
		if ref, ok := o.Expr.(*ColumnRef); ok && ref.Table == "" {
			// may name an output column instead of a table column
			if nameMatchesOutput(ref.Name, s) {
				continue
			}
		}
		exprs = append(exprs, o.Expr)
	}
	for _, e := range exprs {
		if err := resolveExpr(e, table); err != nil {
			return err
		}
	}
	return nil
}

func nameMatchesOutput(name string, s *SelectStmt) bool {
	for _, item := range s.Projs {
		if item.Alias == name {
			return true
		}
	}
	return false
}

func resolveExpr(e Expr, table *storage.Table) error {
	switch n := e.(type) {
	case *Literal:
		return nil
	case *ColumnRef:
		if n.Table != "" && n.Table != table.Name {
			return errs.Newf(errs.UnknownTable, "no such table %q", n.Table)
		}
		_, err := table.ColIndex(n.Name)
		return err
	case *Unary:
		return resolveExpr(n.X, table)
	case *Binary:
		if err := resolveExpr(n.L, table); err != nil {
			return err
		}
		return resolveExpr(n.R, table)
	case *IsNull:
		return resolveExpr(n.X, table)
	case *FuncCall:
		for _, a := range n.Args {
			if err := resolveExpr(a, table); err != nil {
				return err
			}
		}
		return nil
	}
	return errs.New(errs.Syntax, "unsupported expression")
}

// scanFiltered applies WHERE row at a time. Rows pass only when the
// condition is TRUE; FALSE and NULL both drop the row.
func scanFiltered(table *storage.Table, where Expr) ([][]storage.Value, error) {
	var out [][]storage.Value
	it := table.Scan()
	for {
		row, ok := it.Next()
		if !ok {
			return out, nil
		}
		if where != nil {
			v, err := eval(where, &rowScope{table: table, row: row})
			if err != nil {
				return nil, err
			}
			if v.IsNull() {
				continue
			}
			pass, err := truth(v)
			if err != nil {
				return nil, err
			}
			if !pass {
				continue
			}
		}
		out = append(out, row)
	}
}

func isAggregateQuery(s *SelectStmt) bool {
	if len(s.GroupBy) > 0 || s.Having != nil {
		return true
	}
	for _, item := range s.Projs {
		if !item.Star && containsAggregate(item.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch n := e.(type) {
	case *FuncCall:
		if isAggregate(n.Name) {
			return true
		}
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *Binary:
		return containsAggregate(n.L) || containsAggregate(n.R)
	case *Unary:
		return containsAggregate(n.X)
	case *IsNull:
		return containsAggregate(n.X)
	}
	return false
}

// outputColumns derives result column names: qualified table.column
// for stars and direct references, the alias when given, and the
// rendered expression for other computed projections.
func outputColumns(s *SelectStmt, table *storage.Table) ([]string, error) {
	var cols []string
	for _, item := range s.Projs {
		if item.Star {
			if isAggregateQuery(s) {
				return nil, errs.New(errs.Syntax, "* cannot be combined with GROUP BY or aggregates")
			}
			for _, c := range table.Cols {
				cols = append(cols, table.Name+"."+c.Name)
			}
			continue
		}
		cols = append(cols, itemName(item, table.Name))
	}
	return cols, nil
}

func itemName(item SelectItem, tableName string) string {
	if item.Alias != "" {
		return item.Alias
	}
	if ref, ok := item.Expr.(*ColumnRef); ok && tableName != "" {
		return tableName + "." + ref.Name
	}
	return item.Expr.String()
}

// projectRows evaluates the projection list per source row and
// computes ORDER BY keys alongside.
func projectRows(s *SelectStmt, table *storage.Table, rows [][]storage.Value) ([]projected, error) {
	out := make([]projected, 0, len(rows))
	for _, src := range rows {
		sc := &rowScope{table: table, row: src}
		var row Row
		for _, item := range s.Projs {
			if item.Star {
				row = append(row, src...)
				continue
			}
			v, err := eval(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		keys, err := sortKeys(s, sc, row)
		if err != nil {
			return nil, err
		}
		out = append(out, projected{row: row, keys: keys})
	}
	return out, nil
}

// projectGrouped partitions rows by the GROUP BY key in first
// occurrence order, applies HAVING, and projects one row per group.
// Without GROUP BY there is exactly one group, even over zero rows.
func projectGrouped(s *SelectStmt, table *storage.Table, rows [][]storage.Value) ([]projected, error) {
	groups := make(map[string][][]storage.Value)
	var orderKeys []string

	if len(s.GroupBy) == 0 {
		orderKeys = append(orderKeys, "")
		groups[""] = rows
	} else {
		for _, row := range rows {
			sc := &rowScope{table: table, row: row}
			key, err := groupKey(s.GroupBy, sc)
			if err != nil {
				return nil, err
			}
			if _, ok := groups[key]; !ok {
				orderKeys = append(orderKeys, key)
			}
			groups[key] = append(groups[key], row)
		}
	}

	out := make([]projected, 0, len(orderKeys))
	for _, key := range orderKeys {
		grp := groups[key]
		sc := &groupScope{table: table, rows: grp}

		if s.Having != nil {
			v, err := eval(s.Having, sc)
			if err != nil {
				return nil, err
			}
			if v.IsNull() {
				continue
			}
			pass, err := truth(v)
			if err != nil {
				return nil, err
			}
			if !pass {
				continue
			}
		}

		var row Row
		for _, item := range s.Projs {
			v, err := eval(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		keys, err := sortKeys(s, sc, row)
		if err != nil {
			return nil, err
		}
		out = append(out, projected{row: row, keys: keys})
	}
	return out, nil
}

// writeKeyPart appends an injective encoding of one value: a kind
// marker (keeps 1 and '1' apart), the rendered length, and the
// rendered text. The length prefix keeps values containing any
// delimiter byte from colliding across tuple boundaries.
func writeKeyPart(b *strings.Builder, v storage.Value) {
	switch v.Kind {
	case storage.KindNull:
		b.WriteByte('n')
	case storage.KindInteger:
		b.WriteByte('i')
	case storage.KindDouble:
		b.WriteByte('d')
	case storage.KindText:
		b.WriteByte('t')
	}
	s := v.String()
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// groupKey renders the GROUP BY values into a map key.
func groupKey(exprs []Expr, sc scope) (string, error) {
	var b strings.Builder
	for _, e := range exprs {
		v, err := eval(e, sc)
		if err != nil {
			return "", err
		}
		writeKeyPart(&b, v)
	}
	return b.String(), nil
}

// sortKeys evaluates the ORDER BY expressions for one output row.
// A bare name matching a projection alias sorts on the output value;
// everything else is evaluated in the row or group scope.
func sortKeys(s *SelectStmt, sc scope, row Row) ([]storage.Value, error) {
	if len(s.OrderBy) == 0 {
		return nil, nil
	}
	keys := make([]storage.Value, len(s.OrderBy))
	for i, o := range s.OrderBy {
		if ref, ok := o.Expr.(*ColumnRef); ok && ref.Table == "" {
			if idx := projIndexByAlias(s, ref.Name); idx >= 0 {
				keys[i] = row[idx]
				continue
			}
		}
		v, err := eval(o.Expr, sc)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

func projIndexByAlias(s *SelectStmt, name string) int {
	for i, item := range s.Projs {
		if item.Alias == name {
			return i
		}
	}
	return -1
}

// distinct keeps the first occurrence of each row.
func distinct(projs []projected) []projected {
	seen := make(map[string]bool, len(projs))
	out := projs[:0]
	for _, p := range projs {
		var b strings.Builder
		for _, v := range p.row {
			writeKeyPart(&b, v)
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// orderRows sorts stably so that equal keys keep their prior order.
// NULL keys sort before everything ascending and after everything
// descending.
func orderRows(projs []projected, order []OrderItem) error {
	var sortErr error
	sort.SliceStable(projs, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for k, o := range order {
			a, b := projs[i].keys[k], projs[j].keys[k]
			c, err := compareForSort(a, b)
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

func compareForSort(a, b storage.Value) (int, error) {
	switch {
	case a.IsNull() && b.IsNull():
		return 0, nil
	case a.IsNull():
		return -1, nil
	case b.IsNull():
		return 1, nil
	}
	return storage.Compare(a, b)
}

func applyLimit(projs []projected, limit, offset int) []projected {
	if offset > 0 {
		if offset >= len(projs) {
			return nil
		}
		projs = projs[offset:]
	}
	if limit >= 0 && limit < len(projs) {
		projs = projs[:limit]
	}
	return projs
}

// groupScope resolves plain column references against the group's
// first row and computes aggregates over all of its rows.
type groupScope struct {
	table *storage.Table
	rows  [][]storage.Value
}

func (g *groupScope) col(ref *ColumnRef) (storage.Value, error) {
	if ref.Table != "" && ref.Table != g.table.Name {
		return storage.Value{}, errs.Newf(errs.UnknownTable, "no such table %q", ref.Table)
	}
	i, err := g.table.ColIndex(ref.Name)
	if err != nil {
		return storage.Value{}, err
	}
	if len(g.rows) == 0 {
		return storage.Null(), nil
	}
	return g.rows[0][i], nil
}

func (g *groupScope) agg(fc *FuncCall) (storage.Value, bool, error) {
	v, err := g.compute(fc)
	if err != nil {
		return storage.Value{}, true, err
	}
	return v, true, nil
}

func (g *groupScope) compute(fc *FuncCall) (storage.Value, error) {
	if fc.Star {
		return storage.Integer(int64(len(g.rows))), nil
	}
	if len(fc.Args) != 1 {
		return storage.Value{}, errs.Newf(errs.Syntax, "%s takes one argument", fc.Name)
	}

	var vals []storage.Value
	for _, row := range g.rows {
		v, err := eval(fc.Args[0], &rowScope{table: g.table, row: row})
		if err != nil {
			return storage.Value{}, err
		}
		if v.IsNull() {
			continue
		}
		vals = append(vals, v)
	}

	switch fc.Name {
	case "COUNT":
		return storage.Integer(int64(len(vals))), nil

	case "SUM", "AVG":
		if len(vals) == 0 {
			return storage.Null(), nil
		}
		var sum float64
		var isum int64
		allInt := true
		for _, v := range vals {
			f, ok := v.AsDouble()
			if !ok {
				return storage.Value{}, errs.Newf(errs.TypeMismatch, "%s requires numeric values", fc.Name)
			}
			sum += f
			if v.Kind == storage.KindInteger {
				isum += v.Int
			} else {
				allInt = false
			}
		}
		if fc.Name == "AVG" {
			return storage.Double(sum / float64(len(vals))), nil
		}
		if allInt {
			return storage.Integer(isum), nil
		}
		return storage.Double(sum), nil

	case "MIN", "MAX":
		if len(vals) == 0 {
			return storage.Null(), nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c, err := storage.Compare(v, best)
			if err != nil {
				return storage.Value{}, err
			}
			if (fc.Name == "MIN" && c < 0) || (fc.Name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	}
	return storage.Value{}, errs.Newf(errs.Syntax, "unknown aggregate %s", fc.Name)
}
