// Package engine provides SQL parsing, planning, and execution for
// prismdb.
//
// What: A hand-written parser covering the supported statement forms:
// CREATE TABLE, INSERT, and SELECT with WHERE, GROUP BY, HAVING,
// ORDER BY, LIMIT/OFFSET and DISTINCT.
// How: Recursive descent over the lexer's token stream with standard
// precedence climbing for expressions. Keywords match
// case-insensitively; identifiers keep their case.
// Why: The grammar is small enough that a readable hand-rolled parser
// gives precise error positions without a generator toolchain.
package engine

import (
	"strconv"

	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// Parser holds the lexer and current/peek tokens for recursive
// descent.
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// NewParser creates a parser over one SQL statement.
func NewParser(sql string) *Parser {
	p := &Parser{lx: newLexer(sql)}
	p.cur = p.lx.nextToken()
	p.peek = p.lx.nextToken()
	return p
}

func (p *Parser) next() { p.cur, p.peek = p.peek, p.lx.nextToken() }

func (p *Parser) errf(format string, a ...any) error {
	e := errs.Newf(errs.Syntax, format, a...)
	if p.cur.Typ == tEOF {
		e.Msg += " at end of input"
	} else {
		e.Msg += " near " + strconv.Quote(p.cur.Val) + " at position " + strconv.Itoa(p.cur.Pos)
	}
	return e
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur.Typ == tKeyword && p.cur.Val == kw
}

func (p *Parser) isSymbol(sym string) bool {
	return p.cur.Typ == tSymbol && p.cur.Val == sym
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.errf("expected %s", kw)
	}
	p.next()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.isSymbol(sym) {
		return p.errf("expected %q", sym)
	}
	p.next()
	return nil
}

// acceptKeyword consumes the keyword if present.
func (p *Parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) ident() (string, error) {
	if p.cur.Typ != tIdent {
		return "", p.errf("expected identifier")
	}
	name := p.cur.Val
	p.next()
	return name, nil
}

// ParseStatement parses exactly one statement. A trailing semicolon is
// allowed; anything after it is an error.
func (p *Parser) ParseStatement() (Statement, error) {
	var (
		st  Statement
		err error
	)
	switch {
	case p.isKeyword("CREATE"):
		st, err = p.parseCreateTable()
	case p.isKeyword("INSERT"):
		st, err = p.parseInsert()
	case p.isKeyword("SELECT"):
		st, err = p.parseSelect()
	default:
		return nil, p.errf("expected CREATE, INSERT or SELECT")
	}
	if err != nil {
		return nil, err
	}
	if p.isSymbol(";") {
		p.next()
	}
	if p.cur.Typ != tEOF {
		return nil, p.errf("unexpected input after statement")
	}
	return st, nil
}

func (p *Parser) parseCreateTable() (*CreateTableStmt, error) {
	p.next() // CREATE
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []storage.Column
	for {
		colName, err := p.ident()
		if err != nil {
			return nil, err
		}
		colType, err := p.parseColType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, storage.Column{Name: colName, Type: colType})
		if p.isSymbol(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CreateTableStmt{Name: name, Cols: cols}, nil
}

func (p *Parser) parseColType() (storage.ColType, error) {
	if p.cur.Typ != tKeyword {
		return 0, p.errf("expected column type")
	}
	kw := p.cur.Val
	p.next()
	switch kw {
	case "INT", "INTEGER":
		return storage.IntegerType, nil
	case "FLOAT":
		return storage.DoubleType, nil
	case "DOUBLE":
		p.acceptKeyword("PRECISION")
		return storage.DoubleType, nil
	case "TEXT", "STRING":
		return storage.VarcharType, nil
	case "VARCHAR":
		// optional length, accepted and ignored
		if p.isSymbol("(") {
			p.next()
			if p.cur.Typ != tNumber {
				return 0, p.errf("expected length")
			}
			p.next()
			if err := p.expectSymbol(")"); err != nil {
				return 0, err
			}
		}
		return storage.VarcharType, nil
	}
	return 0, p.errf("unknown column type %s", kw)
}

func (p *Parser) parseInsert() (*InsertStmt, error) {
	p.next() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		vals = append(vals, e)
		if p.isSymbol(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &InsertStmt{Table: table, Values: vals}, nil
}

func (p *Parser) parseSelect() (*SelectStmt, error) {
	p.next() // SELECT
	sel := &SelectStmt{Limit: -1, Offset: -1}
	sel.Distinct = p.acceptKeyword("DISTINCT")

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		sel.Projs = append(sel.Projs, item)
		if p.isSymbol(",") {
			p.next()
			continue
		}
		break
	}

	if p.acceptKeyword("FROM") {
		table, err := p.ident()
		if err != nil {
			return nil, err
		}
		sel.From = table
	}

	if p.acceptKeyword("WHERE") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = e
	}

	if p.isKeyword("GROUP") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.isSymbol(",") {
				p.next()
				continue
			}
			break
		}
	}

	if p.acceptKeyword("HAVING") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = e
	}

	if p.isKeyword("ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			sel.OrderBy = append(sel.OrderBy, item)
			if p.isSymbol(",") {
				p.next()
				continue
			}
			break
		}
	}

	if p.acceptKeyword("LIMIT") {
		n, err := p.parseNonNegativeInt("LIMIT")
		if err != nil {
			return nil, err
		}
		sel.Limit = n
	}
	if p.acceptKeyword("OFFSET") {
		n, err := p.parseNonNegativeInt("OFFSET")
		if err != nil {
			return nil, err
		}
		sel.Offset = n
	}
	return sel, nil
}

func (p *Parser) parseNonNegativeInt(clause string) (int, error) {
	if p.cur.Typ != tNumber {
		return 0, p.errf("expected number after %s", clause)
	}
	n, err := strconv.Atoi(p.cur.Val)
	if err != nil {
		return 0, p.errf("%s must be an integer", clause)
	}
	p.next()
	return n, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.isSymbol("*") {
		p.next()
		return SelectItem{Star: true}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e}
	if p.acceptKeyword("AS") {
		alias, err := p.ident()
		if err != nil {
			return SelectItem{}, err
		}
		item.Alias = alias
	} else if p.cur.Typ == tIdent {
		// bare alias, SQL style
		item.Alias = p.cur.Val
		p.next()
	}
	return item, nil
}

// Expression precedence, loosest first:
// OR, AND, NOT, comparison / IS NULL, additive, multiplicative, unary.

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", X: x}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("IS") {
		p.next()
		negate := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNull{X: left, Negate: negate}, nil
	}
	if p.cur.Typ == tSymbol {
		switch p.cur.Val {
		case "=", "<>", "!=", "<", "<=", ">", ">=":
			op := p.cur.Val
			if op == "!=" {
				op = "<>"
			}
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, L: left, R: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tSymbol && (p.cur.Val == "+" || p.cur.Val == "-") {
		op := p.cur.Val
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tSymbol && (p.cur.Val == "*" || p.cur.Val == "/" || p.cur.Val == "%") {
		op := p.cur.Val
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.isSymbol("-") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// fold negative literals so INSERT values stay constants
		if lit, ok := x.(*Literal); ok {
			switch lit.Val.Kind {
			case storage.KindInteger:
				return &Literal{Val: storage.Integer(-lit.Val.Int)}, nil
			case storage.KindDouble:
				return &Literal{Val: storage.Double(-lit.Val.Float)}, nil
			}
		}
		return &Unary{Op: "-", X: x}, nil
	}
	if p.isSymbol("+") {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Typ {
	case tNumber:
		text := p.cur.Val
		p.next()
		if containsDot(text) {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, p.errf("invalid number %s", text)
			}
			return &Literal{Val: storage.Double(f)}, nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, p.errf("invalid number %s", text)
		}
		return &Literal{Val: storage.Integer(i)}, nil

	case tString:
		s := p.cur.Val
		p.next()
		return &Literal{Val: storage.Text(s)}, nil

	case tKeyword:
		switch p.cur.Val {
		case "NULL":
			p.next()
			return &Literal{Val: storage.Null()}, nil
		case "TRUE":
			p.next()
			return &Literal{Val: storage.Integer(1)}, nil
		case "FALSE":
			p.next()
			return &Literal{Val: storage.Integer(0)}, nil
		case "COUNT", "SUM", "AVG", "MIN", "MAX",
			"UPPER", "LOWER", "TRIM", "LTRIM", "RTRIM", "REVERSE",
			"LEFT", "RIGHT", "LENGTH", "CONCAT", "ABS", "ROUND":
			return p.parseFuncCall()
		}
		return nil, p.errf("unexpected keyword %s", p.cur.Val)

	case tIdent:
		name := p.cur.Val
		p.next()
		if p.isSymbol(".") {
			p.next()
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			return &ColumnRef{Table: name, Name: col}, nil
		}
		return &ColumnRef{Name: name}, nil

	case tSymbol:
		if p.cur.Val == "(" {
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.errf("unexpected token")
}

func (p *Parser) parseFuncCall() (Expr, error) {
	name := p.cur.Val
	p.next()
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	if name == "COUNT" && p.isSymbol("*") {
		p.next()
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &FuncCall{Name: name, Star: true}, nil
	}
	fc := &FuncCall{Name: name}
	if !p.isSymbol(")") {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, arg)
			if p.isSymbol(",") {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return fc, nil
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}
