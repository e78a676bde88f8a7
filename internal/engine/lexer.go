// SQL lexer.
//
// What: A whitespace- and comment-aware tokenizer recognizing
// identifiers, keywords, numeric and string literals, and symbols.
// How: Single-pass scanner decoding UTF-8 runes, supporting -- and
// /* */ comments. Keywords are matched case-insensitively against a
// fixed allow-list and uppercased; identifier case is preserved.
// Why: A compact lexer keeps the parser simple and error positions
// exact.
package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tEOF tokenType = iota
	tIdent
	tNumber
	tString
	tSymbol
	tKeyword
)

type token struct {
	Typ tokenType
	Val string
	Pos int
}

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

func (lx *lexer) peek() rune {
	if lx.pos >= len(lx.s) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.s[lx.pos:])
	return r
}

// peekByte looks one byte past the cursor. Only valid for comparing
// against ASCII, which never matches a UTF-8 continuation byte.
func (lx *lexer) peekByte(n int) byte {
	p := lx.pos + n
	if p >= len(lx.s) {
		return 0
	}
	return lx.s[p]
}

func (lx *lexer) next() rune {
	if lx.pos >= len(lx.s) {
		return 0
	}
	r, w := utf8.DecodeRuneInString(lx.s[lx.pos:])
	lx.pos += w
	return r
}

func (lx *lexer) skipWS() {
	for lx.pos < len(lx.s) {
		r, w := utf8.DecodeRuneInString(lx.s[lx.pos:])
		if unicode.IsSpace(r) {
			lx.pos += w
			continue
		}
		// -- line comment
		if r == '-' && lx.peekByte(1) == '-' {
			lx.pos += 2
			for lx.pos < len(lx.s) && lx.s[lx.pos] != '\n' {
				lx.pos++
			}
			continue
		}
		// /* block */
		if r == '/' && lx.peekByte(1) == '*' {
			lx.pos += 2
			for lx.pos < len(lx.s) {
				if lx.s[lx.pos] == '*' && lx.peekByte(1) == '/' {
					lx.pos += 2
					break
				}
				lx.pos++
			}
			continue
		}
		return
	}
}

func (lx *lexer) nextToken() token {
	lx.skipWS()
	start := lx.pos
	if start >= len(lx.s) {
		return token{Typ: tEOF, Pos: start}
	}
	r := lx.peek()
	if r == '\'' {
		return lx.tokenizeString(start)
	}
	if unicode.IsDigit(r) {
		return lx.tokenizeNumber(start)
	}
	if unicode.IsLetter(r) || r == '_' {
		return lx.tokenizeIdentOrKeyword(start)
	}
	return lx.tokenizeSymbol(start)
}

func (lx *lexer) tokenizeString(start int) token {
	lx.next() // opening quote
	var val strings.Builder
	for lx.pos < len(lx.s) {
		ch := lx.next()
		if ch == '\'' {
			if lx.peek() == '\'' {
				lx.next()
				val.WriteRune('\'')
				continue
			}
			break
		}
		val.WriteRune(ch)
	}
	return token{Typ: tString, Val: val.String(), Pos: start}
}

func (lx *lexer) tokenizeNumber(start int) token {
	dot := false
	for lx.pos < len(lx.s) {
		r, w := utf8.DecodeRuneInString(lx.s[lx.pos:])
		if r == '.' && !dot {
			dot = true
			lx.pos += w
			continue
		}
		if !unicode.IsDigit(r) {
			break
		}
		lx.pos += w
	}
	return token{Typ: tNumber, Val: lx.s[start:lx.pos], Pos: start}
}

func (lx *lexer) tokenizeIdentOrKeyword(start int) token {
	for lx.pos < len(lx.s) {
		r, w := utf8.DecodeRuneInString(lx.s[lx.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		lx.pos += w
	}
	word := lx.s[start:lx.pos]
	up := strings.ToUpper(word)
	if isKeyword(up) {
		return token{Typ: tKeyword, Val: up, Pos: start}
	}
	return token{Typ: tIdent, Val: word, Pos: start}
}

func (lx *lexer) tokenizeSymbol(start int) token {
	r := lx.next()
	switch r {
	case '=', '<', '>', '!':
		b := lx.peek()
		if (r == '<' && (b == '=' || b == '>')) || (r == '>' && b == '=') || (r == '!' && b == '=') {
			lx.next()
			return token{Typ: tSymbol, Val: string(r) + string(b), Pos: start}
		}
	}
	return token{Typ: tSymbol, Val: string(r), Pos: start}
}

func isKeyword(up string) bool {
	switch up {
	case "SELECT", "DISTINCT", "FROM", "WHERE", "GROUP", "BY", "HAVING",
		"ORDER", "ASC", "DESC", "LIMIT", "OFFSET", "AS",
		"CREATE", "TABLE", "INSERT", "INTO", "VALUES",
		"INT", "INTEGER", "DOUBLE", "PRECISION", "FLOAT", "VARCHAR", "TEXT", "STRING",
		"AND", "OR", "NOT", "IS", "NULL", "TRUE", "FALSE",
		"COUNT", "SUM", "AVG", "MIN", "MAX",
		"UPPER", "LOWER", "TRIM", "LTRIM", "RTRIM", "REVERSE",
		"LEFT", "RIGHT", "LENGTH", "CONCAT", "ABS", "ROUND":
		return true
	default:
		return false
	}
}
