// Package errs defines the error kinds surfaced by prismdb.
//
// Every failure that crosses the Execute/cursor boundary is an *Error
// carrying one of the kinds below. Callers match kinds with errors.Is
// against the exported sentinel values; the message text is free-form
// and meant for humans.
package errs

import "fmt"

// Kind classifies an error.
type Kind int

const (
	// Syntax reports a lexing or parsing failure.
	Syntax Kind = iota
	// UnknownTable reports a reference to a table that does not exist.
	UnknownTable
	// UnknownColumn reports a reference to a column that does not exist.
	UnknownColumn
	// DuplicateTable reports CREATE TABLE with an existing name.
	DuplicateTable
	// TypeMismatch reports a value incompatible with the expected type.
	TypeMismatch
	// Value reports an out-of-range or otherwise invalid argument.
	Value
	// IO reports a storage failure: open, append, checkpoint, or a
	// corrupt WAL record during replay.
	IO
	// ConnectionClosed reports an operation on a closed connection.
	ConnectionClosed
)

var kindNames = map[Kind]string{
	Syntax:           "syntax error",
	UnknownTable:     "unknown table",
	UnknownColumn:    "unknown column",
	DuplicateTable:   "duplicate table",
	TypeMismatch:     "type mismatch",
	Value:            "invalid value",
	IO:               "io error",
	ConnectionClosed: "connection closed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the concrete error type used across the engine and storage
// layers. Kind is stable; Msg is descriptive; Err optionally wraps an
// underlying cause (typically an *os.PathError or gob decode error).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, errs.ErrSyntax) matches
// any syntax error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrSyntax           = &Error{Kind: Syntax}
	ErrUnknownTable     = &Error{Kind: UnknownTable}
	ErrUnknownColumn    = &Error{Kind: UnknownColumn}
	ErrDuplicateTable   = &Error{Kind: DuplicateTable}
	ErrTypeMismatch     = &Error{Kind: TypeMismatch}
	ErrValue            = &Error{Kind: Value}
	ErrIO               = &Error{Kind: IO}
	ErrConnectionClosed = &Error{Kind: ConnectionClosed}
)

// New returns an error of the given kind with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
