package validate

import (
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/sqlparse"
)

// Error is a semantic error in a query. Identifier names the unresolved or
// offending object when there is one.
type Error struct {
	Pos        sqlparse.Pos
	Identifier string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsError reports whether err is (or wraps) a validation error.
func IsError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

func errorf(pos sqlparse.Pos, format string, args ...any) *Error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func notFound(pos sqlparse.Pos, name string, err error) *Error {
	return &Error{Pos: pos, Identifier: name, Message: fmt.Sprintf("Object '%s' not found", name), Err: err}
}

func columnNotFound(pos sqlparse.Pos, name string) *Error {
	return &Error{Pos: pos, Identifier: name, Message: fmt.Sprintf("Column '%s' not found in any table", name)}
}
