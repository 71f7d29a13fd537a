package prepare

import (
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/catalog"
)

// Code identifies the stage a preparation failed in.
type Code string

const (
	// CodeParse indicates malformed query text.
	CodeParse Code = "PARSE_ERROR"

	// CodeResolution indicates a table name that does not resolve.
	CodeResolution Code = "RESOLUTION_FAILED"

	// CodeValidation indicates a semantically invalid query.
	CodeValidation Code = "VALIDATION_FAILED"

	// CodeTranslation indicates a construct with no relational equivalent.
	CodeTranslation Code = "TRANSLATION_FAILED"

	// CodePlanning indicates no plan reaches the ENUMERABLE convention.
	CodePlanning Code = "PLANNING_FAILED"

	// CodeCompilation indicates the procedure could not be compiled.
	CodeCompilation Code = "COMPILATION_FAILED"

	// CodeExecution indicates a failure while running a prepared plan.
	CodeExecution Code = "EXECUTION_FAILED"
)

// Error is returned by every failing preparation or execution.
//
// Err keeps the component error, so callers can still reach
// sqlparse.ParseError positions, validate.Error identifiers or the
// generated source attached to an enumerable.CompileError.
type Error struct {
	// Code identifies the failing stage.
	Code Code

	// Message is a human-readable description.
	Message string

	// Query is the SQL text or the rendered queryable.
	Query string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, query string, err error) *Error {
	// resolution failures surface from validation and translation alike
	if (code == CodeValidation || code == CodeTranslation) && catalog.IsNotFound(err) {
		code = CodeResolution
	}
	return &Error{Code: code, Message: err.Error(), Query: query, Err: err}
}

// CodeOf returns the code of the *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsParseError reports whether err is a parse failure.
func IsParseError(err error) bool { return CodeOf(err) == CodeParse }

// IsResolutionError reports whether err is a name resolution failure.
func IsResolutionError(err error) bool { return CodeOf(err) == CodeResolution }

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool { return CodeOf(err) == CodeValidation }

// IsTranslationError reports whether err is a translation failure.
func IsTranslationError(err error) bool { return CodeOf(err) == CodeTranslation }

// IsPlanningError reports whether err is a planning failure.
func IsPlanningError(err error) bool { return CodeOf(err) == CodePlanning }

// IsCompilationError reports whether err is a compilation failure.
func IsCompilationError(err error) bool { return CodeOf(err) == CodeCompilation }

// IsExecutionError reports whether err is an execution failure.
func IsExecutionError(err error) bool { return CodeOf(err) == CodeExecution }
