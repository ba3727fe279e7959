package planner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnmappedField         = errors.New("field is not mapped")
	ErrColumnHasSelection    = errors.New("column field cannot have a selection set")
	ErrJoinMissingSelection  = errors.New("field requires a selection set")
	ErrFieldConflict         = errors.New("response key selects different fields")
	ErrNoRootField           = errors.New("operation selects no root field")
	ErrMultipleRootFields    = errors.New("operation selects more than one root field")
	ErrUnknownRoot           = errors.New("root field is not mapped")
	ErrUnsupportedOperation  = errors.New("only query operations can be compiled")
	ErrUnsupportedDirective  = errors.New("directives are not supported")
	ErrUnsupportedArgument   = errors.New("field arguments are not supported")
	ErrUnknownFragment       = errors.New("unknown fragment")
	ErrFragmentCycle         = errors.New("fragment spreads form a cycle")
	ErrFragmentTypeMismatch  = errors.New("fragment type condition does not match")
	ErrOperationNotFound     = errors.New("operation not found")
	ErrOperationNameRequired = errors.New("operation name required when the document has several operations")
	ErrLimitExceeded         = errors.New("query exceeds compile limits")
	ErrEmptySelection        = errors.New("selection yields no columns")
)

// QueryResolutionError reports a query that cannot be compiled against the
// registry. Err is one of the sentinel errors above.
type QueryResolutionError struct {
	Field  string
	Path   Path
	Err    error
	Detail string
}

func (e *QueryResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("query resolution")
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *QueryResolutionError) Unwrap() error { return e.Err }

func resolutionError(sentinel error, field string, path Path, format string, args ...any) *QueryResolutionError {
	detail := ""
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	return &QueryResolutionError{Field: field, Path: path, Err: sentinel, Detail: detail}
}

// InternalError means the compiler broke one of its own invariants. It is
// never caused by caller input and must not be retried or downgraded.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return "internal compiler error: " + e.Message + ": " + e.Err.Error()
	}
	return "internal compiler error: " + e.Message
}

func (e *InternalError) Unwrap() error { return e.Err }
