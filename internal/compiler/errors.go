package compiler

import (
	"context"
	"errors"

	"gqljoin/internal/gqlrequest"
	"gqljoin/internal/planner"
)

// ErrSchemaNotReady is returned when no registry has been published yet.
var ErrSchemaNotReady = errors.New("schema not ready")

// Error codes reported to clients and recorded on metrics.
const (
	CodeEmptyQuery     = "empty_query"
	CodeParseError     = "parse_error"
	CodeSchemaNotReady = "schema_not_ready"
	CodeCanceled       = "request_canceled"
	CodeTimeout        = "request_timeout"
	CodeInternal       = "internal_error"
)

var resolutionCodes = []struct {
	err  error
	code string
}{
	{planner.ErrUnmappedField, "unmapped_field"},
	{planner.ErrColumnHasSelection, "column_has_selection"},
	{planner.ErrJoinMissingSelection, "join_missing_selection"},
	{planner.ErrFieldConflict, "field_conflict"},
	{planner.ErrNoRootField, "no_root_field"},
	{planner.ErrMultipleRootFields, "multiple_root_fields"},
	{planner.ErrUnknownRoot, "unknown_root"},
	{planner.ErrUnsupportedOperation, "unsupported_operation"},
	{planner.ErrUnsupportedDirective, "unsupported_directive"},
	{planner.ErrUnsupportedArgument, "unsupported_argument"},
	{planner.ErrUnknownFragment, "unknown_fragment"},
	{planner.ErrFragmentCycle, "fragment_cycle"},
	{planner.ErrFragmentTypeMismatch, "fragment_type_mismatch"},
	{planner.ErrOperationNotFound, "operation_not_found"},
	{planner.ErrOperationNameRequired, "operation_name_required"},
	{planner.ErrLimitExceeded, "limit_exceeded"},
	{planner.ErrEmptySelection, "empty_selection"},
}

// ErrorInfo is the client-facing description of a failed compile.
type ErrorInfo struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Path    []string `json:"path,omitempty"`
	// Internal is true for failures the caller did not cause.
	Internal bool `json:"-"`
}

// Classify maps a compile error to its code and location.
func Classify(err error) ErrorInfo {
	info := ErrorInfo{Code: CodeInternal, Message: err.Error(), Internal: true}

	var resolution *planner.QueryResolutionError
	var parseErr *gqlrequest.ParseError
	var internal *planner.InternalError
	switch {
	case errors.As(err, &internal):
		return info
	case errors.Is(err, ErrSchemaNotReady):
		info.Code = CodeSchemaNotReady
	case errors.Is(err, context.Canceled):
		info.Code = CodeCanceled
		info.Internal = false
	case errors.Is(err, context.DeadlineExceeded):
		info.Code = CodeTimeout
		info.Internal = false
	case errors.Is(err, gqlrequest.ErrEmptyQuery):
		info.Code = CodeEmptyQuery
		info.Internal = false
	case errors.As(err, &parseErr):
		info.Code = CodeParseError
		info.Internal = false
	case errors.As(err, &resolution):
		info.Code = resolutionCode(resolution.Err)
		info.Field = resolution.Field
		info.Path = resolution.Path
		info.Internal = false
	}
	return info
}

// Code returns the error code for err.
func Code(err error) string {
	return Classify(err).Code
}

func resolutionCode(err error) string {
	for _, rc := range resolutionCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "query_resolution"
}
