package schema

import (
	"errors"
	"strings"
)

var (
	ErrEmptyDocument      = errors.New("schema document is empty")
	ErrInvalidDocument    = errors.New("invalid schema document")
	ErrNoTypes            = errors.New("schema defines no types")
	ErrNoRoots            = errors.New("no type declares a field_name")
	ErrInvalidName        = errors.New("invalid GraphQL name")
	ErrDuplicateFieldName = errors.New("duplicate root field_name")
	ErrUnknownType        = errors.New("unknown type")
	ErrInvalidField       = errors.New("invalid field mapping")
	ErrInvalidTemplate    = errors.New("invalid condition template")
	ErrInvalidOrderBy     = errors.New("invalid order_by term")
)

// ConfigError describes one problem with a schema document.
type ConfigError struct {
	Type    string
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("schema config")
	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("invalid configuration")
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigErrors collects every problem found while building a registry.
// Type-level problems come first, then field-level ones, each sorted by name.
type ConfigErrors []*ConfigError

func (e ConfigErrors) Error() string {
	switch len(e) {
	case 0:
		return "schema config: no errors"
	case 1:
		return e[0].Error()
	}
	parts := make([]string, 0, len(e))
	for _, err := range e {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (e ConfigErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}
