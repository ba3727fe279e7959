// Package gqlrequest parses GraphQL request text and derives the metadata
// the compiler needs around it: the selected operation, its shape and a
// canonical hash used as a cache key.
package gqlrequest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/location"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// ErrEmptyQuery is returned for a blank query document.
var ErrEmptyQuery = errors.New("query document is empty")

// ParseError is a GraphQL syntax error.
type ParseError struct {
	Message   string
	Locations []location.SourceLocation
	Err       error
}

func (e *ParseError) Error() string {
	if len(e.Locations) > 0 {
		loc := e.Locations[0]
		return fmt.Sprintf("parse query: %s (line %d, column %d)", e.Message, loc.Line, loc.Column)
	}
	return "parse query: " + e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

// Analysis stores a parsed document and metadata about the selected
// operation.
type Analysis struct {
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	FieldCount     int
	SelectionDepth int

	CanonicalOperation string
	OperationHash      string

	// SelectionError is set when no single operation could be chosen. The
	// document is still returned so the compiler can report a typed error.
	SelectionError error
}

// Analyze parses query and selects the operation to compile. Only blank
// and syntactically invalid documents are errors.
func Analyze(query, operationName string) (*Analysis, error) {
	analysis := &Analysis{
		RequestedOperationName: operationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}

	if strings.TrimSpace(query) == "" {
		return analysis, ErrEmptyQuery
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		return analysis, newParseError(err)
	}

	analysis.Document = doc
	analysis.Fragments = buildFragmentMap(doc)

	op, err := selectOperation(doc, operationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis, nil
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = string(op.Operation)

	fields, depth := countFieldsAndDepth(op.SelectionSet, analysis.Fragments, 1, map[string]bool{}, map[string]bool{})
	analysis.FieldCount = fields
	analysis.SelectionDepth = depth

	analysis.CanonicalOperation, analysis.OperationHash = canonicalOperationAndHash(op, analysis.Fragments)
	return analysis, nil
}

func newParseError(err error) *ParseError {
	var gqlErr *gqlerrors.Error
	if errors.As(err, &gqlErr) {
		return &ParseError{Message: gqlErr.Message, Locations: gqlErr.Locations, Err: err}
	}
	return &ParseError{Message: err.Error(), Err: err}
}

func buildFragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	operations := make([]*ast.OperationDefinition, 0)
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(operations) {
	case 1:
		return operations[0], nil
	case 0:
		return nil, errors.New("document does not include an operation")
	default:
		return nil, errors.New("operationName is required when the document has multiple operations")
	}
}

// countFieldsAndDepth walks the selection with fragments inlined. Fragment
// cycles are cut rather than reported; the compiler rejects them.
func countFieldsAndDepth(selectionSet *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, currentDepth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, currentDepth - 1
	}

	maxDepth = currentDepth
	for _, selection := range selectionSet.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth+1, visited, inFlight)
				fields += nestedFields
				maxDepth = max(maxDepth, nestedDepth)
			}
		case *ast.InlineFragment:
			nestedFields, nestedDepth := countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth, visited, inFlight)
			fields += nestedFields
			maxDepth = max(maxDepth, nestedDepth)
		case *ast.FragmentSpread:
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			if name == "" || inFlight[name] || visited[name] {
				continue
			}
			inFlight[name] = true
			visited[name] = true
			if fragment, ok := fragments[name]; ok && fragment != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(fragment.SelectionSet, fragments, currentDepth, visited, inFlight)
				fields += nestedFields
				maxDepth = max(maxDepth, nestedDepth)
			}
			delete(inFlight, name)
		}
	}

	return fields, maxDepth
}
