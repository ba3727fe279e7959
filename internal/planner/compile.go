package planner

import (
	"errors"

	"gqljoin/internal/schema"

	"github.com/graphql-go/graphql/language/ast"
)

// CompiledQuery is the result of compiling one operation. It is never
// modified after Compile returns and may be shared between goroutines.
type CompiledQuery struct {
	SQL           string         `json:"sql"`
	OperationName string         `json:"operation_name,omitempty"`
	Root          TableRef       `json:"root"`
	Columns       []SelectColumn `json:"columns"`
	Joins         []JoinClause   `json:"joins"`
	Aliases       []AliasBinding `json:"aliases"`
	Where         string         `json:"where,omitempty"`
	OrderBy       []string       `json:"order_by,omitempty"`
	Limit         uint64         `json:"limit,omitempty"`
}

type compileOptions struct {
	operationName string
	limits        Limits
}

// Option customizes compilation.
type Option func(*compileOptions)

// WithOperationName selects the operation to compile from a document that
// holds several.
func WithOperationName(name string) Option {
	return func(o *compileOptions) {
		o.operationName = name
	}
}

// WithLimits enforces depth and join limits.
func WithLimits(limits Limits) Option {
	return func(o *compileOptions) {
		o.limits = limits
	}
}

// Compile turns one query operation of doc into a single SQL statement.
// The document is only read. On error no statement is returned; resolution
// problems are *QueryResolutionError and invariant violations *InternalError.
func Compile(reg *schema.Registry, doc *ast.Document, opts ...Option) (*CompiledQuery, error) {
	if reg == nil || doc == nil {
		return nil, errors.New("registry and document are required")
	}

	options := &compileOptions{}
	for _, opt := range opts {
		opt(options)
	}

	op, fragments, err := selectOperation(doc, options.operationName)
	if err != nil {
		return nil, err
	}
	if op.Operation != ast.OperationTypeQuery {
		return nil, resolutionError(ErrUnsupportedOperation, "", nil, "%s", op.Operation)
	}
	if len(op.Directives) > 0 {
		return nil, resolutionError(ErrUnsupportedDirective, "", nil, "@%s on operation", op.Directives[0].Name.Value)
	}

	w := newWalker(reg, fragments, options.limits)
	root, err := w.walkRoot(op)
	if err != nil {
		return nil, err
	}
	if len(w.asm.columns) == 0 {
		return nil, resolutionError(ErrEmptySelection, root.path[0], root.path, "")
	}

	bindings := w.aliases.snapshot()
	if err := w.asm.verify(bindings); err != nil {
		return nil, err
	}
	sql, err := w.asm.render()
	if err != nil {
		return nil, err
	}

	name := ""
	if op.Name != nil {
		name = op.Name.Value
	}
	return &CompiledQuery{
		SQL:           sql,
		OperationName: name,
		Root:          w.asm.root,
		Columns:       w.asm.columns,
		Joins:         w.asm.joins,
		Aliases:       bindings,
		Where:         w.asm.where,
		OrderBy:       w.asm.orderBy,
		Limit:         w.asm.limit,
	}, nil
}

// selectOperation picks the operation to compile and indexes the
// document's fragments.
func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, map[string]*ast.FragmentDefinition, error) {
	var operations []*ast.OperationDefinition
	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, fragments, nil
			}
		}
		return nil, nil, resolutionError(ErrOperationNotFound, "", nil, "%q", operationName)
	}
	switch len(operations) {
	case 0:
		return nil, nil, resolutionError(ErrOperationNotFound, "", nil, "document has no operations")
	case 1:
		return operations[0], fragments, nil
	default:
		return nil, nil, resolutionError(ErrOperationNameRequired, "", nil, "")
	}
}
