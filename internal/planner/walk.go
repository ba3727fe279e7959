package planner

import (
	"fmt"
	"slices"
	"strings"

	"gqljoin/internal/schema"

	"github.com/graphql-go/graphql/language/ast"
)

const typenameField = "__typename"

// walker resolves a selection tree against the registry, feeding columns
// and joins to the assembler in visitation order.
type walker struct {
	reg       *schema.Registry
	fragments map[string]*ast.FragmentDefinition
	aliases   *aliasAllocator
	joins     *joinBuilder
	asm       *assembler
	limits    Limits

	joinCount int
	// keys maps each response path to the field selected there.
	keys map[string]string
	// expanded records fragments already inlined at a path. A repeat spread
	// merges into the same fields, so it is skipped.
	expanded map[string]struct{}
}

func newWalker(reg *schema.Registry, fragments map[string]*ast.FragmentDefinition, limits Limits) *walker {
	aliases := newAliasAllocator()
	asm := &assembler{}
	return &walker{
		reg:       reg,
		fragments: fragments,
		aliases:   aliases,
		joins:     &joinBuilder{aliases: aliases, asm: asm},
		asm:       asm,
		limits:    limits,
		keys:      make(map[string]string),
		expanded:  make(map[string]struct{}),
	}
}

type rootSelection struct {
	field  *ast.Field
	spread []string
}

// walkRoot resolves the operation's single top-level field, binds the root
// occurrence and walks everything below it.
func (w *walker) walkRoot(op *ast.OperationDefinition) (occurrence, error) {
	var roots []rootSelection
	if op.SelectionSet != nil {
		err := w.expand(op.SelectionSet.Selections, "", nil, nil, func(field *ast.Field, spread []string) error {
			if field.Name.Value != typenameField {
				roots = append(roots, rootSelection{field: field, spread: spread})
			}
			return nil
		})
		if err != nil {
			return occurrence{}, err
		}
	}

	if len(roots) == 0 {
		return occurrence{}, resolutionError(ErrNoRootField, "", nil, "")
	}
	first := roots[0].field
	name := first.Name.Value
	path := Path{responseKey(first)}
	for _, other := range roots[1:] {
		// Repeats of the same root field merge; anything else is a second root.
		if other.field.Name.Value != name || responseKey(other.field) != path[0] {
			return occurrence{}, resolutionError(ErrMultipleRootFields, "", nil, "%s", rootNames(roots))
		}
	}

	typ, ok := w.reg.Root(name)
	if !ok {
		return occurrence{}, resolutionError(ErrUnknownRoot, name, path, "no type declares field_name %q", name)
	}

	alias, _ := w.aliases.allocate(typ.Name(), typ.Table(), path)
	root := occurrence{typ: typ, alias: alias, path: path, depth: 1}
	if err := w.limits.checkDepth(root.depth, name, path); err != nil {
		return occurrence{}, err
	}

	w.asm.root = TableRef{Table: typ.Table(), Alias: alias, TypeName: typ.Name()}
	if where := typ.Where(); where != nil {
		filter, err := where.Resolve(map[string]string{schema.PlaceholderSelf: alias})
		if err != nil {
			return occurrence{}, &InternalError{Message: "resolve root where", Err: err}
		}
		w.asm.where = filter
	}
	w.asm.addOrder(alias, orderTerms(typ))
	w.asm.limit = typ.Limit()
	w.keys[path.String()] = name

	for _, sel := range roots {
		if len(sel.field.Directives) > 0 {
			return occurrence{}, resolutionError(ErrUnsupportedDirective, name, path, "@%s", sel.field.Directives[0].Name.Value)
		}
		if len(sel.field.Arguments) > 0 {
			return occurrence{}, resolutionError(ErrUnsupportedArgument, name, path, "(%s:)", sel.field.Arguments[0].Name.Value)
		}
		if !hasSelections(sel.field) {
			return occurrence{}, resolutionError(ErrJoinMissingSelection, name, path, "root type %s needs fields to select", typ.Name())
		}
		if err := w.walkSelections(sel.field.SelectionSet.Selections, root, sel.spread); err != nil {
			return occurrence{}, err
		}
	}
	return root, nil
}

func (w *walker) walkSelections(selections []ast.Selection, occ occurrence, spread []string) error {
	return w.expand(selections, occ.typ.Name(), occ.path, spread, func(field *ast.Field, spread []string) error {
		return w.walkField(field, occ, spread)
	})
}

// walkField handles one field selected on occ.
func (w *walker) walkField(field *ast.Field, occ occurrence, spread []string) error {
	name := field.Name.Value
	if name == typenameField {
		return nil
	}
	path := occ.path.Child(responseKey(field))

	if len(field.Directives) > 0 {
		return resolutionError(ErrUnsupportedDirective, name, path, "@%s", field.Directives[0].Name.Value)
	}
	if len(field.Arguments) > 0 {
		return resolutionError(ErrUnsupportedArgument, name, path, "(%s:)", field.Arguments[0].Name.Value)
	}
	mapping, ok := occ.typ.Field(name)
	if !ok {
		return resolutionError(ErrUnmappedField, name, path, "type %s has no field %q", occ.typ.Name(), name)
	}

	pathKey := path.String()
	prev, merged := w.keys[pathKey]
	if merged && prev != name {
		return resolutionError(ErrFieldConflict, name, path, "%q and %q share a response key", prev, name)
	}
	w.keys[pathKey] = name

	switch m := mapping.(type) {
	case schema.ColumnField:
		if hasSelections(field) {
			return resolutionError(ErrColumnHasSelection, name, path, "")
		}
		if merged {
			return nil
		}
		output := m.OutputName()
		if field.Alias != nil && field.Alias.Value != "" {
			output = field.Alias.Value
		}
		qualifier := occ.alias
		if m.Table != "" {
			qualifier = m.Table
		}
		w.asm.addColumn(SelectColumn{
			Alias:      occ.alias,
			Qualifier:  qualifier,
			Column:     m.Column,
			OutputName: output,
			Path:       path,
		})
		return nil

	case schema.JoinField:
		if !hasSelections(field) {
			return resolutionError(ErrJoinMissingSelection, name, path, "join to %s needs fields to select", m.TargetType)
		}
		if err := w.limits.checkDepth(occ.depth+1, name, path); err != nil {
			return err
		}
		child, fresh, err := w.joins.build(occ, m, path)
		if err != nil {
			return err
		}
		if fresh {
			w.joinCount++
			if err := w.limits.checkJoins(w.joinCount, name, path); err != nil {
				return err
			}
		}
		return w.walkSelections(field.SelectionSet.Selections, child, spread)

	default:
		return &InternalError{Message: fmt.Sprintf("field %s.%s has unknown mapping %T", occ.typ.Name(), name, mapping)}
	}
}

// expand visits every field of selections in source order, inlining
// fragments. typeName is the type the selections apply to; an empty name
// skips type-condition checks. spread is the chain of fragment names being
// expanded, used to detect cycles.
func (w *walker) expand(selections []ast.Selection, typeName string, path Path, spread []string, visit func(*ast.Field, []string) error) error {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if err := visit(sel, spread); err != nil {
				return err
			}

		case *ast.InlineFragment:
			if len(sel.Directives) > 0 {
				return resolutionError(ErrUnsupportedDirective, "", path, "@%s on inline fragment", sel.Directives[0].Name.Value)
			}
			if err := checkTypeCondition(sel.TypeCondition, typeName, path, "inline fragment"); err != nil {
				return err
			}
			if sel.SelectionSet == nil {
				continue
			}
			if err := w.expand(sel.SelectionSet.Selections, typeName, path, spread, visit); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			name := sel.Name.Value
			if len(sel.Directives) > 0 {
				return resolutionError(ErrUnsupportedDirective, "", path, "@%s on fragment spread %s", sel.Directives[0].Name.Value, name)
			}
			if slices.Contains(spread, name) {
				return resolutionError(ErrFragmentCycle, "", path, "%s -> %s", strings.Join(spread, " -> "), name)
			}
			def, ok := w.fragments[name]
			if !ok {
				return resolutionError(ErrUnknownFragment, "", path, "%s", name)
			}
			if len(def.Directives) > 0 {
				return resolutionError(ErrUnsupportedDirective, "", path, "@%s on fragment %s", def.Directives[0].Name.Value, name)
			}
			if err := checkTypeCondition(def.TypeCondition, typeName, path, "fragment "+name); err != nil {
				return err
			}
			if def.SelectionSet == nil {
				continue
			}
			seen := path.String() + "\x00" + typeName + "\x00" + name
			if _, ok := w.expanded[seen]; ok {
				continue
			}
			w.expanded[seen] = struct{}{}
			nested := append(slices.Clip(spread), name)
			if err := w.expand(def.SelectionSet.Selections, typeName, path, nested, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkTypeCondition(cond *ast.Named, typeName string, path Path, what string) error {
	if typeName == "" || cond == nil || cond.Name == nil {
		return nil
	}
	if cond.Name.Value != typeName {
		return resolutionError(ErrFragmentTypeMismatch, "", path, "%s applies to %s, selection is on %s", what, cond.Name.Value, typeName)
	}
	return nil
}

func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	return field.Name.Value
}

func hasSelections(field *ast.Field) bool {
	return field.SelectionSet != nil && len(field.SelectionSet.Selections) > 0
}

func rootNames(roots []rootSelection) string {
	names := make([]string, len(roots))
	for i, r := range roots {
		names[i] = responseKey(r.field)
	}
	return strings.Join(names, ", ")
}
