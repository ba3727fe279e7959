package planner

import (
	"gqljoin/internal/schema"
)

// occurrence is one table reference in the statement being built.
type occurrence struct {
	typ   *schema.TypeMapping
	alias string
	path  Path
	depth int
}

// joinBuilder turns join fields into LEFT JOIN clauses.
type joinBuilder struct {
	aliases *aliasAllocator
	asm     *assembler
}

// build binds the child occurrence reached from parent through field and
// emits its join clause. A child already bound at path is returned with
// fresh set to false and no second clause.
func (b *joinBuilder) build(parent occurrence, field schema.JoinField, path Path) (occurrence, bool, error) {
	alias, fresh := b.aliases.allocate(field.TargetType, field.Table, path)
	child := occurrence{typ: field.Target, alias: alias, path: path, depth: parent.depth + 1}
	if !fresh {
		return child, false, nil
	}

	on, err := field.On.Resolve(map[string]string{
		schema.PlaceholderParent: parent.alias,
		schema.PlaceholderChild:  alias,
	})
	if err != nil {
		return occurrence{}, false, &InternalError{Message: "resolve on_clause for " + path.String(), Err: err}
	}
	if where := field.Target.Where(); where != nil {
		filter, err := where.Resolve(map[string]string{schema.PlaceholderSelf: alias})
		if err != nil {
			return occurrence{}, false, &InternalError{Message: "resolve where for " + path.String(), Err: err}
		}
		on = "(" + on + ") AND (" + filter + ")"
	}

	b.asm.addJoin(JoinClause{
		Kind:     JoinKindLeft,
		Table:    field.Table,
		Alias:    alias,
		Parent:   parent.alias,
		On:       on,
		Path:     path,
		TypeName: field.TargetType,
	})
	b.asm.addOrder(alias, orderTerms(field.Target))
	return child, true, nil
}

func orderTerms(t *schema.TypeMapping) []orderTerm {
	terms := t.OrderBy()
	out := make([]orderTerm, len(terms))
	for i, term := range terms {
		out[i] = orderTerm{column: term.Column, direction: term.Direction()}
	}
	return out
}
