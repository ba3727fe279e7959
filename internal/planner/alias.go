package planner

import (
	"strconv"

	"gqljoin/internal/sqlutil"
)

// AliasBinding records the alias allocated to one (type, path) occurrence.
type AliasBinding struct {
	TypeName string `json:"type"`
	Path     Path   `json:"path"`
	Alias    string `json:"alias"`
}

type occurrenceKey struct {
	typeName string
	path     string
}

// aliasAllocator hands out table aliases for one compile call. The first
// occurrence of a table gets its bare name, later ones get _2, _3 and so on
// in discovery order.
type aliasAllocator struct {
	bindings []AliasBinding
	byKey    map[occurrenceKey]int
	used     map[string]bool
	next     map[string]int
}

func newAliasAllocator() *aliasAllocator {
	return &aliasAllocator{
		byKey: make(map[occurrenceKey]int),
		used:  make(map[string]bool),
		next:  make(map[string]int),
	}
}

// allocate returns the alias for (typeName, path). fresh is false when the
// occurrence was already bound, which happens when a query selects the same
// response key twice.
func (a *aliasAllocator) allocate(typeName, table string, path Path) (alias string, fresh bool) {
	key := occurrenceKey{typeName: typeName, path: path.String()}
	if idx, ok := a.byKey[key]; ok {
		return a.bindings[idx].Alias, false
	}

	base := sqlutil.BaseName(table)
	for {
		n := a.next[base] + 1
		a.next[base] = n
		alias = base
		if n > 1 {
			alias = base + "_" + strconv.Itoa(n)
		}
		if !a.used[alias] {
			break
		}
	}

	a.used[alias] = true
	a.byKey[key] = len(a.bindings)
	a.bindings = append(a.bindings, AliasBinding{TypeName: typeName, Path: path, Alias: alias})
	return alias, true
}

// snapshot returns the bindings in allocation order.
func (a *aliasAllocator) snapshot() []AliasBinding {
	return append([]AliasBinding(nil), a.bindings...)
}
