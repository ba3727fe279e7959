package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints the operation followed by the fragments
// it references, sorted by name. Whitespace, comments and unrelated
// definitions do not affect the result. Unknown fragments are left out so
// that the compiler reports them.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string) {
	doc := &ast.Document{Definitions: []ast.Node{op}}
	for _, name := range referencedFragmentNames(op.SelectionSet, fragments) {
		doc.Definitions = append(doc.Definitions, fragments[name])
	}

	canonical := fmt.Sprint(printer.Print(ast.NewDocument(doc)))
	return canonical, framedSHA256(canonical, effectiveOperationName(op))
}

// referencedFragmentNames returns the known fragments reachable from root,
// following spreads inside fragments.
func referencedFragmentNames(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	seen := make(map[string]struct{})
	var walk func(*ast.SelectionSet)
	walk = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				walk(sel.SelectionSet)
			case *ast.InlineFragment:
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if sel.Name == nil {
					continue
				}
				fragment := fragments[sel.Name.Value]
				if fragment == nil {
					continue
				}
				if _, ok := seen[sel.Name.Value]; ok {
					continue
				}
				seen[sel.Name.Value] = struct{}{}
				walk(fragment.SelectionSet)
			}
		}
	}
	walk(root)
	return slices.Sorted(maps.Keys(seen))
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 length-prefixes every part so that ("ab", "c") and
// ("a", "bc") hash differently.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
