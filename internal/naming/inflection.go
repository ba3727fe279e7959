package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize converts a singular word to its plural form.
// Checks custom overrides first, then falls back to the inflection library.
// For snake_case names only the last token is inflected.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}

	idx := strings.LastIndex(word, "_")
	if idx < 0 {
		return inflection.Plural(word)
	}
	head, last := word[:idx+1], word[idx+1:]
	if override, ok := n.config.PluralOverrides[last]; ok {
		return head + override
	}
	return head + inflection.Plural(last)
}
