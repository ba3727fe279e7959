package naming

import (
	"regexp"
	"strings"
)

var graphqlNamePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// IsValidName reports whether name is a syntactically valid GraphQL name.
func IsValidName(name string) bool {
	return graphqlNamePattern.MatchString(name)
}

// IsReservedName reports whether name uses the "__" prefix GraphQL reserves
// for introspection.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, "__")
}
