package planner

import "strings"

// Path is the sequence of response keys from the query root to a field.
// A response key is the field's alias when the query gives one, otherwise
// its name.
type Path []string

// Child returns a new path extended by key. The receiver is not modified.
func (p Path) Child(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// MarshalText renders the path in dotted form.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a dotted path.
func (p *Path) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = nil
		return nil
	}
	*p = strings.Split(string(text), ".")
	return nil
}
