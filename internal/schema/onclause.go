package schema

import (
	"errors"
	"fmt"
	"strings"

	"gqljoin/internal/sqlutil"
)

// Placeholder names recognised in condition templates.
const (
	PlaceholderParent = "parent"
	PlaceholderChild  = "child"
	PlaceholderSelf   = "self"
)

type segment struct {
	// placeholder is empty for literal text.
	placeholder string
	text        string
}

// Condition is a pre-parsed SQL boolean template. Placeholders such as
// {parent} are substituted with quoted table aliases at compile time;
// {{ and }} render literal braces.
type Condition struct {
	source   string
	segments []segment
	refs     map[string]bool
}

// ParseCondition parses template, accepting only the given placeholders.
// Brace pairs that do not enclose an identifier are kept as text.
func ParseCondition(template string, allowed ...string) (*Condition, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.New("template is empty")
	}
	permitted := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		permitted[name] = true
	}

	c := &Condition{source: template, refs: make(map[string]bool)}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			c.segments = append(c.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch {
		case ch == '{' && i+1 < len(template) && template[i+1] == '{':
			lit.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(template) && template[i+1] == '}':
			lit.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := template[i+1 : i+1+end]
			if !isPlaceholderName(name) {
				// Not a placeholder token; keep the brace as text.
				lit.WriteByte(ch)
				continue
			}
			if !permitted[name] {
				return nil, fmt.Errorf("unknown placeholder {%s} (allowed: %s)", name, placeholderList(allowed))
			}
			flush()
			c.segments = append(c.segments, segment{placeholder: name})
			c.refs[name] = true
			i += end + 1
		default:
			lit.WriteByte(ch)
		}
	}
	flush()
	return c, nil
}

// Source returns the template text as written.
func (c *Condition) Source() string { return c.source }

// References reports whether the template uses the named placeholder.
func (c *Condition) References(name string) bool { return c.refs[name] }

// Resolve substitutes every placeholder with the quoted alias bound to it.
// A placeholder with no binding is an error.
func (c *Condition) Resolve(bindings map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(c.source) + 16)
	for _, seg := range c.segments {
		if seg.placeholder == "" {
			b.WriteString(seg.text)
			continue
		}
		alias, ok := bindings[seg.placeholder]
		if !ok || alias == "" {
			return "", fmt.Errorf("no alias bound for placeholder {%s} in %q", seg.placeholder, c.source)
		}
		b.WriteString(sqlutil.QuoteIdentifier(alias))
	}
	return b.String(), nil
}

func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (i > 0 && ch >= '0' && ch <= '9') {
			continue
		}
		return false
	}
	return true
}

func placeholderList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = "{" + name + "}"
	}
	return strings.Join(out, ", ")
}
