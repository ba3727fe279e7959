package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
)

// fingerprint hashes a canonical rendering of the registry. Every part is
// length-framed so that adjacent values cannot run together.
func fingerprint(r *Registry) string {
	h := sha256.New()
	for _, name := range r.typeNames {
		tm := r.types[name]
		writeFramed(h, "type", tm.name, tm.fieldName, tm.table, conditionSource(tm.where), strconv.FormatUint(tm.limit, 10))
		for _, term := range tm.orderBy {
			writeFramed(h, "order", term.Column, term.Direction())
		}
		for _, fieldName := range tm.fieldNames {
			switch f := tm.fields[fieldName].(type) {
			case ColumnField:
				writeFramed(h, "column", f.Name, f.Column, f.Table, f.Alias)
			case JoinField:
				writeFramed(h, "join", f.Name, f.TargetType, f.Table, conditionSource(f.On))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFramed(h hash.Hash, parts ...string) {
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	_, _ = h.Write([]byte{'\n'})
}

func conditionSource(c *Condition) string {
	if c == nil {
		return ""
	}
	return c.Source()
}
