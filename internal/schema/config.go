// Package schema holds the declarative GraphQL-to-SQL mapping and the
// immutable Registry built from it.
//
// A Config is the raw, user-authored document. Build validates it once,
// resolves every join target and pre-parses every condition template, and
// returns a Registry that is never mutated afterwards and can be shared by
// any number of concurrent compile calls.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the schema document.
type Config struct {
	Types map[string]TypeConfig `yaml:"types"`
}

// TypeConfig maps one GraphQL type to a SQL table.
type TypeConfig struct {
	// FieldName is the top-level selection field that resolves to this type.
	// Types without a field name are only reachable through joins.
	FieldName string `yaml:"field_name"`
	// Table defaults to the snake_case plural of the type name.
	Table string `yaml:"table"`
	// Where is an optional filter template using the {self} placeholder.
	Where   string          `yaml:"where"`
	OrderBy []OrderByConfig `yaml:"order_by"`
	// Limit applies only when the type is the query root.
	Limit  uint64                 `yaml:"limit"`
	Fields map[string]FieldConfig `yaml:"fields"`
}

// OrderByConfig is one ORDER BY term on the type's own table.
type OrderByConfig struct {
	Column    string `yaml:"column"`
	Direction string `yaml:"direction"`
}

// FieldConfig is either a column mapping or a join mapping.
//
// In YAML a column may be written in full ({column: id, alias: user_id}) or
// as a bare string (id: id).
type FieldConfig struct {
	Column string      `yaml:"column"`
	Table  string      `yaml:"table"`
	Alias  string      `yaml:"alias"`
	Join   *JoinConfig `yaml:"join"`
}

// JoinConfig describes a LEFT JOIN to another mapped type.
type JoinConfig struct {
	// Table overrides the target type's table.
	Table string `yaml:"table"`
	// OnClause is a condition template using {parent} and {child}.
	OnClause string `yaml:"on_clause"`
	RootType string `yaml:"root_type"`
}

var (
	fieldConfigKeys = map[string]bool{"column": true, "table": true, "alias": true, "join": true}
	joinConfigKeys  = map[string]bool{"table": true, "on_clause": true, "root_type": true}
)

// UnmarshalYAML accepts both the scalar shorthand and the mapping form.
func (f *FieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = FieldConfig{Column: node.Value}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field mapping must be a string or a mapping", node.Line)
	}
	if err := checkMappingKeys(node, fieldConfigKeys, "field mapping"); err != nil {
		return err
	}
	type plain FieldConfig
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*f = FieldConfig(out)
	return nil
}

// UnmarshalYAML decodes a join mapping, rejecting unknown and duplicate keys.
func (j *JoinConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := checkMappingKeys(node, joinConfigKeys, "join"); err != nil {
		return err
	}
	type plain JoinConfig
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*j = JoinConfig(out)
	return nil
}

// checkMappingKeys applies the decoder's strictness to nodes handed to a
// custom unmarshaler, which node.Decode does not carry over.
func checkMappingKeys(node *yaml.Node, allowed map[string]bool, what string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", node.Line, what)
	}
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !allowed[key.Value] {
			return fmt.Errorf("line %d: field %q not found in %s", key.Line, key.Value, what)
		}
		if line, ok := seen[key.Value]; ok {
			return fmt.Errorf("line %d: mapping key %q already defined at line %d", key.Line, key.Value, line)
		}
		seen[key.Value] = key.Line
	}
	return nil
}
