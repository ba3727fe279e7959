package schema

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gqljoin/internal/naming"
)

// Registry is the validated, immutable mapping from GraphQL types to SQL
// tables. Every method is safe for concurrent use.
type Registry struct {
	types       map[string]*TypeMapping
	roots       map[string]*TypeMapping
	typeNames   []string
	rootFields  []string
	fingerprint string
}

// TypeMapping is one mapped GraphQL type.
type TypeMapping struct {
	name       string
	fieldName  string
	table      string
	where      *Condition
	orderBy    []OrderTerm
	limit      uint64
	fields     map[string]FieldMapping
	fieldNames []string
}

// FieldMapping is either a ColumnField or a JoinField.
type FieldMapping interface {
	mappedName() string
}

// ColumnField selects one column of the current occurrence's table.
type ColumnField struct {
	Name   string
	Column string
	// Table replaces the occurrence alias as the column qualifier.
	Table string
	// Alias replaces the field name as the output column name.
	Alias string
}

func (c ColumnField) mappedName() string { return c.Name }

// OutputName is the name the column is selected as.
func (c ColumnField) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// JoinField reaches another mapped type through a LEFT JOIN.
type JoinField struct {
	Name       string
	TargetType string
	Target     *TypeMapping
	Table      string
	On         *Condition
}

func (j JoinField) mappedName() string { return j.Name }

// OrderTerm is one ORDER BY column of a type's table.
type OrderTerm struct {
	Column     string
	Descending bool
}

// Direction returns "ASC" or "DESC".
func (o OrderTerm) Direction() string {
	if o.Descending {
		return "DESC"
	}
	return "ASC"
}

func (t *TypeMapping) Name() string { return t.name }

// FieldName is the root selection field for the type, or "" when the type
// is reachable only through joins.
func (t *TypeMapping) FieldName() string { return t.fieldName }

func (t *TypeMapping) Table() string { return t.table }

// Where is the type-level filter, or nil.
func (t *TypeMapping) Where() *Condition { return t.where }

func (t *TypeMapping) OrderBy() []OrderTerm {
	return append([]OrderTerm(nil), t.orderBy...)
}

func (t *TypeMapping) Limit() uint64 { return t.limit }

// Field looks up a GraphQL field on the type.
func (t *TypeMapping) Field(name string) (FieldMapping, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// FieldNames returns the mapped field names in sorted order.
func (t *TypeMapping) FieldNames() []string {
	return append([]string(nil), t.fieldNames...)
}

// Type looks up a mapped type by GraphQL type name.
func (r *Registry) Type(name string) (*TypeMapping, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Root resolves a top-level selection field to its type.
func (r *Registry) Root(fieldName string) (*TypeMapping, bool) {
	t, ok := r.roots[fieldName]
	return t, ok
}

// TypeOf resolves fieldName within parent. A nil parent resolves a root
// field. Column fields have no type and report false.
func (r *Registry) TypeOf(fieldName string, parent *TypeMapping) (*TypeMapping, bool) {
	if parent == nil {
		return r.Root(fieldName)
	}
	f, ok := parent.Field(fieldName)
	if !ok {
		return nil, false
	}
	join, ok := f.(JoinField)
	if !ok {
		return nil, false
	}
	return join.Target, true
}

// TypeNames returns every mapped type name in sorted order.
func (r *Registry) TypeNames() []string {
	return append([]string(nil), r.typeNames...)
}

// RootFields returns every root-eligible field name in sorted order.
func (r *Registry) RootFields() []string {
	return append([]string(nil), r.rootFields...)
}

// Fingerprint identifies the normalised registry contents. Equal
// fingerprints mean identical compile output for identical queries.
func (r *Registry) Fingerprint() string { return r.fingerprint }

// BuildOption customises Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	namer  *naming.Namer
	logger *slog.Logger
}

// WithNamer sets the namer used to derive default table names.
func WithNamer(n *naming.Namer) BuildOption {
	return func(o *buildOptions) {
		o.namer = n
	}
}

// WithLogger sets the logger used while building.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build validates cfg and returns an immutable Registry. Every problem is
// reported at once as ConfigErrors.
func Build(cfg Config, opts ...BuildOption) (*Registry, error) {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.namer == nil {
		options.namer = naming.New(naming.DefaultConfig(), options.logger)
	}

	b := &builder{
		namer: options.namer,
		reg: &Registry{
			types: make(map[string]*TypeMapping, len(cfg.Types)),
			roots: make(map[string]*TypeMapping),
		},
	}
	if len(cfg.Types) == 0 {
		return nil, ConfigErrors{{Err: ErrNoTypes}}
	}

	b.reg.typeNames = sortedKeys(cfg.Types)
	for _, name := range b.reg.typeNames {
		b.declareType(name, cfg.Types[name])
	}
	for _, name := range b.reg.typeNames {
		b.mapFields(b.reg.types[name], cfg.Types[name].Fields)
	}
	if len(b.reg.roots) == 0 {
		b.fail("", "", ErrNoRoots, "")
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	b.reg.rootFields = sortedKeys(b.reg.roots)
	b.reg.fingerprint = fingerprint(b.reg)

	options.logger.Debug("schema registry built",
		slog.Int("types", len(b.reg.types)),
		slog.Int("roots", len(b.reg.roots)),
		slog.String("fingerprint", b.reg.fingerprint),
	)
	return b.reg, nil
}

type builder struct {
	namer *naming.Namer
	reg   *Registry
	errs  ConfigErrors
}

func (b *builder) fail(typeName, fieldName string, sentinel error, format string, args ...any) {
	msg := ""
	if format != "" {
		msg = sentinel.Error() + ": " + fmt.Sprintf(format, args...)
	}
	b.errs = append(b.errs, &ConfigError{Type: typeName, Field: fieldName, Message: msg, Err: sentinel})
}

func (b *builder) declareType(name string, tc TypeConfig) {
	tm := &TypeMapping{
		name:      name,
		fieldName: tc.FieldName,
		table:     strings.TrimSpace(tc.Table),
		limit:     tc.Limit,
		fields:    make(map[string]FieldMapping, len(tc.Fields)),
	}
	b.reg.types[name] = tm

	if !validName(name) {
		b.fail(name, "", ErrInvalidName, "type name %q", name)
	}
	if tm.table == "" {
		tm.table = b.namer.TableName(name)
	}
	if tm.table == "" || strings.Contains(tm.table, "..") || strings.HasPrefix(tm.table, ".") || strings.HasSuffix(tm.table, ".") {
		b.fail(name, "", ErrInvalidField, "invalid table %q", tm.table)
	}

	if tc.FieldName != "" {
		if !validName(tc.FieldName) {
			b.fail(name, "", ErrInvalidName, "field_name %q", tc.FieldName)
		} else if other, exists := b.reg.roots[tc.FieldName]; exists {
			b.fail(name, "", ErrDuplicateFieldName, "field_name %q is also declared by type %s", tc.FieldName, other.name)
		} else {
			b.reg.roots[tc.FieldName] = tm
		}
	}

	if tc.Where != "" {
		cond, err := ParseCondition(tc.Where, PlaceholderSelf)
		if err != nil {
			b.fail(name, "", ErrInvalidTemplate, "where: %v", err)
		} else {
			tm.where = cond
		}
	}

	for i, term := range tc.OrderBy {
		column := strings.TrimSpace(term.Column)
		if column == "" {
			b.fail(name, "", ErrInvalidOrderBy, "term %d has no column", i)
			continue
		}
		var desc bool
		switch strings.ToLower(strings.TrimSpace(term.Direction)) {
		case "", "asc":
		case "desc":
			desc = true
		default:
			b.fail(name, "", ErrInvalidOrderBy, "term %d has direction %q (want asc or desc)", i, term.Direction)
			continue
		}
		tm.orderBy = append(tm.orderBy, OrderTerm{Column: column, Descending: desc})
	}

	if len(tc.Fields) == 0 {
		b.fail(name, "", ErrInvalidField, "type maps no fields")
	}
}

func (b *builder) mapFields(tm *TypeMapping, fields map[string]FieldConfig) {
	tm.fieldNames = sortedKeys(fields)
	for _, fieldName := range tm.fieldNames {
		fc := fields[fieldName]
		if !validName(fieldName) {
			b.fail(tm.name, fieldName, ErrInvalidName, "field name %q", fieldName)
			continue
		}
		switch {
		case fc.Column != "" && fc.Join != nil:
			b.fail(tm.name, fieldName, ErrInvalidField, "field maps both a column and a join")
		case fc.Column == "" && fc.Join == nil:
			b.fail(tm.name, fieldName, ErrInvalidField, "field maps neither a column nor a join")
		case fc.Join != nil:
			if fc.Table != "" || fc.Alias != "" {
				b.fail(tm.name, fieldName, ErrInvalidField, "table and alias apply only to column fields")
				continue
			}
			if join, ok := b.mapJoin(tm, fieldName, fc.Join); ok {
				tm.fields[fieldName] = join
			}
		default:
			tm.fields[fieldName] = ColumnField{
				Name:   fieldName,
				Column: strings.TrimSpace(fc.Column),
				Table:  strings.TrimSpace(fc.Table),
				Alias:  strings.TrimSpace(fc.Alias),
			}
		}
	}
}

func (b *builder) mapJoin(tm *TypeMapping, fieldName string, jc *JoinConfig) (JoinField, bool) {
	ok := true
	target, found := b.reg.types[jc.RootType]
	switch {
	case jc.RootType == "":
		b.fail(tm.name, fieldName, ErrUnknownType, "join has no root_type")
		ok = false
	case !found:
		b.fail(tm.name, fieldName, ErrUnknownType, "join root_type %q is not mapped", jc.RootType)
		ok = false
	}

	cond, err := ParseCondition(jc.OnClause, PlaceholderParent, PlaceholderChild)
	if err != nil {
		b.fail(tm.name, fieldName, ErrInvalidTemplate, "on_clause: %v", err)
		ok = false
	} else if !cond.References(PlaceholderParent) || !cond.References(PlaceholderChild) {
		b.fail(tm.name, fieldName, ErrInvalidTemplate, "on_clause %q must reference both {parent} and {child}", jc.OnClause)
		ok = false
	}
	if !ok {
		return JoinField{}, false
	}

	table := strings.TrimSpace(jc.Table)
	if table == "" {
		table = target.table
	}
	return JoinField{
		Name:       fieldName,
		TargetType: jc.RootType,
		Target:     target,
		Table:      table,
		On:         cond,
	}, true
}

func validName(name string) bool {
	return naming.IsValidName(name) && !naming.IsReservedName(name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
