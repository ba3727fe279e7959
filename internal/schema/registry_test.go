package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gqljoin/internal/naming"
)

func mustBuild(t *testing.T, doc string, opts ...BuildOption) *Registry {
	t.Helper()
	cfg, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	reg, err := Build(cfg, opts...)
	require.NoError(t, err)
	return reg
}

func buildErrors(t *testing.T, cfg Config) ConfigErrors {
	t.Helper()
	reg, err := Build(cfg)
	require.Error(t, err)
	assert.Nil(t, reg)
	var errs ConfigErrors
	require.True(t, errors.As(err, &errs), "expected ConfigErrors, got %T", err)
	return errs
}

func TestBuild_Blog(t *testing.T) {
	reg := mustBuild(t, blogSchemaYAML)

	user, ok := reg.Root("user")
	require.True(t, ok)
	assert.Equal(t, "User", user.Name())
	assert.Equal(t, "users", user.Table())
	assert.Equal(t, []string{"id", "name", "posts"}, user.FieldNames())

	name, ok := user.Field("name")
	require.True(t, ok)
	col, ok := name.(ColumnField)
	require.True(t, ok)
	assert.Equal(t, "full_name", col.Column)
	assert.Equal(t, "name", col.OutputName())

	posts, ok := user.Field("posts")
	require.True(t, ok)
	join, ok := posts.(JoinField)
	require.True(t, ok)
	assert.Equal(t, "Post", join.TargetType)
	assert.Equal(t, "posts", join.Table, "join table defaults to the target table")
	assert.Same(t, join.Target, mustType(t, reg, "Post"))

	post := mustType(t, reg, "Post")
	assert.Equal(t, "posts", post.Table(), "table defaults to the plural of the type name")
	require.NotNil(t, post.Where())
	assert.True(t, post.Where().References(PlaceholderSelf))
	assert.Equal(t, []OrderTerm{{Column: "published_at", Descending: true}}, post.OrderBy())
	assert.Equal(t, uint64(50), post.Limit())

	assert.Equal(t, []string{"posts", "user"}, reg.RootFields())
	assert.Len(t, reg.Fingerprint(), 64)
}

func mustType(t *testing.T, reg *Registry, name string) *TypeMapping {
	t.Helper()
	tm, ok := reg.Type(name)
	require.True(t, ok, "type %s not mapped", name)
	return tm
}

func TestRegistry_TypeOf(t *testing.T) {
	reg := mustBuild(t, blogSchemaYAML)
	user := mustType(t, reg, "User")

	root, ok := reg.TypeOf("posts", nil)
	require.True(t, ok)
	assert.Equal(t, "Post", root.Name())

	child, ok := reg.TypeOf("posts", user)
	require.True(t, ok)
	assert.Equal(t, "Post", child.Name())

	_, ok = reg.TypeOf("name", user)
	assert.False(t, ok, "column fields have no type")

	_, ok = reg.TypeOf("missing", user)
	assert.False(t, ok)

	_, ok = reg.TypeOf("comments", nil)
	assert.False(t, ok)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := mustBuild(t, blogSchemaYAML)
	post := mustType(t, reg, "Post")

	terms := post.OrderBy()
	terms[0].Column = "changed"
	assert.Equal(t, "published_at", post.OrderBy()[0].Column)

	names := reg.TypeNames()
	names[0] = "changed"
	assert.Equal(t, "Post", reg.TypeNames()[0])
}

func TestBuild_DuplicateFieldName(t *testing.T) {
	cfg := Config{Types: map[string]TypeConfig{
		"Post": {FieldName: "items", Table: "posts", Fields: map[string]FieldConfig{"title": {Column: "title"}}},
		"Tag":  {FieldName: "items", Table: "tags", Fields: map[string]FieldConfig{"label": {Column: "label"}}},
	}}

	errs := buildErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDuplicateFieldName)
	assert.Equal(t, "Tag", errs[0].Type)
	assert.Contains(t, errs[0].Error(), `"items" is also declared by type Post`)
}

func TestBuild_ValidationMatrix(t *testing.T) {
	post := func(fields map[string]FieldConfig) map[string]TypeConfig {
		return map[string]TypeConfig{
			"Post": {FieldName: "posts", Fields: fields},
		}
	}
	onClause := "{parent}.author_id = {child}.id"

	tests := []struct {
		name     string
		types    map[string]TypeConfig
		sentinel error
		field    string
		contains string
	}{
		{
			name:     "unknown join target",
			types:    post(map[string]FieldConfig{"author": {Join: &JoinConfig{RootType: "User", OnClause: onClause}}}),
			sentinel: ErrUnknownType,
			field:    "author",
			contains: `root_type "User" is not mapped`,
		},
		{
			name:     "join without root_type",
			types:    post(map[string]FieldConfig{"author": {Join: &JoinConfig{OnClause: onClause}}}),
			sentinel: ErrUnknownType,
			field:    "author",
		},
		{
			name:     "both column and join",
			types:    post(map[string]FieldConfig{"author": {Column: "author_id", Join: &JoinConfig{RootType: "Post", OnClause: onClause}}}),
			sentinel: ErrInvalidField,
			field:    "author",
			contains: "both a column and a join",
		},
		{
			name:     "neither column nor join",
			types:    post(map[string]FieldConfig{"title": {}}),
			sentinel: ErrInvalidField,
			field:    "title",
			contains: "neither",
		},
		{
			name:     "alias on join",
			types:    post(map[string]FieldConfig{"parent": {Alias: "p", Join: &JoinConfig{RootType: "Post", OnClause: onClause}}}),
			sentinel: ErrInvalidField,
			field:    "parent",
		},
		{
			name:     "on_clause with unknown placeholder",
			types:    post(map[string]FieldConfig{"parent": {Join: &JoinConfig{RootType: "Post", OnClause: "{parent}.id = {other}.id AND {child}.x = 1"}}}),
			sentinel: ErrInvalidTemplate,
			field:    "parent",
			contains: "{other}",
		},
		{
			name:     "on_clause missing child",
			types:    post(map[string]FieldConfig{"parent": {Join: &JoinConfig{RootType: "Post", OnClause: "{parent}.parent_id IS NOT NULL"}}}),
			sentinel: ErrInvalidTemplate,
			field:    "parent",
			contains: "must reference both",
		},
		{
			name:     "empty on_clause",
			types:    post(map[string]FieldConfig{"parent": {Join: &JoinConfig{RootType: "Post"}}}),
			sentinel: ErrInvalidTemplate,
			field:    "parent",
		},
		{
			name:     "invalid field name",
			types:    post(map[string]FieldConfig{"first-name": {Column: "first_name"}}),
			sentinel: ErrInvalidName,
			field:    "first-name",
		},
		{
			name:     "reserved field name",
			types:    post(map[string]FieldConfig{"__typename": {Column: "kind"}}),
			sentinel: ErrInvalidName,
			field:    "__typename",
		},
		{
			name: "where with parent placeholder",
			types: map[string]TypeConfig{
				"Post": {FieldName: "posts", Where: "{parent}.deleted = false", Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrInvalidTemplate,
		},
		{
			name: "bad order direction",
			types: map[string]TypeConfig{
				"Post": {FieldName: "posts", OrderBy: []OrderByConfig{{Column: "id", Direction: "sideways"}}, Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrInvalidOrderBy,
			contains: "sideways",
		},
		{
			name: "order term without column",
			types: map[string]TypeConfig{
				"Post": {FieldName: "posts", OrderBy: []OrderByConfig{{Direction: "asc"}}, Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrInvalidOrderBy,
		},
		{
			name: "type without fields",
			types: map[string]TypeConfig{
				"Post": {FieldName: "posts"},
			},
			sentinel: ErrInvalidField,
			contains: "maps no fields",
		},
		{
			name: "invalid type name",
			types: map[string]TypeConfig{
				"Blog Post": {FieldName: "posts", Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrInvalidName,
		},
		{
			name: "no root types",
			types: map[string]TypeConfig{
				"Post": {Table: "posts", Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrNoRoots,
		},
		{
			name: "malformed qualified table",
			types: map[string]TypeConfig{
				"Post": {FieldName: "posts", Table: "analytics..posts", Fields: map[string]FieldConfig{"title": {Column: "title"}}},
			},
			sentinel: ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := buildErrors(t, Config{Types: tt.types})
			var matched *ConfigError
			for _, e := range errs {
				if errors.Is(e, tt.sentinel) {
					matched = e
					break
				}
			}
			require.NotNil(t, matched, "no error wraps %v in %v", tt.sentinel, errs)
			if tt.field != "" {
				assert.Equal(t, tt.field, matched.Field)
			}
			if tt.contains != "" {
				assert.Contains(t, matched.Error(), tt.contains)
			}
		})
	}
}

func TestBuild_NoTypes(t *testing.T) {
	_, err := Build(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTypes)
}

func TestBuild_CollectsAllErrorsInOrder(t *testing.T) {
	cfg := Config{Types: map[string]TypeConfig{
		"Zebra": {FieldName: "zebras", Fields: map[string]FieldConfig{"owner": {Join: &JoinConfig{RootType: "Keeper", OnClause: "{parent}.k = {child}.id"}}}},
		"Alpha": {FieldName: "alphas", Fields: map[string]FieldConfig{"b": {}, "a": {}}},
	}}

	errs := buildErrors(t, cfg)
	require.Len(t, errs, 3)
	assert.Equal(t, [][2]string{{"Alpha", "a"}, {"Alpha", "b"}, {"Zebra", "owner"}},
		[][2]string{{errs[0].Type, errs[0].Field}, {errs[1].Type, errs[1].Field}, {errs[2].Type, errs[2].Field}})

	// Identical input, identical report.
	again := buildErrors(t, cfg)
	assert.Equal(t, errs.Error(), again.Error())
}

func TestBuild_SelfJoinAndSchemaQualifiedTable(t *testing.T) {
	reg := mustBuild(t, `
types:
  Employee:
    field_name: employees
    table: hr.employees
    fields:
      name: name
      manager:
        join: { root_type: Employee, on_clause: "{parent}.manager_id = {child}.id" }
`)
	emp := mustType(t, reg, "Employee")
	f, ok := emp.Field("manager")
	require.True(t, ok)
	join := f.(JoinField)
	assert.Same(t, emp, join.Target)
	assert.Equal(t, "hr.employees", join.Table)
}

func TestBuild_JoinOnlyType(t *testing.T) {
	reg := mustBuild(t, `
types:
  Post:
    field_name: posts
    fields:
      title: title
      stats:
        join: { root_type: PostStats, on_clause: "{parent}.id = {child}.post_id" }
  PostStats:
    table: post_stats
    fields:
      views: views
`)
	_, ok := reg.Root("")
	assert.False(t, ok)
	assert.Equal(t, []string{"posts"}, reg.RootFields())
	stats := mustType(t, reg, "PostStats")
	assert.Empty(t, stats.FieldName())
}

func TestBuild_PluralOverrides(t *testing.T) {
	namer := naming.New(naming.Config{PluralOverrides: map[string]string{"status": "status_records"}}, nil)
	reg := mustBuild(t, `
types:
  OrderStatus:
    field_name: orderStatuses
    fields: { code: code }
`, WithNamer(namer))
	assert.Equal(t, "order_status_records", mustType(t, reg, "OrderStatus").Table())
}

func TestFingerprint(t *testing.T) {
	a := mustBuild(t, blogSchemaYAML)
	b := mustBuild(t, blogSchemaYAML)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	changed := mustBuild(t, strings.Replace(blogSchemaYAML, "author_id", "writer_id", 1))
	assert.NotEqual(t, a.Fingerprint(), changed.Fingerprint())

	// An explicit table equal to the default does not change the registry.
	explicit := mustBuild(t, strings.Replace(blogSchemaYAML, "    field_name: posts\n", "    field_name: posts\n    table: posts\n", 1))
	assert.Equal(t, a.Fingerprint(), explicit.Fingerprint())
}
