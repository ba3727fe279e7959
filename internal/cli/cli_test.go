package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliSchema = `
types:
  User:
    field_name: user
    table: users
    fields:
      id: id
      name: name
      posts:
        join: { root_type: Post, on_clause: "{parent}.id = {child}.author_id" }
  Post:
    table: posts
    fields:
      title: title
      author:
        join: { root_type: User, on_clause: "{parent}.author_id = {child}.id" }
  Person:
    field_name: person
    fields:
      id: id
`

const userPostsSQL = `SELECT "users"."name" AS "name", "posts"."title" AS "title" FROM "users" AS "users" LEFT JOIN "posts" AS "posts" ON "users".id = "posts".author_id`

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	cmd := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestCompile_QuerySources(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	queryPath := writeFile(t, "query.graphql", `{ user { name posts { title } } }`)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "argument", args: []string{"--schema", schemaPath, `{ user { name posts { title } } }`}},
		{name: "stdin", stdin: `{ user { name posts { title } } }`, args: []string{"--schema", schemaPath}},
		{name: "dash forces stdin", stdin: `{ user { name posts { title } } }`, args: []string{"-s", schemaPath, "-"}},
		{name: "query file", args: []string{"--schema", schemaPath, "--query-file", queryPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, tt.stdin, tt.args...)
			require.NoError(t, res.err, res.stderr)
			assert.Equal(t, userPostsSQL+"\n", res.stdout)
			assert.Equal(t, ExitSuccess, ExitCode(res.err))
		})
	}
}

func TestCompile_JSONFormat(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	res := execute(t, "", "--schema", schemaPath, "--format", "json",
		"--operation", "Names", `query Names { user { name } } query Other { user { id } }`)
	require.NoError(t, res.err, res.stderr)

	var out struct {
		SQL               string `json:"sql"`
		OperationName     string `json:"operation_name"`
		OperationHash     string `json:"operation_hash"`
		SchemaFingerprint string `json:"schema_fingerprint"`
		Columns           []json.RawMessage `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, `SELECT "users"."name" AS "name" FROM "users" AS "users"`, out.SQL)
	assert.Equal(t, "Names", out.OperationName)
	assert.NotEmpty(t, out.OperationHash)
	assert.NotEmpty(t, out.SchemaFingerprint)
	assert.Len(t, out.Columns, 1)
}

func TestCompile_PluralOverride(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	res := execute(t, "", "--schema", schemaPath, "--plural", "person=folks", `{ person { id } }`)
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, `SELECT "folks"."id" AS "id" FROM "folks" AS "folks"`+"\n", res.stdout)
}

func TestCompile_Errors(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	queryPath := writeFile(t, "query.graphql", `{ user { id } }`)

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{
			name:       "unmapped field",
			args:       []string{"--schema", schemaPath, `{ user { posts { body } } }`},
			wantCode:   ExitFailure,
			wantStderr: "error [unmapped_field]",
		},
		{
			name:       "depth limit",
			args:       []string{"--schema", schemaPath, "--max-depth", "2", `{ user { posts { author { name } } } }`},
			wantCode:   ExitFailure,
			wantStderr: "error [limit_exceeded]",
		},
		{
			name:       "parse error",
			args:       []string{"--schema", schemaPath, `{ user { `},
			wantCode:   ExitFailure,
			wantStderr: "error [parse_error]",
		},
		{
			name:     "argument and query file",
			args:     []string{"--schema", schemaPath, "--query-file", queryPath, `{ user { id } }`},
			wantCode: ExitCommandError,
		},
		{
			name:     "missing schema",
			args:     []string{"--schema", filepath.Join(t.TempDir(), "missing.yaml"), `{ user { id } }`},
			wantCode: ExitCommandError,
		},
		{
			name:     "invalid format",
			args:     []string{"--schema", schemaPath, "--format", "xml", `{ user { id } }`},
			wantCode: ExitCommandError,
		},
		{
			name:     "too many arguments",
			args:     []string{"--schema", schemaPath, `{ user { id } }`, "extra"},
			wantCode: ExitCommandError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, "", tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, tt.wantCode, ExitCode(res.err))
			if tt.wantStderr != "" {
				assert.Contains(t, res.stderr, tt.wantStderr)
				assert.True(t, Reported(res.err))
			}
		})
	}
}

func TestCompile_ErrorPathInText(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	res := execute(t, "", "--schema", schemaPath, `{ user { posts { body } } }`)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "(at user.posts.body)")
	assert.Empty(t, res.stdout)
}

func TestCompile_JSONError(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)
	res := execute(t, "", "--schema", schemaPath, "-f", "json", `{ user { name { first } } }`)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, ExitCode(res.err))

	var out struct {
		Error struct {
			Code  string   `json:"code"`
			Field string   `json:"field"`
			Path  []string `json:"path"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, "column_has_selection", out.Error.Code)
	assert.Equal(t, "name", out.Error.Field)
	assert.Equal(t, []string{"user", "name"}, out.Error.Path)
}

func TestSchemaCommand(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", cliSchema)

	res := execute(t, "", "schema", "--schema", schemaPath)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "fingerprint")
	assert.Contains(t, res.stdout, "User")
	assert.Contains(t, res.stdout, "-> Post ON {parent}.id = {child}.author_id")

	res = execute(t, "", "schema", "--schema", schemaPath, "--format", "json")
	require.NoError(t, res.err, res.stderr)
	var desc struct {
		Types []struct {
			Name  string `json:"name"`
			Table string `json:"table"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &desc))
	require.Len(t, desc.Types, 3)
	assert.Equal(t, "Person", desc.Types[0].Name)
	assert.Equal(t, "people", desc.Types[0].Table)
}

func TestSchemaCommand_InvalidDocument(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", "types:\n  User:\n    fields: {}\n")
	res := execute(t, "", "schema", "--schema", schemaPath)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, ExitCode(res.err))
}

func TestVersionCommand(t *testing.T) {
	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "gqljoin test\n", res.stdout)
}

func TestRootFlags(t *testing.T) {
	cmd := NewRootCommand("test")
	for _, name := range []string{"schema", "format", "log-level", "plural"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	for _, name := range []string{"operation", "query-file", "max-depth", "max-joins"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "o", cmd.Flags().Lookup("operation").Shorthand)
}
