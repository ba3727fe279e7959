package planner

import (
	"fmt"

	"gqljoin/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// JoinKindLeft is the only join kind the compiler emits.
const JoinKindLeft = "LEFT JOIN"

// TableRef is the FROM table of a compiled query.
type TableRef struct {
	Table    string `json:"table"`
	Alias    string `json:"alias"`
	TypeName string `json:"type"`
}

// SelectColumn is one entry of the SELECT list.
type SelectColumn struct {
	// Alias is the occurrence the column was selected on.
	Alias string `json:"alias"`
	// Qualifier is the table reference rendered before the column. It
	// equals Alias unless the mapping overrides the table.
	Qualifier  string `json:"qualifier"`
	Column     string `json:"column"`
	OutputName string `json:"output_name"`
	Path       Path   `json:"path"`
}

func (c SelectColumn) overridden() bool { return c.Qualifier != c.Alias }

// JoinClause is one LEFT JOIN, in discovery order.
type JoinClause struct {
	Kind     string `json:"kind"`
	Table    string `json:"table"`
	Alias    string `json:"alias"`
	Parent   string `json:"parent"`
	On       string `json:"on"`
	Path     Path   `json:"path"`
	TypeName string `json:"type"`
}

// assembler accumulates SQL parts in visitation order. It never reorders
// or de-duplicates what it is given.
type assembler struct {
	root    TableRef
	columns []SelectColumn
	joins   []JoinClause
	where   string
	orderBy []string
	limit   uint64
}

func (a *assembler) addColumn(c SelectColumn) {
	a.columns = append(a.columns, c)
}

func (a *assembler) addJoin(j JoinClause) {
	a.joins = append(a.joins, j)
}

func (a *assembler) addOrder(alias string, terms []orderTerm) {
	for _, term := range terms {
		a.orderBy = append(a.orderBy, sqlutil.QuoteColumn(alias, term.column)+" "+term.direction)
	}
}

type orderTerm struct {
	column    string
	direction string
}

// verify re-checks alias uniqueness and that every alias is bound before it
// is referenced.
func (a *assembler) verify(bindings []AliasBinding) error {
	bound := make(map[string]bool, len(bindings))
	seen := make(map[occurrenceKey]bool, len(bindings))
	for _, b := range bindings {
		if bound[b.Alias] {
			return &InternalError{Message: fmt.Sprintf("alias %q bound twice", b.Alias)}
		}
		key := occurrenceKey{typeName: b.TypeName, path: b.Path.String()}
		if seen[key] {
			return &InternalError{Message: fmt.Sprintf("occurrence %s at %s bound twice", b.TypeName, b.Path)}
		}
		bound[b.Alias] = true
		seen[key] = true
	}

	if !bound[a.root.Alias] {
		return &InternalError{Message: fmt.Sprintf("root alias %q is not bound", a.root.Alias)}
	}
	inScope := map[string]bool{a.root.Alias: true}
	for _, j := range a.joins {
		if !bound[j.Alias] {
			return &InternalError{Message: fmt.Sprintf("join alias %q is not bound", j.Alias)}
		}
		if inScope[j.Alias] {
			return &InternalError{Message: fmt.Sprintf("alias %q joined twice", j.Alias)}
		}
		if !inScope[j.Parent] {
			return &InternalError{Message: fmt.Sprintf("join %q references parent %q before it is in scope", j.Alias, j.Parent)}
		}
		inScope[j.Alias] = true
	}
	for _, c := range a.columns {
		if !inScope[c.Alias] {
			return &InternalError{Message: fmt.Sprintf("column %s references alias %q outside the FROM clause", c.Column, c.Alias)}
		}
	}
	return nil
}

// render builds the final statement.
func (a *assembler) render() (string, error) {
	columns := make([]string, len(a.columns))
	for i, c := range a.columns {
		qualifier := sqlutil.QuoteIdentifier(c.Qualifier)
		if c.overridden() {
			qualifier = sqlutil.QuoteQualifiedName(c.Qualifier)
		}
		columns[i] = qualifier + "." + sqlutil.QuoteIdentifier(c.Column) + " AS " + sqlutil.QuoteIdentifier(c.OutputName)
	}

	builder := sq.Select(columns...).
		From(tableWithAlias(a.root.Table, a.root.Alias))
	for _, j := range a.joins {
		builder = builder.JoinClause(j.Kind + " " + tableWithAlias(j.Table, j.Alias) + " ON " + j.On)
	}
	if a.where != "" {
		builder = builder.Where(a.where)
	}
	if len(a.orderBy) > 0 {
		builder = builder.OrderBy(a.orderBy...)
	}
	if a.limit > 0 {
		builder = builder.Limit(a.limit)
	}

	query, _, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", &InternalError{Message: "render statement", Err: err}
	}
	return query, nil
}

func tableWithAlias(table, alias string) string {
	return sqlutil.QuoteQualifiedName(table) + " AS " + sqlutil.QuoteIdentifier(alias)
}
