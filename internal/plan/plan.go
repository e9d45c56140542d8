// Package plan validates and linearizes the declared joins of a migration
// into an ordered join plan rooted at the migration's root table.
//
// Validation is presence-based: the tables referenced by an on-clause are
// discovered by scanning for table-qualified identifiers, not by parsing the
// predicate into an AST. Every referenced table must be the root table, a
// previously declared join, or the table being joined. Join order in the
// emitted query follows declaration order, never an optimizer-chosen order.
package plan

import (
	"regexp"
	"strings"

	"github.com/creibaud/sqlmorpher/internal/config"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// ParseJoinType normalizes a declared join type. An empty declaration means
// INNER.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INNER":
		return JoinInner, nil
	case "LEFT", "LEFT OUTER":
		return JoinLeft, nil
	case "RIGHT", "RIGHT OUTER":
		return JoinRight, nil
	case "FULL", "FULL OUTER":
		return JoinFull, nil
	default:
		return "", srvErrors.NewUnknownJoinTypeError(s)
	}
}

// Join is one validated entry of the plan.
type Join struct {
	Table    string
	OnClause string
	Type     JoinType
}

// Plan is the ordered, validated join plan of one migration.
type Plan struct {
	Root  string
	Joins []Join

	tables map[string]struct{}
}

// Has reports whether table is the root or one of the joined tables.
func (p *Plan) Has(table string) bool {
	_, ok := p.tables[table]
	return ok
}

var qualifiedRef = regexp.MustCompile(`(\w+)\.(\w+)`)

// Build validates the declared joins and produces the ordered plan.
func Build(rootTable string, joins []config.JoinSpec) (*Plan, error) {
	p := &Plan{
		Root:   rootTable,
		tables: map[string]struct{}{rootTable: {}},
	}

	for _, j := range joins {
		if j.Table == "" || j.OnClause == "" {
			return nil, srvErrors.NewBrokenJoinGraphError(
				"each join must declare a table and an on_clause")
		}
		if p.Has(j.Table) {
			return nil, srvErrors.NewDuplicateJoinTargetError(j.Table)
		}

		joinType, err := ParseJoinType(j.Type)
		if err != nil {
			return nil, err
		}

		refs := qualifiedRef.FindAllStringSubmatch(j.OnClause, -1)
		if len(refs) == 0 {
			return nil, srvErrors.NewBrokenJoinGraphError(
				"on_clause %q of join %q references no table-qualified column", j.OnClause, j.Table)
		}
		for _, ref := range refs {
			table := ref[1]
			if table != j.Table && !p.Has(table) {
				return nil, srvErrors.NewBrokenJoinGraphError(
					"table %q referenced in on_clause %q before being joined", table, j.OnClause)
			}
		}

		p.Joins = append(p.Joins, Join{Table: j.Table, OnClause: j.OnClause, Type: joinType})
		p.tables[j.Table] = struct{}{}
	}

	return p, nil
}
