// Package query compiles a validated join plan and column mapping into the
// source read query, and streams its result set page by page. Each page is
// an independent statement, so a retry never resumes a half-consumed cursor.
package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/plan"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

// Query is a compiled, dialect-checked source read.
type Query struct {
	plan    *plan.Plan
	columns []config.ColumnPair
	dialect db.Dialect
}

// Compile validates the column mapping against the plan and checks every
// join type against the source dialect. It fails fast: no statement is
// issued before the whole migration spec has passed through here.
func Compile(p *plan.Plan, mapping config.ColumnMapping, dialect db.Dialect) (*Query, error) {
	pairs := mapping.Pairs()
	if len(pairs) == 0 {
		return nil, srvErrors.NewInvalidColumnReferenceError("column mapping is empty")
	}

	seenSource := make(map[string]struct{}, len(pairs))
	seenTarget := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		table, _, ok := splitQualified(pair.Source)
		if !ok {
			return nil, srvErrors.NewInvalidColumnReferenceError(
				"source column %q is not table-qualified", pair.Source)
		}
		if !p.Has(table) {
			return nil, srvErrors.NewInvalidColumnReferenceError(
				"source column %q references table %q which is neither the root table nor joined",
				pair.Source, table)
		}
		if pair.Target == "" {
			return nil, srvErrors.NewInvalidColumnReferenceError(
				"source column %q maps to an empty target column", pair.Source)
		}
		if _, ok := seenSource[pair.Source]; ok {
			return nil, srvErrors.NewInvalidColumnReferenceError(
				"source column %q is mapped twice", pair.Source)
		}
		if _, ok := seenTarget[pair.Target]; ok {
			return nil, srvErrors.NewInvalidColumnReferenceError(
				"target column %q is mapped twice", pair.Target)
		}
		seenSource[pair.Source] = struct{}{}
		seenTarget[pair.Target] = struct{}{}
	}

	for _, j := range p.Joins {
		if j.Type == plan.JoinFull && !dialect.SupportsFullJoin() {
			return nil, srvErrors.NewUnsupportedJoinTypeError(string(j.Type), string(dialect))
		}
	}

	return &Query{plan: p, columns: pairs, dialect: dialect}, nil
}

// orderColumns returns the target aliases in mapping order. The first mapped
// column leads the page ordering; the rest break ties, since nothing requires
// the leading column to be unique.
func (q *Query) orderColumns() []string {
	cols := make([]string, 0, len(q.columns))
	for _, pair := range q.columns {
		cols = append(cols, pair.Target)
	}
	return cols
}

// SelectSQL renders the statement for one page. pageSize 0 renders a single
// unpaginated, unordered statement.
func (q *Query) SelectSQL(page, pageSize uint64) (string, []any, error) {
	cols := make([]string, 0, len(q.columns))
	for _, pair := range q.columns {
		cols = append(cols, fmt.Sprintf("%s AS %s", pair.Source, pair.Target))
	}

	builder := sq.StatementBuilder.
		PlaceholderFormat(q.dialect.Placeholder()).
		Select(cols...).
		From(q.plan.Root)

	for _, j := range q.plan.Joins {
		clause := fmt.Sprintf("%s ON %s", j.Table, j.OnClause)
		switch j.Type {
		case plan.JoinInner:
			builder = builder.InnerJoin(clause)
		case plan.JoinLeft:
			builder = builder.LeftJoin(clause)
		case plan.JoinRight:
			builder = builder.RightJoin(clause)
		case plan.JoinFull:
			builder = builder.JoinClause("FULL JOIN " + clause)
		}
	}

	if pageSize > 0 {
		// Paging re-issues the statement per page, so a total order is
		// required for the pages to tile the result set. Rows identical
		// across every mapped column can still straddle a page boundary.
		builder = builder.OrderBy(q.orderColumns()...)
		if q.dialect == db.DialectMSSQL {
			builder = builder.Suffix(fmt.Sprintf(
				"OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", page*pageSize, pageSize))
		} else {
			builder = builder.Limit(pageSize).Offset(page * pageSize)
		}
	}

	return builder.ToSql()
}

func splitQualified(col string) (table, column string, ok bool) {
	parts := strings.SplitN(col, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
