package query

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/models"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

// Pager fetches the compiled query one page at a time. A failed page fetch
// is retried once after a fixed delay, then surfaces as a QueryError that
// aborts the migration.
type Pager struct {
	conn       *db.Conn
	query      *Query
	pageSize   uint64
	retryDelay time.Duration
	log        *zap.SugaredLogger
}

func NewPager(conn *db.Conn, q *Query, pageSize uint64, retryDelay time.Duration) *Pager {
	return &Pager{
		conn:       conn,
		query:      q,
		pageSize:   pageSize,
		retryDelay: retryDelay,
		log:        zap.S().Named("pager"),
	}
}

// Fetch reads page index. The returned page reports Last when the source is
// exhausted; with paging disabled the single page is always the last one.
func (p *Pager) Fetch(ctx context.Context, index uint64) (*models.Page, error) {
	fetch := func() (*models.Page, error) {
		return p.fetchOnce(ctx, index)
	}
	page, err := backoff.Retry(ctx, fetch,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.retryDelay)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return nil, srvErrors.NewQueryError(index, err)
	}
	return page, nil
}

func (p *Pager) fetchOnce(ctx context.Context, index uint64) (*models.Page, error) {
	stmt, args, err := p.query.SelectSQL(index, p.pageSize)
	if err != nil {
		return nil, err
	}

	rows, err := p.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions, err := p.resolveColumns(rows)
	if err != nil {
		return nil, err
	}

	page := &models.Page{Index: index}
	scanned := make([]any, len(positions))
	for rows.Next() {
		ptrs := make([]any, len(scanned))
		for i := range scanned {
			scanned[i] = nil
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := models.NewRow()
		for i, pair := range p.query.columns {
			// SomeValue maps a NULL scan to the absent marker.
			row.Set(pair.Source, models.SomeValue(scanned[positions[i]]))
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page.Last = p.pageSize == 0 || uint64(len(page.Rows)) < p.pageSize
	return page, nil
}

// resolveColumns maps each mapped column to its position in the result set.
// Resolution is by result column name against the target aliases; position
// is trusted only when the driver does not report usable names.
func (p *Pager) resolveColumns(rows *sql.Rows) ([]int, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	positions := make([]int, len(p.query.columns))
	byName := true
	for i, pair := range p.query.columns {
		pos := -1
		for j, name := range names {
			if strings.EqualFold(name, pair.Target) {
				pos = j
				break
			}
		}
		if pos < 0 {
			byName = false
			break
		}
		positions[i] = pos
	}
	if byName {
		return positions, nil
	}

	p.log.Debugw("driver did not return mapped column names, falling back to positional resolution",
		"returned", names)
	if len(names) != len(p.query.columns) {
		return nil, srvErrors.NewInvalidColumnReferenceError(
			"result set has %d columns, expected %d", len(names), len(p.query.columns))
	}
	for i := range positions {
		positions[i] = i
	}
	return positions, nil
}
