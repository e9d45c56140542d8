// Package writer accumulates transformed rows into bounded batches and
// commits each batch to the target table in its own transaction. Failure
// isolation is per batch: a batch that fails its single retry is dropped
// and the migration moves on to the next one.
package writer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/models"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

// Config describes one migration's write side.
type Config struct {
	Table string
	// Columns is the target column list in mapping order; every batch row
	// carries exactly this column set.
	Columns         []string
	Mode            config.WriteMode
	ConflictColumns []string
	BatchSize       int
	RetryDelay      time.Duration
}

// BatchResult reports the outcome of one flushed batch.
type BatchResult struct {
	Index   int
	Written int
	// FailedKeys identifies the rows of a failed batch, one key per row.
	FailedKeys []any
	Err        error
}

type Writer struct {
	conn  *db.Conn
	cfg   Config
	buf   []*models.Row
	batch int
	log   *zap.SugaredLogger
}

// New validates the write mode against the target dialect and returns the
// writer. Upsert requires dialect support and a non-empty conflict column
// set; both are checked here, before any row moves.
func New(conn *db.Conn, cfg Config) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if cfg.Mode == config.WriteModeUpsert {
		if !conn.Dialect().SupportsUpsert() {
			return nil, srvErrors.NewInvalidWriteModeError(
				"write mode upsert is not supported by dialect %s", conn.Dialect())
		}
		if len(cfg.ConflictColumns) == 0 {
			return nil, srvErrors.NewInvalidWriteModeError(
				"write mode upsert requires conflict_columns")
		}
	}
	return &Writer{
		conn: conn,
		cfg:  cfg,
		buf:  make([]*models.Row, 0, cfg.BatchSize),
		log:  zap.S().Named("writer").With("table", cfg.Table),
	}, nil
}

// Push buffers one row and flushes when the batch is full. The returned
// result is nil while the batch is still filling.
func (w *Writer) Push(ctx context.Context, row *models.Row) *BatchResult {
	w.buf = append(w.buf, row)
	if len(w.buf) < w.cfg.BatchSize {
		return nil
	}
	return w.flush(ctx)
}

// Flush commits whatever is buffered; called once when the source is
// exhausted. Returns nil when the buffer is empty.
func (w *Writer) Flush(ctx context.Context) *BatchResult {
	if len(w.buf) == 0 {
		return nil
	}
	return w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) *BatchResult {
	rows := w.buf
	w.buf = make([]*models.Row, 0, w.cfg.BatchSize)
	index := w.batch
	w.batch++

	commit := func() (struct{}, error) {
		return struct{}{}, w.commitBatch(ctx, rows)
	}
	_, err := backoff.Retry(ctx, commit,
		backoff.WithBackOff(backoff.NewConstantBackOff(w.cfg.RetryDelay)),
		backoff.WithMaxTries(2),
	)

	res := &BatchResult{Index: index}
	if err != nil {
		w.log.Errorw("batch failed after retry", "batch", index, "rows", len(rows), "error", err)
		res.Err = srvErrors.NewWriteError(index, len(rows), err)
		for _, row := range rows {
			res.FailedKeys = append(res.FailedKeys, firstValue(row))
		}
		return res
	}

	w.log.Debugw("batch committed", "batch", index, "rows", len(rows))
	res.Written = len(rows)
	return res
}

func (w *Writer) commitBatch(ctx context.Context, rows []*models.Row) error {
	stmt, args, err := w.insertSQL(rows)
	if err != nil {
		return err
	}

	tx, err := w.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			w.log.Debugw("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (w *Writer) insertSQL(rows []*models.Row) (string, []any, error) {
	builder := sq.StatementBuilder.
		PlaceholderFormat(w.conn.Dialect().Placeholder()).
		Insert(w.cfg.Table).
		Columns(w.cfg.Columns...)

	for _, row := range rows {
		vals := make([]any, 0, len(w.cfg.Columns))
		for _, col := range w.cfg.Columns {
			v, _ := row.Get(col)
			// absent values insert as NULL
			vals = append(vals, v.Data())
		}
		builder = builder.Values(vals...)
	}

	if w.cfg.Mode == config.WriteModeUpsert {
		builder = builder.Suffix(w.upsertSuffix())
	}

	return builder.ToSql()
}

func (w *Writer) upsertSuffix() string {
	conflict := make(map[string]struct{}, len(w.cfg.ConflictColumns))
	for _, col := range w.cfg.ConflictColumns {
		conflict[col] = struct{}{}
	}
	var updates []string
	for _, col := range w.cfg.Columns {
		if _, ok := conflict[col]; ok {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	target := strings.Join(w.cfg.ConflictColumns, ", ")
	if len(updates) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", target)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", target, strings.Join(updates, ", "))
}

func firstValue(row *models.Row) any {
	cols := row.Columns()
	if len(cols) == 0 {
		return nil
	}
	v, _ := row.Get(cols[0])
	return v.Data()
}
