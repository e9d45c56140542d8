// Package engine wires the join plan, query compiler, transform pipeline
// and batch writer into one migration pipeline, and sequences migrations
// strictly in their declared order.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/models"
	"github.com/creibaud/sqlmorpher/internal/plan"
	"github.com/creibaud/sqlmorpher/internal/query"
	"github.com/creibaud/sqlmorpher/internal/transform"
	"github.com/creibaud/sqlmorpher/internal/writer"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
	"github.com/creibaud/sqlmorpher/pkg/pipeline"
)

type Engine struct {
	source   *db.Conn
	target   *db.Conn
	registry *transform.Registry
	opts     config.Options
	log      *zap.SugaredLogger
}

// New builds an engine over an open source and target connection. The
// registry is read-only from here on; a nil registry is treated as empty.
func New(source, target *db.Conn, registry *transform.Registry, opts config.Options) (*Engine, error) {
	if registry == nil {
		registry = transform.NewRegistry()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		source:   source,
		target:   target,
		registry: registry,
		opts:     opts,
		log:      zap.S().Named("engine"),
	}, nil
}

// Migrate runs every migration in declared order and returns the aggregated
// report. Row- and batch-level failures are accumulated per migration; only
// an unusable connection stops the run early, and migrations that never
// started because of cancellation are reported Cancelled with zero counts.
func (e *Engine) Migrate(ctx context.Context, specs []config.MigrationSpec) *models.Report {
	report := models.NewReport()
	e.log.Infow("starting run", "run_id", report.RunID, "migrations", len(specs))

	stopped := false
	for i := range specs {
		spec := &specs[i]
		if stopped || ctx.Err() != nil {
			report.Append(models.MigrationResult{Name: spec.Name, Status: models.StatusCancelled})
			continue
		}

		res := e.runMigration(ctx, spec)
		report.Append(res)

		if res.Err != nil && srvErrors.IsConnectionError(res.Err) {
			e.log.Errorw("connection unusable, stopping run",
				"migration", spec.Name, "error", res.Err)
			stopped = true
		}
	}

	e.log.Infow("run finished", "run_id", report.RunID, "failed", report.Failed())
	return report
}

func (e *Engine) runMigration(ctx context.Context, spec *config.MigrationSpec) models.MigrationResult {
	res := models.MigrationResult{Name: spec.Name, Status: models.StatusSucceeded}
	log := e.log.With("migration", spec.Name)
	log.Infow("starting migration", "root_table", spec.RootTable, "target_table", spec.TargetTable)

	if ctx.Err() != nil {
		res.Status = models.StatusCancelled
		return res
	}

	// Validation runs in full before any row is touched; a ConfigError here
	// aborts this migration only.
	joinPlan, err := plan.Build(spec.RootTable, spec.Joins)
	if err != nil {
		return e.fail(log, res, err)
	}
	compiled, err := query.Compile(joinPlan, spec.Columns, e.source.Dialect())
	if err != nil {
		return e.fail(log, res, err)
	}
	var fn transform.Func
	if spec.TransformFunction != "" {
		if fn, err = e.registry.Resolve(spec.TransformFunction); err != nil {
			return e.fail(log, res, err)
		}
	}
	mode, err := config.ParseWriteMode(spec.WriteMode)
	if err != nil {
		return e.fail(log, res, srvErrors.NewInvalidWriteModeError("%v", err))
	}
	w, err := writer.New(e.target, writer.Config{
		Table:           spec.TargetTable,
		Columns:         spec.Columns.TargetColumns(),
		Mode:            mode,
		ConflictColumns: spec.ConflictColumns,
		BatchSize:       e.batchSize(spec),
		RetryDelay:      e.opts.RetryDelay,
	})
	if err != nil {
		return e.fail(log, res, err)
	}

	pager := query.NewPager(e.source, compiled, e.pageSize(spec), e.opts.RetryDelay)
	pages := pipeline.Generate(ctx, e.opts.QueueDepth,
		func(ctx context.Context, emit pipeline.Emit[*models.Page]) error {
			for index := uint64(0); ; index++ {
				page, err := pager.Fetch(ctx, index)
				if err != nil {
					return err
				}
				if !emit(page) || page.Last {
					return nil
				}
			}
		})
	defer pages.Stop()

	cancelled := false

consume:
	for result := range pages.C() {
		if result.Err != nil {
			// A page read interrupted by cancellation is a cancellation,
			// not a migration failure.
			if ctx.Err() != nil || errors.Is(result.Err, context.Canceled) {
				cancelled = true
				break
			}
			return e.fail(log, res, result.Err)
		}

		for _, src := range result.Data.Rows {
			res.RowsRead++

			projected := transform.Project(src, spec.Columns)
			out := projected
			if fn != nil {
				var tErr error
				if out, tErr = transform.Apply(fn, projected); tErr != nil {
					res.AddError(models.StageTransform, transform.RowKey(projected), tErr)
					continue
				}
				if out == nil {
					res.RowsFiltered++
					continue
				}
			}
			res.RowsTransformed++

			// Batch commits are never interrupted mid-transaction;
			// cancellation takes effect at the boundary check below.
			if br := w.Push(context.WithoutCancel(ctx), out); br != nil {
				e.applyBatch(&res, br)
				if err := e.checkErrorRate(&res); err != nil {
					return e.fail(log, res, err)
				}
				// batch boundary, cancellation point
				if ctx.Err() != nil {
					cancelled = true
					break consume
				}
			}
		}

		// page boundary: error-rate and cancellation points
		if err := e.checkErrorRate(&res); err != nil {
			return e.fail(log, res, err)
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	// The in-flight batch finishes committing even on cancellation, so a
	// cancelled migration never leaves a half-written batch behind.
	if br := w.Flush(context.WithoutCancel(ctx)); br != nil {
		e.applyBatch(&res, br)
	}

	if cancelled || ctx.Err() != nil {
		res.Status = models.StatusCancelled
		log.Infow("migration cancelled", "rows_read", res.RowsRead, "rows_written", res.RowsWritten)
		return res
	}

	log.Infow("migration finished",
		"rows_read", res.RowsRead,
		"rows_transformed", res.RowsTransformed,
		"rows_filtered", res.RowsFiltered,
		"rows_written", res.RowsWritten,
		"errors", len(res.Errors))
	return res
}

func (e *Engine) applyBatch(res *models.MigrationResult, br *writer.BatchResult) {
	res.RowsWritten += int64(br.Written)
	if br.Err != nil {
		for _, key := range br.FailedKeys {
			res.AddError(models.StageWrite, key, br.Err)
		}
	}
}

func (e *Engine) checkErrorRate(res *models.MigrationResult) error {
	if res.RowsRead == 0 {
		return nil
	}
	rate := float64(res.FailedRows()) / float64(res.RowsRead)
	if rate > e.opts.MaxErrorRate {
		return fmt.Errorf("error rate %.2f exceeds configured maximum %.2f", rate, e.opts.MaxErrorRate)
	}
	return nil
}

func (e *Engine) fail(log *zap.SugaredLogger, res models.MigrationResult, err error) models.MigrationResult {
	log.Errorw("migration failed", "error", err)
	res.Status = models.StatusFailed
	res.Err = err
	return res
}

func (e *Engine) pageSize(spec *config.MigrationSpec) uint64 {
	if spec.PageSize > 0 {
		return spec.PageSize
	}
	return e.opts.PageSize
}

func (e *Engine) batchSize(spec *config.MigrationSpec) int {
	if spec.BatchSize > 0 {
		return spec.BatchSize
	}
	return e.opts.BatchSize
}
