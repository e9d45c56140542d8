package models

import (
	"github.com/google/uuid"
)

// Stage identifies the pipeline stage an isolated row-level error occurred
// in. Read failures are fatal for the migration and surface as the result's
// Err, never as a staged row error.
type Stage string

const (
	StageTransform Stage = "transform"
	StageWrite     Stage = "write"
)

type MigrationStatus string

const (
	StatusSucceeded MigrationStatus = "succeeded"
	StatusFailed    MigrationStatus = "failed"
	StatusCancelled MigrationStatus = "cancelled"
)

// RowError is one isolated row- or batch-level failure. RowKey is the value
// of the first mapped column of the affected row, for diagnostics only.
type RowError struct {
	Stage   Stage
	RowKey  any
	Message string
}

// MigrationResult aggregates the outcome of a single migration. A migration
// with isolated row or batch failures still reports StatusSucceeded; Err is
// set only when the migration was aborted by a fatal error.
type MigrationResult struct {
	Name            string
	Status          MigrationStatus
	RowsRead        int64
	RowsTransformed int64
	RowsFiltered    int64
	RowsWritten     int64
	Errors          []RowError
	Err             error
}

func (r *MigrationResult) AddError(stage Stage, rowKey any, err error) {
	r.Errors = append(r.Errors, RowError{Stage: stage, RowKey: rowKey, Message: err.Error()})
}

// FailedRows counts rows lost to isolated transform and write failures.
func (r *MigrationResult) FailedRows() int64 {
	return int64(len(r.Errors))
}

// Report is the ordered outcome of a whole run, one result per attempted
// migration.
type Report struct {
	RunID   uuid.UUID
	Results []MigrationResult
}

func NewReport() *Report {
	return &Report{RunID: uuid.New()}
}

func (r *Report) Append(res MigrationResult) {
	r.Results = append(r.Results, res)
}

// Failed reports whether any migration ended in StatusFailed.
func (r *Report) Failed() bool {
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			return true
		}
	}
	return false
}
