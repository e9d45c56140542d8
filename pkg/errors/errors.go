// Package errors defines the typed error taxonomy of the migration engine.
//
// Config errors are detected before any row moves and abort the affected
// migration. Connection errors abort the run when the connection itself is
// unusable. Query errors are fatal for the current migration after one page
// retry. Transform and write errors are isolated (per row, per batch) and
// surface only in the final report.
package errors

import (
	"errors"
	"fmt"
)

type ConfigErrorKind string

const (
	KindBrokenJoinGraph        ConfigErrorKind = "broken_join_graph"
	KindDuplicateJoinTarget    ConfigErrorKind = "duplicate_join_target"
	KindUnknownTransform       ConfigErrorKind = "unknown_transform"
	KindInvalidColumnReference ConfigErrorKind = "invalid_column_reference"
	KindUnsupportedJoinType    ConfigErrorKind = "unsupported_join_type"
	KindInvalidWriteMode       ConfigErrorKind = "invalid_write_mode"
)

// ConfigError reports a semantic problem in a migration spec.
type ConfigError struct {
	Kind    ConfigErrorKind
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %s", e.Kind, e.Message)
}

func NewBrokenJoinGraphError(format string, args ...any) *ConfigError {
	return &ConfigError{Kind: KindBrokenJoinGraph, Message: fmt.Sprintf(format, args...)}
}

func NewDuplicateJoinTargetError(table string) *ConfigError {
	return &ConfigError{
		Kind:    KindDuplicateJoinTarget,
		Message: fmt.Sprintf("table %q is joined more than once", table),
	}
}

func NewUnknownTransformError(name string, available []string) *ConfigError {
	return &ConfigError{
		Kind:    KindUnknownTransform,
		Message: fmt.Sprintf("transform function %q not found in registry, available: %v", name, available),
	}
}

func NewInvalidColumnReferenceError(format string, args ...any) *ConfigError {
	return &ConfigError{Kind: KindInvalidColumnReference, Message: fmt.Sprintf(format, args...)}
}

func NewUnsupportedJoinTypeError(joinType, dialect string) *ConfigError {
	return &ConfigError{
		Kind:    KindUnsupportedJoinType,
		Message: fmt.Sprintf("join type %s is not supported by dialect %s", joinType, dialect),
	}
}

func NewUnknownJoinTypeError(joinType string) *ConfigError {
	return &ConfigError{
		Kind:    KindUnsupportedJoinType,
		Message: fmt.Sprintf("unknown join type %q, expected one of INNER, LEFT, RIGHT, FULL", joinType),
	}
}

func NewInvalidWriteModeError(format string, args ...any) *ConfigError {
	return &ConfigError{Kind: KindInvalidWriteMode, Message: fmt.Sprintf(format, args...)}
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigKind returns the kind of a config error, or "" for any other error.
func ConfigKind(err error) ConfigErrorKind {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// ConnectionError reports a failure of the connection itself, as opposed to
// a failure of a specific statement.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}

func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// QueryError reports a source read failure that survived the page retry.
type QueryError struct {
	Page uint64
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error on page %d: %v", e.Page, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func NewQueryError(page uint64, err error) *QueryError {
	return &QueryError{Page: page, Err: err}
}

func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// TransformError reports a single row rejected by a transform function.
// RowKey holds the value of the first mapped column, for diagnostics only.
type TransformError struct {
	RowKey any
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform error for row %v: %v", e.RowKey, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func NewTransformError(rowKey any, err error) *TransformError {
	return &TransformError{RowKey: rowKey, Err: err}
}

func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// WriteError reports a batch that failed to commit after its retry.
type WriteError struct {
	Batch int
	Rows  int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error on batch %d (%d rows): %v", e.Batch, e.Rows, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func NewWriteError(batch, rows int, err error) *WriteError {
	return &WriteError{Batch: batch, Rows: rows, Err: err}
}

func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
