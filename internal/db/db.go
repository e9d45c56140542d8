// Package db opens database connections from configuration and wraps them
// with dialect capabilities and query-level debug logging. The engine never
// manages connection lifecycle beyond what it is handed here.
package db

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/creibaud/sqlmorpher/internal/config"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

// Conn is a dialect-aware connection. Every statement issued through it is
// logged at debug level with its arguments.
type Conn struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.SugaredLogger
}

// Open resolves the DSN, opens the connection and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Conn, error) {
	dialect, err := ParseDialect(cfg.Type)
	if err != nil {
		return nil, srvErrors.NewConnectionError("open", err)
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, srvErrors.NewConnectionError("open", err)
	}
	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, srvErrors.NewConnectionError("open", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, srvErrors.NewConnectionError("ping", err)
	}
	return NewConn(sqlDB, dialect), nil
}

// NewConn wraps an already-open database handle. The caller keeps ownership
// of the handle's lifecycle when using this constructor directly.
func NewConn(sqlDB *sql.DB, dialect Dialect) *Conn {
	return &Conn{
		db:      sqlDB,
		dialect: dialect,
		log:     zap.S().Named("db").With("dialect", string(dialect)),
	}
}

func (c *Conn) Dialect() Dialect { return c.dialect }

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.log.Debugw("query", "sql", query, "args", args)
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	c.log.Debugw("begin tx")
	return c.db.BeginTx(ctx, opts)
}

func (c *Conn) Close() error {
	return c.db.Close()
}
