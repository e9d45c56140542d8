package db

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect identifies a supported database engine and its capabilities.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectMSSQL    Dialect = "mssql"
	DialectSQLite   Dialect = "sqlite"
	DialectDuckDB   Dialect = "duckdb"
)

func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "mssql", "sqlserver":
		return DialectMSSQL, nil
	case "sqlite":
		return DialectSQLite, nil
	case "duckdb":
		return DialectDuckDB, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	case DialectMSSQL:
		return "sqlserver"
	case DialectSQLite:
		return "sqlite"
	case DialectDuckDB:
		return "duckdb"
	}
	return string(d)
}

// Placeholder returns the statement placeholder format of the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	switch d {
	case DialectPostgres:
		return sq.Dollar
	case DialectMSSQL:
		return sq.AtP
	default:
		return sq.Question
	}
}

// SupportsFullJoin reports whether the engine can execute FULL joins.
func (d Dialect) SupportsFullJoin() bool {
	switch d {
	case DialectMySQL, DialectSQLite:
		return false
	default:
		return true
	}
}

// SupportsUpsert reports whether the engine accepts
// INSERT ... ON CONFLICT ... DO UPDATE.
func (d Dialect) SupportsUpsert() bool {
	switch d {
	case DialectPostgres, DialectSQLite, DialectDuckDB:
		return true
	default:
		return false
	}
}
