package db

import (
	"fmt"
	"net/url"
	"os"

	"github.com/creibaud/sqlmorpher/internal/config"
)

type serverDefaults struct {
	host     string
	port     int
	user     string
	database string
}

var dialectDefaults = map[Dialect]serverDefaults{
	DialectPostgres: {host: "localhost", port: 5432, user: "postgres", database: "postgres"},
	DialectMySQL:    {host: "localhost", port: 3306, user: "root"},
	DialectMSSQL:    {host: "localhost", port: 1433, user: "sa"},
}

// DSN builds the driver connection string for a database config. The password
// is resolved from the configured environment variable; it never appears in
// the config file itself.
func DSN(cfg config.DatabaseConfig) (string, error) {
	dialect, err := ParseDialect(cfg.Type)
	if err != nil {
		return "", err
	}

	switch dialect {
	case DialectSQLite:
		if cfg.Path == "" {
			return ":memory:", nil
		}
		return cfg.Path, nil
	case DialectDuckDB:
		// duckdb opens an in-memory database on an empty DSN
		return cfg.Path, nil
	}

	def := dialectDefaults[dialect]
	host := cfg.Host
	if host == "" {
		host = def.host
	}
	port := cfg.Port
	if port == 0 {
		port = def.port
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	user := cfg.User
	if user == "" {
		user = def.user
	}
	database := cfg.Database
	if database == "" {
		database = def.database
	}
	password := ""
	if cfg.PasswordEnvVar != "" {
		password = os.Getenv(cfg.PasswordEnvVar)
	}

	switch dialect {
	case DialectPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(user, password),
			Host:   fmt.Sprintf("%s:%d", host, port),
			Path:   "/" + database,
		}
		return u.String(), nil
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", user, password, host, port, database), nil
	case DialectMSSQL:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(user, password),
			Host:     fmt.Sprintf("%s:%d", host, port),
			RawQuery: url.Values{"database": []string{database}}.Encode(),
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported database type: %s", cfg.Type)
}
