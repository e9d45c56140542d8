// Package config defines the configuration consumed by the migration engine:
// database connection descriptors, the ordered migration specs, and the
// engine tuning knobs. The YAML layer preserves the document order of
// column mappings because that order defines the target column order.
package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// DatabaseConfig describes one database endpoint. The password is never
// stored in the file, only the name of the environment variable holding it.
type DatabaseConfig struct {
	Type           string `yaml:"type"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	PasswordEnvVar string `yaml:"password_env_var"`
	Database       string `yaml:"database"`
	// Path is used by file-backed engines (sqlite, duckdb); empty means
	// in-memory.
	Path string `yaml:"path"`
}

type Databases struct {
	Source DatabaseConfig `yaml:"source"`
	Target DatabaseConfig `yaml:"target"`
}

// JoinSpec declares one join of the migration's join graph.
type JoinSpec struct {
	Table    string `yaml:"table"`
	OnClause string `yaml:"on_clause"`
	Type     string `yaml:"type"`
}

type WriteMode string

const (
	WriteModeInsert WriteMode = "insert"
	WriteModeUpsert WriteMode = "upsert"
)

func ParseWriteMode(s string) (WriteMode, error) {
	switch s {
	case "", "insert":
		return WriteModeInsert, nil
	case "upsert":
		return WriteModeUpsert, nil
	default:
		return "", fmt.Errorf("invalid write mode: %s", s)
	}
}

// MigrationSpec is one declared migration unit.
type MigrationSpec struct {
	Name              string        `yaml:"name"`
	RootTable         string        `yaml:"root_table"`
	TargetTable       string        `yaml:"target_table"`
	Joins             []JoinSpec    `yaml:"joins"`
	Columns           ColumnMapping `yaml:"column_mapping"`
	TransformFunction string        `yaml:"transform_function"`
	WriteMode         string        `yaml:"write_mode"`
	ConflictColumns   []string      `yaml:"conflict_columns"`
	// Zero means: inherit the engine-wide option.
	PageSize  uint64 `yaml:"page_size"`
	BatchSize int    `yaml:"batch_size"`
}

func (m *MigrationSpec) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("migration name is empty")
	}
	if m.RootTable == "" {
		return fmt.Errorf("migration %q: root_table is empty", m.Name)
	}
	if m.TargetTable == "" {
		return fmt.Errorf("migration %q: target_table is empty", m.Name)
	}
	if m.Columns.Len() == 0 {
		return fmt.Errorf("migration %q: column_mapping is empty", m.Name)
	}
	if _, err := ParseWriteMode(m.WriteMode); err != nil {
		return fmt.Errorf("migration %q: %w", m.Name, err)
	}
	return nil
}

// Config is the root of the parsed configuration file.
type Config struct {
	Databases  Databases       `yaml:"databases"`
	Migrations []MigrationSpec `yaml:"migrations"`
}

func (c *Config) Validate() error {
	if c.Databases.Source.Type == "" {
		return fmt.Errorf("source database configuration is missing")
	}
	if c.Databases.Target.Type == "" {
		return fmt.Errorf("target database configuration is missing")
	}
	seen := make(map[string]struct{}, len(c.Migrations))
	for i := range c.Migrations {
		m := &c.Migrations[i]
		if err := m.Validate(); err != nil {
			return err
		}
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("duplicate migration name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Options are the engine tuning knobs.
type Options struct {
	// PageSize bounds one source read; 0 disables paging.
	PageSize uint64 `default:"500"`
	// BatchSize bounds one target transaction.
	BatchSize int `default:"250"`
	// RetryDelay is the fixed delay before the single page/batch retry.
	RetryDelay time.Duration `default:"500ms"`
	// QueueDepth is the number of pages buffered between read and transform.
	QueueDepth int `default:"2"`
	// MaxErrorRate aborts a migration once failed/(read) exceeds it.
	// 1.0 keeps going no matter what (best effort), 0 fails on the first
	// isolated error.
	MaxErrorRate float64 `default:"1.0"`
}

// DefaultOptions returns Options with every knob at its default.
func DefaultOptions() Options {
	var opts Options
	// defaults.Set errors only on unaddressable input.
	_ = defaults.Set(&opts)
	return opts
}

func (o *Options) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0")
	}
	if o.QueueDepth <= 0 {
		return fmt.Errorf("queue depth must be > 0")
	}
	if o.MaxErrorRate < 0 || o.MaxErrorRate > 1 {
		return fmt.Errorf("max error rate must be within [0, 1]")
	}
	return nil
}
