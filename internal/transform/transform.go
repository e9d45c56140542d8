// Package transform routes each source row through projection and the
// optional caller-supplied transform function into its target row shape.
package transform

import (
	"fmt"
	"sort"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/models"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

// Func transforms one projected target-row fragment. It may read, override
// or add fields. Returning (nil, nil) filters the row out of the migration.
// Functions are invoked single-threaded within one migration and must not
// mutate shared state.
type Func func(row *models.Row) (*models.Row, error)

// Registry is the closed set of named transform functions. It is supplied
// by the caller before a run starts and never mutated by the engine.
type Registry struct {
	fns map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Func)}
}

// Register adds a function under name, replacing any previous entry.
// Registration must finish before the registry is handed to the engine.
func (r *Registry) Register(name string, fn Func) {
	r.fns[name] = fn
}

// Resolve looks up a function by name. Resolution happens once per
// migration, at validation time, so an unknown name fails before any row
// is read.
func (r *Registry) Resolve(name string) (Func, error) {
	fn, ok := r.fns[name]
	if !ok {
		return nil, srvErrors.NewUnknownTransformError(name, r.Names())
	}
	return fn, nil
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project renames a source row into the target shape. Values, including
// absent markers, are copied unchanged; the output column order is the
// mapping's declaration order.
func Project(src *models.Row, mapping config.ColumnMapping) *models.Row {
	out := models.NewRow()
	for _, pair := range mapping.Pairs() {
		v, ok := src.Get(pair.Source)
		if !ok {
			v = models.Absent()
		}
		out.Set(pair.Target, v)
	}
	return out
}

// Apply invokes fn on a projected row, converting a panic into an error so
// one misbehaving row cannot abort the migration.
func Apply(fn Func, row *models.Row) (out *models.Row, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("transform panicked: %v", rec)
		}
	}()
	return fn(row)
}

// RowKey returns the value of the first mapped column of a projected row,
// used to identify the row in diagnostics.
func RowKey(row *models.Row) any {
	cols := row.Columns()
	if len(cols) == 0 {
		return nil
	}
	v, _ := row.Get(cols[0])
	return v.Data()
}
