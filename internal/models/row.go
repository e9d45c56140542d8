package models

// Value is a tagged scalar carried through the pipeline. A NULL read from the
// source becomes an absent value, which is distinct from any real empty or
// zero value and survives projection and transform untouched.
type Value struct {
	data    any
	present bool
}

// SomeValue wraps a present value. A nil input is normalized to Absent so a
// driver-level NULL can never masquerade as a present value.
func SomeValue(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{data: v, present: true}
}

// Absent returns the absent-value marker.
func Absent() Value {
	return Value{}
}

func (v Value) IsAbsent() bool { return !v.present }

// Data returns the underlying value, nil when absent.
func (v Value) Data() any { return v.data }

// Row is an insertion-ordered mapping from column name to Value. All target
// rows produced by one migration carry the exact column set of its column
// mapping, in mapping order.
type Row struct {
	order  []string
	values map[string]Value
}

func NewRow() *Row {
	return &Row{values: make(map[string]Value)}
}

// Set stores a value under col. The first Set of a column fixes its position,
// later Sets overwrite in place.
func (r *Row) Set(col string, v Value) {
	if _, ok := r.values[col]; !ok {
		r.order = append(r.order, col)
	}
	r.values[col] = v
}

func (r *Row) Get(col string) (Value, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string {
	cols := make([]string, len(r.order))
	copy(cols, r.order)
	return cols
}

func (r *Row) Len() int { return len(r.order) }

func (r *Row) Clone() *Row {
	out := &Row{
		order:  make([]string, len(r.order)),
		values: make(map[string]Value, len(r.values)),
	}
	copy(out.order, r.order)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Page is one bounded slice of the source result set.
type Page struct {
	Index uint64
	Rows  []*Row
	// Last is set when the page was not full, meaning the source is exhausted.
	Last bool
}
