// Package dataset holds the tabular containers that flow through salescope.
//
// Table is the heterogeneous, column-oriented view of raw and cleaned sales
// records. Frame is the dense numeric matrix handed to the regressors, with
// its column names kept alongside so prediction input can be reindexed to the
// training layout.
package dataset

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Text columns hold strings; "" marks a missing cell.
	Text Kind = iota
	// Numeric columns hold float64; NaN marks a missing cell.
	Numeric
	// Time columns hold timestamps; the zero time marks a missing cell.
	Time
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Numeric:
		return "numeric"
	case Time:
		return "time"
	default:
		return "unknown"
	}
}

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsMissingToken reports whether a raw cell denotes a missing value.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumber converts a raw cell to float64. Missing tokens and
// unparseable text report ok=false.
func ParseNumber(s string) (float64, bool) {
	if IsMissingToken(s) {
		return math.NaN(), false
	}
	v, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// Column is an immutable, named slice of cells of a single Kind.
type Column struct {
	name  string
	kind  Kind
	text  []string
	nums  []float64
	times []time.Time
}

// NewTextColumn creates a text column. The slice is copied.
func NewTextColumn(name string, values []string) *Column {
	return &Column{name: name, kind: Text, text: append([]string(nil), values...)}
}

// NewNumericColumn creates a numeric column. The slice is copied.
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: Numeric, nums: append([]float64(nil), values...)}
}

// NewTimeColumn creates a time column. The slice is copied.
func NewTimeColumn(name string, values []time.Time) *Column {
	return &Column{name: name, kind: Time, times: append([]time.Time(nil), values...)}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the storage type.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of cells.
func (c *Column) Len() int {
	switch c.kind {
	case Numeric:
		return len(c.nums)
	case Time:
		return len(c.times)
	default:
		return len(c.text)
	}
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	switch c.kind {
	case Numeric:
		return math.IsNaN(c.nums[i])
	case Time:
		return c.times[i].IsZero()
	default:
		return c.text[i] == ""
	}
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// String renders cell i as text. Missing cells render as "".
func (c *Column) String(i int) string {
	switch c.kind {
	case Numeric:
		if math.IsNaN(c.nums[i]) {
			return ""
		}
		return cast.ToString(c.nums[i])
	case Time:
		if c.times[i].IsZero() {
			return ""
		}
		return c.times[i].Format(time.RFC3339)
	default:
		return c.text[i]
	}
}

// Float returns cell i as a number. Text cells are parsed; time cells
// return their Unix seconds. Missing or unparseable cells return NaN.
func (c *Column) Float(i int) float64 {
	switch c.kind {
	case Numeric:
		return c.nums[i]
	case Time:
		if c.times[i].IsZero() {
			return math.NaN()
		}
		return float64(c.times[i].Unix())
	default:
		v, _ := ParseNumber(c.text[i])
		return v
	}
}

// TimeAt returns cell i of a time column, or the zero time for other kinds.
func (c *Column) TimeAt(i int) time.Time {
	if c.kind != Time {
		return time.Time{}
	}
	return c.times[i]
}

// Strings returns every cell rendered as text.
func (c *Column) Strings() []string {
	if c.kind == Text {
		return append([]string(nil), c.text...)
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.String(i)
	}
	return out
}

// Floats returns every cell as a number (see Float).
func (c *Column) Floats() []float64 {
	if c.kind == Numeric {
		return append([]float64(nil), c.nums...)
	}
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// Times returns a copy of a time column's cells; nil for other kinds.
func (c *Column) Times() []time.Time {
	if c.kind != Time {
		return nil
	}
	return append([]time.Time(nil), c.times...)
}

// Rename returns a copy of the column under a new name.
func (c *Column) Rename(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// Table is an ordered set of equal-length columns. Tables are never mutated
// in place; With and Without return new tables sharing untouched columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewTable builds a table. All columns must have the same length and
// distinct names.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, errors.NewValueError("NewTable", "nil column")
		}
		if _, dup := t.index[c.name]; dup {
			return nil, errors.NewValueError("NewTable", "duplicate column "+c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, errors.NewDimensionError("NewTable", t.rows, c.Len(), 0)
		}
		t.index[c.name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// With returns a new table where each given column replaces the existing
// column of the same name in place, or is appended when new.
func (t *Table) With(cols ...*Column) (*Table, error) {
	next := append([]*Column(nil), t.cols...)
	index := make(map[string]int, len(t.index)+len(cols))
	for k, v := range t.index {
		index[k] = v
	}
	for _, c := range cols {
		if len(next) > 0 && c.Len() != t.rows {
			return nil, errors.NewDimensionError("Table.With", t.rows, c.Len(), 0)
		}
		if i, ok := index[c.name]; ok {
			next[i] = c
			continue
		}
		index[c.name] = len(next)
		next = append(next, c)
	}
	rows := t.rows
	if len(t.cols) == 0 && len(cols) > 0 {
		rows = cols[0].Len()
	}
	return &Table{cols: next, index: index, rows: rows}, nil
}

// Without returns a new table without the named columns. Unknown names are ignored.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var kept []*Column
	for _, c := range t.cols {
		if _, ok := drop[c.name]; !ok {
			kept = append(kept, c)
		}
	}
	out := &Table{cols: kept, index: make(map[string]int, len(kept)), rows: t.rows}
	for i, c := range kept {
		out.index[c.name] = i
	}
	return out
}

// Select returns the given row indices as a new table.
func (t *Table) Select(rows []int) *Table {
	out := &Table{index: make(map[string]int, len(t.cols)), rows: len(rows)}
	for i, c := range t.cols {
		var nc *Column
		switch c.kind {
		case Numeric:
			vals := make([]float64, len(rows))
			for k, r := range rows {
				vals[k] = c.nums[r]
			}
			nc = &Column{name: c.name, kind: Numeric, nums: vals}
		case Time:
			vals := make([]time.Time, len(rows))
			for k, r := range rows {
				vals[k] = c.times[r]
			}
			nc = &Column{name: c.name, kind: Time, times: vals}
		default:
			vals := make([]string, len(rows))
			for k, r := range rows {
				vals[k] = c.text[r]
			}
			nc = &Column{name: c.name, kind: Text, text: vals}
		}
		out.cols = append(out.cols, nc)
		out.index[c.name] = i
	}
	return out
}
