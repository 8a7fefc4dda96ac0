package dataset

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

func nan() float64 { return math.NaN() }

func itoa(i int) string { return strconv.Itoa(i) }

// Frame is a row-major numeric matrix with named columns.
// It is the feature matrix consumed by every regressor.
type Frame struct {
	names []string
	index map[string]int
	data  []float64
	rows  int
}

// NewFrame wraps row-major data. len(data) must equal rows*len(names).
// The data slice is not copied.
func NewFrame(names []string, rows int, data []float64) (*Frame, error) {
	if rows < 0 {
		return nil, errors.NewValueError("NewFrame", "negative row count")
	}
	if len(data) != rows*len(names) {
		return nil, errors.NewDimensionError("NewFrame", rows*len(names), len(data), 1)
	}
	f := &Frame{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
		data:  data,
		rows:  rows,
	}
	for j, n := range f.names {
		if _, dup := f.index[n]; dup {
			return nil, errors.NewValueError("NewFrame", "duplicate column "+n)
		}
		f.index[n] = j
	}
	return f, nil
}

// FrameFromRows copies row slices into a new frame.
func FrameFromRows(names []string, rows [][]float64) (*Frame, error) {
	data := make([]float64, 0, len(rows)*len(names))
	for _, r := range rows {
		if len(r) != len(names) {
			return nil, errors.NewDimensionError("FrameFromRows", len(names), len(r), 1)
		}
		data = append(data, r...)
	}
	return NewFrame(names, len(rows), data)
}

// FrameFromColumns copies column slices into a new frame.
func FrameFromColumns(names []string, cols [][]float64) (*Frame, error) {
	if len(cols) != len(names) {
		return nil, errors.NewDimensionError("FrameFromColumns", len(names), len(cols), 1)
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	data := make([]float64, rows*len(names))
	for j, c := range cols {
		if len(c) != rows {
			return nil, errors.NewDimensionError("FrameFromColumns", rows, len(c), 0)
		}
		for i, v := range c {
			data[i*len(names)+j] = v
		}
	}
	return NewFrame(names, rows, data)
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.names) }

// Dims mirrors mat.Matrix.
func (f *Frame) Dims() (int, int) { return f.rows, len(f.names) }

// Names returns a copy of the column names.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// At returns the value at row i, column j.
func (f *Frame) At(i, j int) float64 { return f.data[i*len(f.names)+j] }

// Row returns row i. The slice aliases the frame and must not be modified.
func (f *Frame) Row(i int) []float64 {
	c := len(f.names)
	return f.data[i*c : (i+1)*c : (i+1)*c]
}

// Col returns a copy of the named column.
func (f *Frame) Col(name string) ([]float64, bool) {
	j, ok := f.index[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, f.rows)
	for i := range out {
		out[i] = f.At(i, j)
	}
	return out, true
}

// Dense copies the frame into a gonum matrix. It returns nil for a frame
// with no rows or no columns, which gonum cannot represent.
func (f *Frame) Dense() *mat.Dense {
	if f.rows == 0 || len(f.names) == 0 {
		return nil
	}
	return mat.NewDense(f.rows, len(f.names), append([]float64(nil), f.data...))
}

// Rows returns the given row indices as a new frame.
func (f *Frame) Rows(idx []int) *Frame {
	c := len(f.names)
	data := make([]float64, 0, len(idx)*c)
	for _, i := range idx {
		data = append(data, f.Row(i)...)
	}
	out, _ := NewFrame(f.names, len(idx), data)
	return out
}

// Reindex returns a frame with exactly the given columns in the given order.
// Columns missing from f are filled with 0; extra columns are dropped.
func (f *Frame) Reindex(names []string) *Frame {
	src := make([]int, len(names))
	for k, n := range names {
		if j, ok := f.index[n]; ok {
			src[k] = j
		} else {
			src[k] = -1
		}
	}
	data := make([]float64, f.rows*len(names))
	for i := 0; i < f.rows; i++ {
		for k, j := range src {
			if j >= 0 {
				data[i*len(names)+k] = f.At(i, j)
			}
		}
	}
	out, _ := NewFrame(names, f.rows, data)
	return out
}

// FillNaN returns a copy with NaN and ±Inf replaced by v.
func (f *Frame) FillNaN(v float64) *Frame {
	data := make([]float64, len(f.data))
	for i, x := range f.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			data[i] = v
		} else {
			data[i] = x
		}
	}
	out, _ := NewFrame(f.names, f.rows, data)
	return out
}

// HasNaN reports whether any cell is NaN.
func (f *Frame) HasNaN() bool {
	for _, x := range f.data {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
