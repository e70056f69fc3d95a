// Package dataset holds the in-memory table used throughout trainedml: a
// Frame of named numeric or categorical columns, CSV parsing and the seeded
// train/test split.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Frame is an ordered set of equally long columns.
type Frame struct {
	cols  []*Column
	index map[string]int
}

// NewFrame builds a frame. Column names must be unique and lengths equal.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.add(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) add(c *Column) error {
	if _, dup := f.index[c.Name]; dup {
		return errors.NewValidationError("column", "duplicate column name", c.Name)
	}
	if len(f.cols) > 0 && c.Len() != f.Rows() {
		return errors.NewDimensionError("Frame.add", f.Rows(), c.Len(), 0)
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// Cols returns the number of columns.
func (f *Frame) Cols() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (f *Frame) Columns() []*Column { return f.cols }

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewColumnNotFoundError(name, f.Names())
	}
	return f.cols[i], nil
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewFrame(cols...)
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !f.Has(n) {
			return nil, errors.NewColumnNotFoundError(n, f.Names())
		}
		drop[n] = true
	}
	var cols []*Column
	for _, c := range f.cols {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	return NewFrame(cols...)
}

// Concat returns a frame with col appended.
func (f *Frame) Concat(col *Column) (*Frame, error) {
	out, err := NewFrame(f.cols...)
	if err != nil {
		return nil, err
	}
	if err := out.add(col); err != nil {
		return nil, err
	}
	return out, nil
}

// NumericColumns returns the names of numeric columns.
func (f *Frame) NumericColumns() []string {
	var names []string
	for _, c := range f.cols {
		if c.IsNumeric() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Take returns the rows at idx.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols))}
	for i, c := range f.cols {
		out.cols = append(out.cols, c.Take(idx))
		out.index[c.Name] = i
	}
	return out
}

// DropMissing returns the rows without any missing cell and the number of
// rows removed.
func (f *Frame) DropMissing() (*Frame, int) {
	var keep []int
	for i := 0; i < f.Rows(); i++ {
		ok := true
		for _, c := range f.cols {
			if c.IsMissing(i) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return f.Take(keep), f.Rows() - len(keep)
}

// Matrix converts the named columns, or all columns when none are given, to
// a dense rows×cols matrix. Categorical columns produce a TypeConversionError.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.Names()
	}
	if len(names) == 0 || f.Rows() == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	out := mat.NewDense(f.Rows(), len(names), nil)
	for j, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		vals, err := c.Float64s()
		if err != nil {
			return nil, err
		}
		out.SetCol(j, vals)
	}
	return out, nil
}
