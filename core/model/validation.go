package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// ValidateFit checks the shapes and values passed to Fit: X must be
// non-empty, y must be a single column with as many rows as X, and neither
// may contain NaN or Inf. It returns the dimensions of X.
func ValidateFit(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if err := errors.CheckFinite(op, X); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckFinite(op, y); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// Column returns column j of m as a new slice.
func Column(m mat.Matrix, j int) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// Row returns row i of m as a new slice.
func Row(m mat.Matrix, i int) []float64 {
	_, cols := m.Dims()
	out := make([]float64, cols)
	for j := range out {
		out[j] = m.At(i, j)
	}
	return out
}
