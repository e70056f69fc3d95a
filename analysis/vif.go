package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/sklearn/linear_model"
)

// VIF is the variance inflation factor of one feature.
type VIF struct {
	Column string  `json:"column"`
	VIF    float64 `json:"vif"`
}

// Severe reports a VIF above 10, the usual multicollinearity cut-off.
func (v VIF) Severe() bool { return v.VIF > 10 }

// Multicollinearity computes 1 / (1 − R²) for every numeric column, where R²
// comes from regressing the column on the others with an intercept. Rows
// with any missing numeric value are dropped. A column explained perfectly
// gets +Inf.
func (a *Analyzer) Multicollinearity(columns ...string) ([]VIF, error) {
	cols, err := a.numeric("Multicollinearity", columns)
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, errors.NewValidationError("columns", "VIF needs at least two numeric columns", len(cols))
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	sub, err := a.frame.Select(names...)
	if err != nil {
		return nil, err
	}
	sub, _ = sub.DropMissing()
	if sub.Rows() < len(cols)+1 {
		return nil, errors.NewValidationError("rows", "not enough complete rows for VIF", sub.Rows())
	}
	X, err := sub.Matrix()
	if err != nil {
		return nil, err
	}

	rows, k := X.Dims()
	out := make([]VIF, k)
	for j := 0; j < k; j++ {
		others := mat.NewDense(rows, k-1, nil)
		for c, col := 0, 0; c < k; c++ {
			if c == j {
				continue
			}
			others.SetCol(col, mat.Col(nil, c, X))
			col++
		}
		y := X.Slice(0, rows, j, j+1)

		lr := linear_model.NewLinearRegression()
		if err := lr.Fit(others, y); err != nil {
			return nil, errors.Wrapf(err, "VIF of %s", names[j])
		}
		r2, err := lr.Score(others, y)
		if err != nil {
			return nil, err
		}
		v := math.Inf(1)
		if r2 < 1 {
			v = 1 / (1 - r2)
		}
		out[j] = VIF{Column: names[j], VIF: v}
	}
	return out, nil
}
