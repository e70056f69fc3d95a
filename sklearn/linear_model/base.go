// Package linear_model implements least squares, ridge, lasso and logistic
// regression on gonum matrices.
package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
)

// centerData returns X and y with their column means removed, along with the
// means. With fitIntercept false the data is copied unchanged and the means
// are zero.
func centerData(X, y mat.Matrix, fitIntercept bool) (Xc *mat.Dense, yc *mat.VecDense, xMean []float64, yMean float64) {
	rows, cols := X.Dims()
	Xc = mat.DenseCopyOf(X)
	yc = mat.NewVecDense(rows, model.Column(y, 0))
	xMean = make([]float64, cols)
	if !fitIntercept {
		return Xc, yc, xMean, 0
	}

	for j := 0; j < cols; j++ {
		var s float64
		for i := 0; i < rows; i++ {
			s += Xc.At(i, j)
		}
		xMean[j] = s / float64(rows)
	}
	for i := 0; i < rows; i++ {
		yMean += yc.AtVec(i)
	}
	yMean /= float64(rows)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			Xc.Set(i, j, Xc.At(i, j)-xMean[j])
		}
		yc.SetVec(i, yc.AtVec(i)-yMean)
	}
	return Xc, yc, xMean, yMean
}

// interceptFrom recovers the intercept of a model fitted on centered data.
func interceptFrom(coef, xMean []float64, yMean float64) float64 {
	b := yMean
	for j, w := range coef {
		b -= w * xMean[j]
	}
	return b
}

// linearPredict computes X·coef + intercept as an n×1 matrix.
func linearPredict(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	rows, _ := X.Dims()
	w := mat.NewVecDense(len(coef), coef)
	out := mat.NewVecDense(rows, nil)
	out.MulVec(X, w)
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred.Set(i, 0, out.AtVec(i)+intercept)
	}
	return pred
}

// r2 scores predictions of a fitted regressor.
func r2(p model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

func copyFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}
