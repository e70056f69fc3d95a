package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Lasso minimises (1/2n)·||y - Xw||² + alpha·||w||₁ by cyclic coordinate
// descent. Convergence is declared when the duality gap drops below
// tol·||y||².
type Lasso struct {
	state *model.StateManager

	alpha        float64
	fitIntercept bool
	maxIter      int
	tol          float64

	coef_      []float64
	intercept_ float64
	nIter_     int
	dualGap_   float64
}

var (
	_ model.Regressor   = (*Lasso)(nil)
	_ model.LinearModel = (*Lasso)(nil)
)

// LassoOption configures a Lasso.
type LassoOption func(*Lasso)

// WithLassoAlpha sets the L1 penalty strength.
func WithLassoAlpha(alpha float64) LassoOption {
	return func(l *Lasso) { l.alpha = alpha }
}

// WithLassoMaxIter sets the maximum number of coordinate sweeps.
func WithLassoMaxIter(n int) LassoOption {
	return func(l *Lasso) { l.maxIter = n }
}

// WithLassoTol sets the stopping tolerance.
func WithLassoTol(tol float64) LassoOption {
	return func(l *Lasso) { l.tol = tol }
}

// WithLassoFitIntercept sets whether to fit an intercept.
func WithLassoFitIntercept(fit bool) LassoOption {
	return func(l *Lasso) { l.fitIntercept = fit }
}

// NewLasso creates a Lasso with alpha = 1, max_iter = 1000 and tol = 1e-4.
func NewLasso(opts ...LassoOption) *Lasso {
	l := &Lasso{
		state:        model.NewStateManager("Lasso"),
		alpha:        1.0,
		fitIntercept: true,
		maxIter:      1000,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fit runs coordinate descent. A ConvergenceWarning is raised when max_iter
// sweeps pass without reaching the tolerance.
func (l *Lasso) Fit(X, y mat.Matrix) error {
	if l.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", l.alpha)
	}
	if l.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", l.maxIter)
	}
	rows, cols, err := model.ValidateFit("Lasso.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, l.fitIntercept)

	n := float64(rows)
	alphaN := l.alpha * n
	yv := model.Column(yc, 0)
	tol := l.tol * floats.Dot(yv, yv)

	cols2 := make([][]float64, cols)
	norms := make([]float64, cols)
	for j := range cols2 {
		cols2[j] = model.Column(Xc, j)
		norms[j] = floats.Dot(cols2[j], cols2[j])
	}

	w := make([]float64, cols)
	residual := append([]float64(nil), yv...)

	converged := false
	iter := 0
	var gap float64
	for iter = 1; iter <= l.maxIter; iter++ {
		var wMax, dwMax float64
		for j := 0; j < cols; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(residual, old, cols2[j])
			}
			rho := floats.Dot(cols2[j], residual)
			w[j] = softThreshold(rho, alphaN) / norms[j]
			if w[j] != 0 {
				floats.AddScaled(residual, -w[j], cols2[j])
			}
			dwMax = math.Max(dwMax, math.Abs(w[j]-old))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < l.tol || iter == l.maxIter {
			gap = dualityGap(cols2, residual, yv, w, alphaN)
			if gap < tol {
				converged = true
				break
			}
		}
	}
	if iter > l.maxIter {
		iter = l.maxIter
	}

	l.coef_ = w
	l.intercept_ = interceptFrom(w, xMean, yMean)
	l.nIter_ = iter
	l.dualGap_ = gap

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("Lasso", l.maxIter,
			fmt.Sprintf("duality gap %.3g exceeds tolerance %.3g; consider increasing max_iter or scaling the features", gap, tol)))
	}

	l.state.SetFitted(cols, rows)
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	default:
		return 0
	}
}

// dualityGap of the lasso problem scaled by n, as in the coordinate descent
// of scikit-learn.
func dualityGap(cols [][]float64, residual, y, w []float64, alphaN float64) float64 {
	var dualNorm float64
	for _, c := range cols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(c, residual)))
	}
	rNorm2 := floats.Dot(residual, residual)

	scale := 1.0
	gap := rNorm2
	if dualNorm > alphaN {
		scale = alphaN / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	}
	gap += alphaN*floats.Norm(w, 1) - scale*floats.Dot(residual, y)
	return gap
}

// Predict returns X·w + b.
func (l *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := l.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	return linearPredict(X, l.coef_, l.intercept_), nil
}

// Score returns R² on (X, y).
func (l *Lasso) Score(X, y mat.Matrix) (float64, error) { return r2(l, X, y) }

func (l *Lasso) Coef() []float64   { return copyFloats(l.coef_) }
func (l *Lasso) Intercept() float64 { return l.intercept_ }
func (l *Lasso) IsFitted() bool     { return l.state.IsFitted() }

// NIter returns the number of sweeps run by the last Fit.
func (l *Lasso) NIter() int { return l.nIter_ }

func (l *Lasso) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         l.alpha,
		"fit_intercept": l.fitIntercept,
		"max_iter":      l.maxIter,
		"tol":           l.tol,
	}
}

func (l *Lasso) String() string {
	return fmt.Sprintf("Lasso(alpha=%g, max_iter=%d, tol=%g)", l.alpha, l.maxIter, l.tol)
}
