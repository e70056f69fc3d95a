package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Ridge minimises ||y - Xw||² + alpha·||w||², solved in closed form with a
// Cholesky factorisation of XᵀX + alpha·I. The intercept is not penalised.
type Ridge struct {
	state *model.StateManager

	alpha        float64
	fitIntercept bool

	coef_      []float64
	intercept_ float64
}

var (
	_ model.Regressor   = (*Ridge)(nil)
	_ model.LinearModel = (*Ridge)(nil)
)

// RidgeOption configures a Ridge.
type RidgeOption func(*Ridge)

// WithRidgeAlpha sets the L2 penalty strength.
func WithRidgeAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.alpha = alpha }
}

// WithRidgeFitIntercept sets whether to fit an intercept.
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.fitIntercept = fit }
}

// NewRidge creates a Ridge with alpha = 1.
func NewRidge(opts ...RidgeOption) *Ridge {
	r := &Ridge{
		state:        model.NewStateManager("Ridge"),
		alpha:        1.0,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit solves the regularised normal equations.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.alpha)
	}
	rows, cols, err := model.ValidateFit("Ridge.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, r.fitIntercept)

	gram := mat.NewSymDense(cols, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.alpha)
	}
	rhs := mat.NewVecDense(cols, nil)
	rhs.MulVec(Xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.WithHint(
			errors.NewModelError("Ridge.Fit", "XᵀX + alpha·I is not positive definite", errors.ErrSingularMatrix),
			"use a positive alpha",
		)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, rhs); err != nil {
		return errors.NewModelError("Ridge.Fit", "solve failed", err)
	}

	r.coef_ = make([]float64, cols)
	for j := range r.coef_ {
		r.coef_[j] = w.AtVec(j)
	}
	r.intercept_ = interceptFrom(r.coef_, xMean, yMean)

	r.state.SetFitted(cols, rows)
	return nil
}

// Predict returns X·w + b.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	return linearPredict(X, r.coef_, r.intercept_), nil
}

// Score returns R² on (X, y).
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) { return r2(r, X, y) }

func (r *Ridge) Coef() []float64   { return copyFloats(r.coef_) }
func (r *Ridge) Intercept() float64 { return r.intercept_ }
func (r *Ridge) IsFitted() bool     { return r.state.IsFitted() }

func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
	}
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.alpha, r.fitIntercept)
}
