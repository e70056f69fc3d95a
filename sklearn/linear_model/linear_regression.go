package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// LinearRegression is ordinary least squares, solved with an SVD so that
// rank-deficient designs get the minimum-norm solution.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	rcond        float64

	coef_      []float64
	intercept_ float64
	rank_      int
}

var (
	_ model.Regressor   = (*LinearRegression)(nil)
	_ model.LinearModel = (*LinearRegression)(nil)
)

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager("LinearRegression"),
		fitIntercept: true,
		rcond:        1e-12,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.ValidateFit("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centerData(X, y, lr.fitIntercept)

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		// every feature is constant; the model predicts the mean
		lr.coef_ = make([]float64, cols)
	} else {
		var w mat.Dense
		svd.SolveTo(&w, yc, rank)
		lr.coef_ = model.Column(&w, 0)
	}
	lr.rank_ = rank
	lr.intercept_ = interceptFrom(lr.coef_, xMean, yMean)

	lr.state.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.coef_, lr.intercept_), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return r2(lr, X, y)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 { return copyFloats(lr.coef_) }

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 { return lr.intercept_ }

// Rank returns the numerical rank of the centered design matrix.
func (lr *LinearRegression) Rank() int { return lr.rank_ }

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)",
		lr.fitIntercept, nFeatures)
}
