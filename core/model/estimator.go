package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。yは n×1 の行列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// Estimator は学習・予測・パラメータ取得を備えた推定器
type Estimator interface {
	Fitter
	Predictor
	ParameterGetter
	IsFitted() bool
}

// Classifier は分類器のインターフェース
type Classifier interface {
	Estimator

	// PredictProba は各クラスの確率を n×k の行列で返す。列の順序は Classes() と一致する
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に見たクラスを昇順で返す
	Classes() []float64
}

// Regressor は回帰器のインターフェース
type Regressor interface {
	Estimator

	// Score は決定係数（R²）を返す
	Score(X, y mat.Matrix) (float64, error)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coef は学習された重み（係数）を返す
	Coef() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
