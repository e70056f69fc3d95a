// Package models wraps the estimators behind a uniform Model interface and
// provides the name-based dispatch table used by the trainer, benchmark and
// command-line tools.
package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/preprocessing"
	"github.com/YuminosukeSato/trainedml/sklearn/ensemble"
	"github.com/YuminosukeSato/trainedml/sklearn/linear_model"
	"github.com/YuminosukeSato/trainedml/sklearn/neighbors"
)

// Task is the kind of supervised problem a model solves.
type Task string

const (
	Classification Task = "classification"
	Regression     Task = "regression"
)

// Model is a named estimator with a default evaluation score.
type Model interface {
	Name() string
	Task() Task
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	// Evaluate returns accuracy for classifiers and R² for regressors.
	Evaluate(X, y mat.Matrix) (float64, error)
	Params() map[string]interface{}
}

// ProbabilisticModel is a classifier that also reports class probabilities.
type ProbabilisticModel interface {
	Model
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []float64
}

// wrapper adapts a core estimator to Model. When scale is set, features are
// standardised with statistics from the training data.
type wrapper struct {
	name   string
	task   Task
	est    model.Estimator
	scale  bool
	scaler *preprocessing.StandardScaler
}

func (w *wrapper) Name() string { return w.name }
func (w *wrapper) Task() Task   { return w.task }

func (w *wrapper) Params() map[string]interface{} { return w.est.GetParams() }

func (w *wrapper) Fit(X, y mat.Matrix) error {
	op := w.name + ".Fit"
	if err := errors.CheckFinite(op, X); err != nil {
		return err
	}
	if err := errors.CheckFinite(op, y); err != nil {
		return err
	}
	if w.scale {
		w.scaler = preprocessing.NewStandardScalerDefault()
		Xs, err := w.scaler.FitTransform(X)
		if err != nil {
			return err
		}
		X = Xs
	}
	return w.est.Fit(X, y)
}

func (w *wrapper) input(op string, X mat.Matrix) (mat.Matrix, error) {
	if err := errors.CheckFinite(w.name+"."+op, X); err != nil {
		return nil, err
	}
	if w.scaler == nil || !w.est.IsFitted() {
		return X, nil
	}
	return w.scaler.Transform(X)
}

func (w *wrapper) Predict(X mat.Matrix) (mat.Matrix, error) {
	X, err := w.input("Predict", X)
	if err != nil {
		return nil, err
	}
	return w.est.Predict(X)
}

func (w *wrapper) Evaluate(X, y mat.Matrix) (float64, error) {
	pred, err := w.Predict(X)
	if err != nil {
		return 0, err
	}
	if w.task == Classification {
		return metrics.AccuracyScore(model.Column(y, 0), model.Column(pred, 0))
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// classifierWrapper adds probabilities to wrapper.
type classifierWrapper struct {
	wrapper
	clf model.Classifier
}

func (c *classifierWrapper) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	X, err := c.input("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return c.clf.PredictProba(X)
}

func (c *classifierWrapper) Classes() []float64 { return c.clf.Classes() }

func newClassifier(name string, clf model.Classifier, scale bool) classifierWrapper {
	return classifierWrapper{
		wrapper: wrapper{name: name, task: Classification, est: clf, scale: scale},
		clf:     clf,
	}
}

func newRegressor(name string, est model.Estimator) wrapper {
	return wrapper{name: name, task: Regression, est: est}
}

// KNNModel is a k-nearest-neighbours classifier.
type KNNModel struct{ classifierWrapper }

// NewKNNModel uses 5 neighbours unless WithNeighbors says otherwise.
func NewKNNModel(opts ...Option) *KNNModel {
	o := newOptions(opts)
	return &KNNModel{newClassifier("knn", neighbors.NewKNeighborsClassifier(neighbors.WithNeighbors(o.Neighbors)), false)}
}

// LogisticModel is a logistic regression classifier on standardised features.
type LogisticModel struct{ classifierWrapper }

// NewLogisticModel runs at most 200 solver iterations unless WithMaxIter says
// otherwise.
func NewLogisticModel(opts ...Option) *LogisticModel {
	o := newOptions(opts)
	maxIter := o.MaxIter
	if maxIter == 0 {
		maxIter = 200
	}
	lr := linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(maxIter))
	return &LogisticModel{newClassifier("logistic", lr, true)}
}

// RandomForestModel is a random forest classifier.
type RandomForestModel struct{ classifierWrapper }

// NewRandomForestModel grows 100 trees unless WithEstimators says otherwise.
func NewRandomForestModel(opts ...Option) *RandomForestModel {
	o := newOptions(opts)
	rf := ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(o.Estimators),
		ensemble.WithRandomState(o.RandomState),
		ensemble.WithNJobs(o.NJobs),
	)
	return &RandomForestModel{newClassifier("random_forest", rf, false)}
}

// KNNRegressorModel averages the targets of the nearest neighbours.
type KNNRegressorModel struct{ wrapper }

func NewKNNRegressorModel(opts ...Option) *KNNRegressorModel {
	o := newOptions(opts)
	return &KNNRegressorModel{newRegressor("knn_regressor", neighbors.NewKNeighborsRegressor(neighbors.WithNeighbors(o.Neighbors)))}
}

// LinearRegressorModel is ordinary least squares.
type LinearRegressorModel struct{ wrapper }

func NewLinearRegressorModel(opts ...Option) *LinearRegressorModel {
	return &LinearRegressorModel{newRegressor("linear", linear_model.NewLinearRegression())}
}

// RidgeRegressorModel is L2-penalised least squares.
type RidgeRegressorModel struct{ wrapper }

func NewRidgeRegressorModel(opts ...Option) *RidgeRegressorModel {
	o := newOptions(opts)
	return &RidgeRegressorModel{newRegressor("ridge", linear_model.NewRidge(linear_model.WithRidgeAlpha(o.Alpha)))}
}

// LassoRegressorModel is L1-penalised least squares.
type LassoRegressorModel struct{ wrapper }

func NewLassoRegressorModel(opts ...Option) *LassoRegressorModel {
	o := newOptions(opts)
	lassoOpts := []linear_model.LassoOption{linear_model.WithLassoAlpha(o.Alpha)}
	if o.MaxIter > 0 {
		lassoOpts = append(lassoOpts, linear_model.WithLassoMaxIter(o.MaxIter))
	}
	return &LassoRegressorModel{newRegressor("lasso", linear_model.NewLasso(lassoOpts...))}
}

// RandomForestRegressorModel is a random forest regressor.
type RandomForestRegressorModel struct{ wrapper }

func NewRandomForestRegressorModel(opts ...Option) *RandomForestRegressorModel {
	o := newOptions(opts)
	rf := ensemble.NewRandomForestRegressor(
		ensemble.WithNEstimators(o.Estimators),
		ensemble.WithRandomState(o.RandomState),
		ensemble.WithNJobs(o.NJobs),
	)
	return &RandomForestRegressorModel{newRegressor("random_forest_regressor", rf)}
}
