package models

import (
	"sort"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

type factory func(opts ...Option) Model

var classifiers = map[string]factory{
	"knn":           func(o ...Option) Model { return NewKNNModel(o...) },
	"logistic":      func(o ...Option) Model { return NewLogisticModel(o...) },
	"random_forest": func(o ...Option) Model { return NewRandomForestModel(o...) },
}

var regressors = map[string]factory{
	"knn_regressor":           func(o ...Option) Model { return NewKNNRegressorModel(o...) },
	"linear":                  func(o ...Option) Model { return NewLinearRegressorModel(o...) },
	"ridge":                   func(o ...Option) Model { return NewRidgeRegressorModel(o...) },
	"lasso":                   func(o ...Option) Model { return NewLassoRegressorModel(o...) },
	"random_forest_regressor": func(o ...Option) Model { return NewRandomForestRegressorModel(o...) },
}

// ClassifierNames lists the classification models in display order.
var ClassifierNames = []string{"knn", "logistic", "random_forest"}

// RegressorNames lists the regression models in display order.
var RegressorNames = []string{"knn_regressor", "linear", "ridge", "lasso", "random_forest_regressor"}

// Names returns every registered model name, classifiers first.
func Names() []string {
	return append(append([]string(nil), ClassifierNames...), RegressorNames...)
}

// NamesFor returns the model names for a task.
func NamesFor(task Task) []string {
	if task == Regression {
		return append([]string(nil), RegressorNames...)
	}
	return append([]string(nil), ClassifierNames...)
}

// TaskOf reports which task a registered model solves.
func TaskOf(name string) (Task, bool) {
	name = Resolve(name)
	if _, ok := classifiers[name]; ok {
		return Classification, true
	}
	if _, ok := regressors[name]; ok {
		return Regression, true
	}
	return "", false
}

// Get builds the named model. Aliases accepted by Resolve work too.
func Get(name string, opts ...Option) (Model, error) {
	canonical := Resolve(name)
	if f, ok := classifiers[canonical]; ok {
		return f(opts...), nil
	}
	if f, ok := regressors[canonical]; ok {
		return f(opts...), nil
	}
	return nil, errors.NewUnknownModelError(name, sorted(Names()))
}

// GetClassifier builds the named classification model.
func GetClassifier(name string, opts ...Option) (Model, error) {
	if f, ok := classifiers[Resolve(name)]; ok {
		return f(opts...), nil
	}
	return nil, errors.NewUnknownModelError(name, sorted(ClassifierNames))
}

// GetRegressor builds the named regression model.
func GetRegressor(name string, opts ...Option) (Model, error) {
	if f, ok := regressors[Resolve(name)]; ok {
		return f(opts...), nil
	}
	return nil, errors.NewUnknownModelError(name, sorted(RegressorNames))
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
