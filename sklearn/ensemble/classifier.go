package ensemble

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
	"github.com/YuminosukeSato/trainedml/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of bootstrapped
// decision trees that each consider sqrt(n_features) features per split.
type RandomForestClassifier struct {
	state *model.StateManager
	config

	trees       []*tree.DecisionTreeClassifier
	classes_    []float64
	importances []float64
}

var _ model.Classifier = (*RandomForestClassifier)(nil)

// NewRandomForestClassifier creates a forest of 100 gini trees.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{
		state:  model.NewStateManager("RandomForestClassifier"),
		config: newConfig(tree.MaxFeaturesSqrt, opts),
	}
}

// Fit grows the trees concurrently.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.ValidateFit("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	grown, err := rf.grow("RandomForestClassifier.Fit", X, y, func(i int) estimator {
		return tree.NewDecisionTreeClassifier(rf.treeOptions(i)...)
	})
	if err != nil {
		return err
	}

	rf.trees = make([]*tree.DecisionTreeClassifier, len(grown))
	for i, t := range grown {
		rf.trees[i] = t.(*tree.DecisionTreeClassifier)
	}
	seen := make(map[float64]bool)
	rf.classes_ = nil
	for _, v := range model.Column(y, 0) {
		if !seen[v] {
			seen[v] = true
			rf.classes_ = append(rf.classes_, v)
		}
	}
	sort.Float64s(rf.classes_)
	rf.importances = meanImportances(grown, cols)

	rf.state.SetFitted(cols, rows)
	return nil
}

// PredictProba averages the trees' leaf distributions. A tree whose
// bootstrap sample missed a class contributes zero for it.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredict("PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	k := len(rf.classes_)
	out := mat.NewDense(rows, k, nil)
	weight := 1 / float64(len(rf.trees))

	for _, t := range rf.trees {
		proba, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		cols := make([]int, 0, k)
		for _, c := range t.Classes() {
			cols = append(cols, sort.SearchFloat64s(rf.classes_, c))
		}
		for i := 0; i < rows; i++ {
			for j, col := range cols {
				out.Set(i, col, out.At(i, col)+weight*proba.At(i, j))
			}
		}
	}
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, k := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, rf.classes_[best])
	}
	return out, nil
}

// Score returns the accuracy on X and y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(model.Column(y, 0), model.Column(pred, 0))
}

// Classes returns the labels seen during Fit in ascending order.
func (rf *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), rf.classes_...)
}

// GetFeatureImportances returns the mean importance across trees.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.importances...)
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int { return len(rf.trees) }

func (rf *RandomForestClassifier) IsFitted() bool { return rf.state.IsFitted() }

func (rf *RandomForestClassifier) GetParams() map[string]interface{} { return rf.asMap() }

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%s, random_state=%d)",
		rf.nEstimators, rf.maxFeatures, rf.randomState)
}
