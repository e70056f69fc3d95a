package tree

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
)

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager
	params

	tree     fitted
	classes_ []float64
}

var _ model.Classifier = (*DecisionTreeClassifier)(nil)

// NewDecisionTreeClassifier creates a classifier using gini impurity, no
// depth limit and all features at every split.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		state:  model.NewStateManager("DecisionTreeClassifier"),
		params: newParams("gini", opts),
	}
}

// Fit grows the tree.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate("gini", "entropy"); err != nil {
		return err
	}
	rows, cols, err := model.ValidateFit("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	labels := model.Column(y, 0)
	dt.classes_ = uniqueSorted(labels)
	codes := make([]int, rows)
	for i, v := range labels {
		codes[i] = sort.SearchFloat64s(dt.classes_, v)
	}

	crit := newClassCriterion(codes, len(dt.classes_), dt.criterion == "entropy")
	dt.tree = grow(mat.DenseCopyOf(X), dt.params, crit)
	dt.state.SetFitted(cols, rows)
	return nil
}

// PredictProba returns the class distribution of the leaf each row reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredict("PredictProba", X); err != nil {
		return nil, err
	}
	return dt.tree.predictLeaves(X, len(dt.classes_)), nil
}

// Predict returns the most frequent class of each leaf, the smallest on ties.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	proba := dt.tree.predictLeaves(X, len(dt.classes_))
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, dt.classes_[argmax(proba.RawRowView(i))])
	}
	return out, nil
}

// Score returns the accuracy on X and y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(model.Column(y, 0), model.Column(pred, 0))
}

// Classes returns the labels seen during Fit in ascending order.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.tree.importances...)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.tree.depth }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.tree.nLeaves }

func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} { return dt.asMap() }

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.criterion, dt.maxDepth)
}

func uniqueSorted(v []float64) []float64 {
	seen := make(map[float64]bool, len(v))
	var out []float64
	for _, x := range v {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
