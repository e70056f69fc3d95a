package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
	"github.com/YuminosukeSato/trainedml/sklearn/tree"
)

// RandomForestRegressor averages bootstrapped regression trees that consider
// every feature at each split.
type RandomForestRegressor struct {
	state *model.StateManager
	config

	trees       []*tree.DecisionTreeRegressor
	importances []float64
}

var _ model.Regressor = (*RandomForestRegressor)(nil)

// NewRandomForestRegressor creates a forest of 100 squared-error trees.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{
		state:  model.NewStateManager("RandomForestRegressor"),
		config: newConfig(tree.MaxFeaturesAll, opts),
	}
}

// Fit grows the trees concurrently.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.ValidateFit("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	grown, err := rf.grow("RandomForestRegressor.Fit", X, y, func(i int) estimator {
		return tree.NewDecisionTreeRegressor(rf.treeOptions(i)...)
	})
	if err != nil {
		return err
	}

	rf.trees = make([]*tree.DecisionTreeRegressor, len(grown))
	for i, t := range grown {
		rf.trees[i] = t.(*tree.DecisionTreeRegressor)
	}
	rf.importances = meanImportances(grown, cols)

	rf.state.SetFitted(cols, rows)
	return nil
}

// Predict averages the trees' predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for _, t := range rf.trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, pred)
	}
	out.Scale(1/float64(len(rf.trees)), out)
	return out, nil
}

// Score returns R² on X and y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances returns the mean importance across trees.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.importances...)
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestRegressor) NEstimators() int { return len(rf.trees) }

func (rf *RandomForestRegressor) IsFitted() bool { return rf.state.IsFitted() }

func (rf *RandomForestRegressor) GetParams() map[string]interface{} { return rf.asMap() }

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, random_state=%d)", rf.nEstimators, rf.randomState)
}
