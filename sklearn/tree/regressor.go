package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/metrics"
)

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	state *model.StateManager
	params

	tree fitted
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)

// NewDecisionTreeRegressor creates a regressor with no depth limit.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		state:  model.NewStateManager("DecisionTreeRegressor"),
		params: newParams("squared_error", opts),
	}
}

// Fit grows the tree.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := dt.validate("squared_error"); err != nil {
		return err
	}
	rows, cols, err := model.ValidateFit("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	dt.tree = grow(mat.DenseCopyOf(X), dt.params, &mseCriterion{y: model.Column(y, 0)})
	dt.state.SetFitted(cols, rows)
	return nil
}

// Predict returns the mean target of the leaf each row reaches.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredict("Predict", X); err != nil {
		return nil, err
	}
	return dt.tree.predictLeaves(X, 1), nil
}

// Score returns R² on X and y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances returns the normalised total variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.tree.importances...)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeRegressor) GetDepth() int { return dt.tree.depth }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeRegressor) GetNLeaves() int { return dt.tree.nLeaves }

func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} { return dt.asMap() }

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", dt.maxDepth)
}
