// Package neighbors implements k-nearest-neighbour classification and
// regression with uniform weights and Euclidean distance.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/core/parallel"
	"github.com/YuminosukeSato/trainedml/metrics"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// predictThreshold is the number of query rows below which prediction runs
// on a single goroutine.
const predictThreshold = 64

// Option configures a neighbours estimator.
type Option func(*base)

// WithNeighbors sets k.
func WithNeighbors(k int) Option {
	return func(b *base) { b.k = k }
}

// base stores the training set. Fit is lazy.
type base struct {
	state *model.StateManager
	k     int
	X     [][]float64
	y     []float64
}

func newBase(name string, opts []Option) base {
	b := base{state: model.NewStateManager(name), k: 5}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) fit(op string, X, y mat.Matrix) error {
	if b.k < 1 {
		return errors.NewValidationError("n_neighbors", "must be positive", b.k)
	}
	rows, cols, err := model.ValidateFit(op, X, y)
	if err != nil {
		return err
	}
	if b.k > rows {
		return errors.WithHint(
			errors.NewValidationError("n_neighbors", fmt.Sprintf("must not exceed the %d training samples", rows), b.k),
			"lower n_neighbors or use more training data",
		)
	}
	b.X = make([][]float64, rows)
	for i := range b.X {
		b.X[i] = model.Row(X, i)
	}
	b.y = model.Column(y, 0)
	b.state.SetFitted(cols, rows)
	return nil
}

type neighbour struct {
	d   float64
	idx int
}

// kneighbors returns the indices of the k training rows nearest to x. Equal
// distances keep training order.
func (b *base) kneighbors(x []float64) []int {
	nbrs := make([]neighbour, 0, b.k+1)
	less := func(a, c neighbour) bool {
		if a.d != c.d {
			return a.d < c.d
		}
		return a.idx < c.idx
	}
	for j, xj := range b.X {
		n := neighbour{d: euclidSquared(x, xj), idx: j}
		if len(nbrs) == b.k && !less(n, nbrs[len(nbrs)-1]) {
			continue
		}
		pos := sort.Search(len(nbrs), func(i int) bool { return less(n, nbrs[i]) })
		nbrs = append(nbrs, neighbour{})
		copy(nbrs[pos+1:], nbrs[pos:])
		nbrs[pos] = n
		if len(nbrs) > b.k {
			nbrs = nbrs[:b.k]
		}
	}
	out := make([]int, len(nbrs))
	for i, n := range nbrs {
		out[i] = n.idx
	}
	return out
}

// predictRows applies fn to every row of X in parallel, writing one output
// row per input row.
func (b *base) predictRows(X mat.Matrix, width int, fn func(x []float64, out []float64)) *mat.Dense {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, width, nil)
	parallel.ParallelizeWithThreshold(rows, predictThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(model.Row(X, i), out.RawRowView(i))
		}
	})
	return out
}

func (b *base) checkPredict(X mat.Matrix) error {
	if err := b.state.CheckPredict("Predict", X); err != nil {
		return err
	}
	return errors.CheckFinite("Predict", X)
}

// euclidSquared computes the squared Euclidean distance between two vectors.
func euclidSquared(a, c []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - c[i]
		sum += d * d
	}
	return sum
}

// KNeighborsClassifier predicts the majority label of the k nearest
// training rows. Vote ties go to the smallest label.
type KNeighborsClassifier struct {
	base
	classes []float64
}

var _ model.Classifier = (*KNeighborsClassifier)(nil)

// NewKNeighborsClassifier creates a classifier with k = 5 unless overridden.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	return &KNeighborsClassifier{base: newBase("KNeighborsClassifier", opts)}
}

// Fit stores the training data.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := c.fit("KNeighborsClassifier.Fit", X, y); err != nil {
		return err
	}
	seen := make(map[float64]bool)
	c.classes = c.classes[:0]
	for _, v := range c.y {
		if !seen[v] {
			seen[v] = true
			c.classes = append(c.classes, v)
		}
	}
	sort.Float64s(c.classes)
	return nil
}

// PredictProba returns the share of neighbour votes per class.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict(X); err != nil {
		return nil, err
	}
	k := float64(c.k)
	return c.predictRows(X, len(c.classes), func(x, out []float64) {
		for _, idx := range c.kneighbors(x) {
			out[sort.SearchFloat64s(c.classes, c.y[idx])] += 1 / k
		}
	}), nil
}

// Predict returns the majority class of the neighbours.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, c.classes[best])
	}
	return out, nil
}

// Classes returns the labels seen during Fit in ascending order.
func (c *KNeighborsClassifier) Classes() []float64 {
	return append([]float64(nil), c.classes...)
}

func (c *KNeighborsClassifier) IsFitted() bool { return c.state.IsFitted() }

func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": c.k, "weights": "uniform", "metric": "euclidean"}
}

func (c *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d)", c.k)
}

// KNeighborsRegressor predicts the mean target of the k nearest training rows.
type KNeighborsRegressor struct {
	base
}

var _ model.Regressor = (*KNeighborsRegressor)(nil)

// NewKNeighborsRegressor creates a regressor with k = 5 unless overridden.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	return &KNeighborsRegressor{base: newBase("KNeighborsRegressor", opts)}
}

// Fit stores the training data.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	return r.fit("KNeighborsRegressor.Fit", X, y)
}

// Predict averages the neighbours' targets.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.checkPredict(X); err != nil {
		return nil, err
	}
	return r.predictRows(X, 1, func(x, out []float64) {
		var sum float64
		nbrs := r.kneighbors(x)
		for _, idx := range nbrs {
			sum += r.y[idx]
		}
		out[0] = sum / float64(len(nbrs))
	}), nil
}

// Score returns R² of the predictions.
func (r *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

func (r *KNeighborsRegressor) IsFitted() bool { return r.state.IsFitted() }

func (r *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": r.k, "weights": "uniform", "metric": "euclidean"}
}

func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d)", r.k)
}
