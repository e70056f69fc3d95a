// Package ensemble implements random forests on top of the CART trees in
// package tree.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/parallel"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/sklearn/tree"
)

type config struct {
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int
}

// Option configures a random forest.
type Option func(*config)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(c *config) { c.nEstimators = n } }

// WithMaxDepth limits every tree's depth. Zero means unlimited.
func WithMaxDepth(d int) Option { return func(c *config) { c.maxDepth = d } }

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option { return func(c *config) { c.minSamplesSplit = n } }

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option { return func(c *config) { c.minSamplesLeaf = n } }

// WithMaxFeatures sets the features tried per split: "all", "sqrt" or "log2".
func WithMaxFeatures(s string) Option { return func(c *config) { c.maxFeatures = s } }

// WithBootstrap toggles sampling with replacement for each tree.
func WithBootstrap(b bool) Option { return func(c *config) { c.bootstrap = b } }

// WithRandomState seeds the forest. Tree i uses randomState+i.
func WithRandomState(seed int64) Option { return func(c *config) { c.randomState = seed } }

// WithNJobs bounds the number of trees grown at once. Zero or less uses
// every CPU.
func WithNJobs(n int) Option { return func(c *config) { c.nJobs = n } }

func newConfig(maxFeatures string, opts []Option) config {
	c := config{
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     maxFeatures,
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) treeOptions(i int) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(c.maxDepth),
		tree.WithMinSamplesSplit(c.minSamplesSplit),
		tree.WithMinSamplesLeaf(c.minSamplesLeaf),
		tree.WithMaxFeatures(c.maxFeatures),
		tree.WithRandomState(c.randomState + int64(i)),
	}
}

func (c config) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      c.nEstimators,
		"max_depth":         c.maxDepth,
		"min_samples_split": c.minSamplesSplit,
		"min_samples_leaf":  c.minSamplesLeaf,
		"max_features":      c.maxFeatures,
		"bootstrap":         c.bootstrap,
		"random_state":      c.randomState,
		"n_jobs":            c.nJobs,
	}
}

// sample draws the training rows for tree i.
func (c config) sample(X, y mat.Matrix, i int) (*mat.Dense, *mat.Dense) {
	rows, cols := X.Dims()
	if !c.bootstrap {
		return mat.DenseCopyOf(X), mat.DenseCopyOf(y)
	}
	seed := uint64(c.randomState + int64(i))
	rng := rand.New(rand.NewPCG(seed, seed))
	Xs := mat.NewDense(rows, cols, nil)
	ys := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		k := rng.IntN(rows)
		for j := 0; j < cols; j++ {
			Xs.Set(r, j, X.At(k, j))
		}
		ys.Set(r, 0, y.At(k, 0))
	}
	return Xs, ys
}

type estimator interface {
	Fit(X, y mat.Matrix) error
	GetFeatureImportances() []float64
}

// grow fits one tree per estimator slot in parallel. A failing or panicking
// tree fails the whole forest.
func (c config) grow(op string, X, y mat.Matrix, newTree func(i int) estimator) ([]estimator, error) {
	if c.nEstimators < 1 {
		return nil, errors.NewValidationError("n_estimators", "must be positive", c.nEstimators)
	}
	trees := make([]estimator, c.nEstimators)
	err := parallel.ForEach(context.Background(), c.nEstimators, parallel.Workers(c.nJobs), func(_ context.Context, i int) error {
		return errors.SafeExecute(fmt.Sprintf("%s[%d]", op, i), func() error {
			Xs, ys := c.sample(X, y, i)
			t := newTree(i)
			if err := t.Fit(Xs, ys); err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}
	return trees, nil
}

// meanImportances averages the per-tree importances.
func meanImportances(trees []estimator, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, t := range trees {
		for j, v := range t.GetFeatureImportances() {
			out[j] += v / float64(len(trees))
		}
	}
	return out
}
