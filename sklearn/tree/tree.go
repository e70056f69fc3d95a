// Package tree implements CART decision trees for classification (gini or
// entropy) and regression (squared error).
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Feature subsampling strategies accepted by WithMaxFeatures.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

type params struct {
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	maxFeaturesN    int
	randomState     int64
}

// Option configures a decision tree.
type Option func(*params)

// WithCriterion sets the impurity measure.
func WithCriterion(c string) Option { return func(p *params) { p.criterion = c } }

// WithMaxDepth limits the depth of the tree. Zero means unlimited.
func WithMaxDepth(d int) Option { return func(p *params) { p.maxDepth = d } }

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option { return func(p *params) { p.minSamplesSplit = n } }

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option { return func(p *params) { p.minSamplesLeaf = n } }

// WithMaxFeatures sets how many features are tried at each split: "all",
// "sqrt" or "log2" of the feature count.
func WithMaxFeatures(s string) Option {
	return func(p *params) { p.maxFeatures, p.maxFeaturesN = s, 0 }
}

// WithMaxFeaturesN tries exactly n features at each split.
func WithMaxFeaturesN(n int) Option {
	return func(p *params) { p.maxFeatures, p.maxFeaturesN = "", n }
}

// WithRandomState seeds the feature subsampling.
func WithRandomState(seed int64) Option { return func(p *params) { p.randomState = seed } }

func newParams(criterion string, opts []Option) params {
	p := params{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p params) validate(criteria ...string) error {
	valid := false
	for _, c := range criteria {
		valid = valid || p.criterion == c
	}
	switch {
	case !valid:
		return errors.NewValidationError("criterion", fmt.Sprintf("must be one of %v", criteria), p.criterion)
	case p.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", p.maxDepth)
	case p.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.minSamplesSplit)
	case p.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be positive", p.minSamplesLeaf)
	case p.maxFeaturesN < 0:
		return errors.NewValidationError("max_features", "must be positive", p.maxFeaturesN)
	case p.maxFeaturesN == 0 && p.maxFeatures != MaxFeaturesAll && p.maxFeatures != MaxFeaturesSqrt && p.maxFeatures != MaxFeaturesLog2:
		return errors.NewValidationError("max_features", "must be all, sqrt, log2 or a count", p.maxFeatures)
	}
	return nil
}

// featuresPerSplit resolves max_features against the number of columns.
func (p params) featuresPerSplit(nFeatures int) int {
	k := nFeatures
	switch {
	case p.maxFeaturesN > 0:
		k = p.maxFeaturesN
	case p.maxFeatures == MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case p.maxFeatures == MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	}
	return max(1, min(k, nFeatures))
}

func (p params) asMap() map[string]interface{} {
	mf := interface{}(p.maxFeatures)
	if p.maxFeaturesN > 0 {
		mf = p.maxFeaturesN
	}
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      mf,
		"random_state":      p.randomState,
	}
}

type node struct {
	leaf      bool
	feature   int
	threshold float64 // x <= threshold goes left
	left      *node
	right     *node
	nSamples  int
	impurity  float64
	value     []float64 // class probabilities, or the mean target
}

func (n *node) find(x []float64) *node {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

// criterion accumulates impurity statistics while the builder sweeps
// sorted samples from the right child into the left one.
type criterion interface {
	// reset loads the node samples; all of them start on the right.
	reset(idx []int)
	impurity() float64
	value() []float64
	moveLeft(i int)
	children() (left, right float64)
}

type builder struct {
	X           *mat.Dense
	p           params
	crit        criterion
	rng         *rand.Rand
	maxFeatures int
	importances []float64
	nLeaves     int
	depth       int
}

func newBuilder(X *mat.Dense, p params, crit criterion) *builder {
	_, cols := X.Dims()
	seed := uint64(p.randomState)
	return &builder{
		X:           X,
		p:           p,
		crit:        crit,
		rng:         rand.New(rand.NewPCG(seed, seed)),
		maxFeatures: p.featuresPerSplit(cols),
		importances: make([]float64, cols),
	}
}

func (b *builder) build(idx []int, depth int) *node {
	b.crit.reset(idx)
	n := &node{
		nSamples: len(idx),
		impurity: b.crit.impurity(),
		value:    b.crit.value(),
	}
	b.depth = max(b.depth, depth)

	stop := n.impurity <= 1e-12 ||
		len(idx) < b.p.minSamplesSplit ||
		len(idx) < 2*b.p.minSamplesLeaf ||
		(b.p.maxDepth > 0 && depth >= b.p.maxDepth)
	if !stop {
		if s, ok := b.bestSplit(idx); ok {
			n.feature, n.threshold = s.feature, s.threshold
			left, right := b.partition(idx, s)
			b.importances[s.feature] += float64(len(idx))*n.impurity -
				float64(len(left))*s.leftImpurity - float64(len(right))*s.rightImpurity
			n.left = b.build(left, depth+1)
			n.right = b.build(right, depth+1)
			return n
		}
	}
	n.leaf = true
	b.nLeaves++
	return n
}

type split struct {
	feature       int
	threshold     float64
	score         float64 // weighted child impurity
	leftImpurity  float64
	rightImpurity float64
}

// bestSplit scans candidate features in random order and returns the
// threshold with the lowest weighted child impurity. Features constant
// within the node do not count towards max_features. Earlier candidates win
// ties.
func (b *builder) bestSplit(idx []int) (split, bool) {
	_, cols := b.X.Dims()
	minLeaf := b.p.minSamplesLeaf
	n := float64(len(idx))

	best := split{score: math.Inf(1)}
	found := false
	visited := 0
	sorted := make([]int, len(idx))
	for _, f := range b.featureOrder(cols) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X.At(sorted[a], f) < b.X.At(sorted[c], f) })
		if b.X.At(sorted[0], f) == b.X.At(sorted[len(sorted)-1], f) {
			continue
		}
		visited++

		b.crit.reset(sorted)
		for pos := 0; pos < len(sorted)-1; pos++ {
			b.crit.moveLeft(sorted[pos])
			nLeft := pos + 1
			if nLeft < minLeaf || len(sorted)-nLeft < minLeaf {
				continue
			}
			v, next := b.X.At(sorted[pos], f), b.X.At(sorted[pos+1], f)
			if v == next {
				continue
			}
			li, ri := b.crit.children()
			score := (float64(nLeft)*li + float64(len(sorted)-nLeft)*ri) / n
			if score < best.score {
				threshold := v + (next-v)/2
				if threshold == next {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, score: score, leftImpurity: li, rightImpurity: ri}
				found = true
			}
		}
	}
	return best, found
}

// featureOrder returns every feature index, shuffled when features are
// subsampled.
func (b *builder) featureOrder(cols int) []int {
	if b.maxFeatures >= cols {
		out := make([]int, cols)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return b.rng.Perm(cols)
}

func (b *builder) partition(idx []int, s split) (left, right []int) {
	for _, i := range idx {
		if b.X.At(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// normalizedImportances scales impurity decreases to sum to one.
func normalizedImportances(raw []float64) []float64 {
	out := make([]float64, len(raw))
	var total float64
	for _, v := range raw {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range raw {
		out[i] = v / total
	}
	return out
}

// fitted holds what every tree keeps after Fit.
type fitted struct {
	root        *node
	importances []float64
	nLeaves     int
	depth       int
}

func grow(X *mat.Dense, p params, crit criterion) fitted {
	rows, _ := X.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	b := newBuilder(X, p, crit)
	root := b.build(idx, 0)
	return fitted{
		root:        root,
		importances: normalizedImportances(b.importances),
		nLeaves:     b.nLeaves,
		depth:       b.depth,
	}
}

// predictLeaves runs every row of X down the tree and stores the leaf value.
func (f fitted) predictLeaves(X mat.Matrix, width int) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, width, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := range x {
			x[j] = X.At(i, j)
		}
		out.SetRow(i, f.root.find(x).value)
	}
	return out
}
