package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/trainedml/core/parallel"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Correlation methods.
const (
	Pearson  = "pearson"
	Spearman = "spearman"
	Kendall  = "kendall"
)

// Methods lists the supported correlation methods.
var Methods = []string{Pearson, Spearman, Kendall}

// CorrMatrix is a symmetric correlation matrix over named columns.
type CorrMatrix struct {
	Names  []string
	Method string
	Values *mat.SymDense
}

// At returns the coefficient between columns i and j.
func (m *CorrMatrix) At(i, j int) float64 { return m.Values.At(i, j) }

// Get returns the coefficient between two named columns.
func (m *CorrMatrix) Get(a, b string) (float64, error) {
	i, j := m.index(a), m.index(b)
	if i < 0 {
		return 0, errors.NewColumnNotFoundError(a, m.Names)
	}
	if j < 0 {
		return 0, errors.NewColumnNotFoundError(b, m.Names)
	}
	return m.Values.At(i, j), nil
}

func (m *CorrMatrix) index(name string) int {
	for i, n := range m.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Correlation computes the correlation matrix of the named numeric columns,
// or all numeric columns. Each pair uses the rows where both are present.
// A constant column correlates as NaN with everything but itself.
func (a *Analyzer) Correlation(features []string, method string) (*CorrMatrix, error) {
	if method == "" {
		method = Pearson
	}
	coef, ok := correlators[method]
	if !ok {
		return nil, errors.WithHint(
			errors.NewValidationError("method", "unknown correlation method", method),
			"use pearson, spearman or kendall",
		)
	}
	cols, err := a.numeric("Correlation", features)
	if err != nil {
		return nil, err
	}

	k := len(cols)
	out := &CorrMatrix{Method: method, Values: mat.NewSymDense(k, nil)}
	type pair struct{ i, j int }
	var pairs []pair
	for i, c := range cols {
		out.Names = append(out.Names, c.Name)
		out.Values.SetSym(i, i, 1)
		for j := i + 1; j < k; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	values := make([]float64, len(pairs))
	parallel.Parallelize(len(pairs), func(start, end int) {
		for p := start; p < end; p++ {
			x, y := complete(cols[pairs[p].i].Floats, cols[pairs[p].j].Floats)
			values[p] = coef(x, y)
		}
	})
	for p, pr := range pairs {
		out.Values.SetSym(pr.i, pr.j, values[p])
	}
	for i, c := range cols {
		if x := c.Present(); len(x) < 2 || isConstant(x) {
			out.Values.SetSym(i, i, math.NaN())
		}
	}
	return out, nil
}

var correlators = map[string]func(x, y []float64) float64{
	Pearson:  pearson,
	Spearman: spearman,
	Kendall:  kendallTauB,
}

// complete keeps the rows where both x and y are present.
func complete(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func isConstant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 || isConstant(x) || isConstant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func spearman(x, y []float64) float64 {
	return pearson(ranks(x), ranks(y))
}

// ranks assigns 1-based ranks, averaging over ties.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	r := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[idx[k]] = avg
		}
		i = j + 1
	}
	return r
}

// kendallTauB is Kendall's tau with the tau-b tie correction
// (C − D) / sqrt((n0 − n1)(n0 − n2)).
func kendallTauB(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return math.NaN()
	}
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
				tiesX++
				tiesY++
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}
	n0 := float64(n*(n-1)) / 2
	den := math.Sqrt((n0 - tiesX) * (n0 - tiesY))
	if den == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / den
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
