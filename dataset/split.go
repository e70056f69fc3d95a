package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

var nan = math.NaN()

// Split is the result of TrainTestSplit.
type Split struct {
	XTrain, XTest *Frame
	YTrain, YTest *Column
	Seed          int64
	TestSize      float64
}

// Shapes returns (train rows, test rows, feature count).
func (s *Split) Shapes() (train, test, features int) {
	return s.XTrain.Rows(), s.XTest.Rows(), s.XTrain.Cols()
}

// TrainTestSplit shuffles the rows with a permutation seeded by seed and
// holds out ceil(testSize·n) of them. The same seed always yields the same
// partition.
func TrainTestSplit(X *Frame, y *Column, testSize float64, seed int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := X.Rows()
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.WithHint(
			errors.NewValidationError("test_size", "leaves an empty train or test set", testSize),
			"use a larger dataset or a different test size",
		)
	}

	perm := Permutation(n, seed)
	test, train := perm[:nTest], perm[nTest:]
	return &Split{
		XTrain:   X.Take(train),
		XTest:    X.Take(test),
		YTrain:   y.Take(train),
		YTest:    y.Take(test),
		Seed:     seed,
		TestSize: testSize,
	}, nil
}

// Permutation returns a seeded permutation of [0, n).
func Permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	return rng.Perm(n)
}
