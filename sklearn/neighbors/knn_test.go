package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

func TestKNeighborsClassifier_Predict(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		5, 5,
		5, 6,
		6, 5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"near origin", []float64{0.2, 0.2}, 0},
		{"near far cluster", []float64{5.5, 5.5}, 1},
		{"closer to origin", []float64{2, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := knn.Predict(mat.NewDense(1, 2, tt.x))
			if err != nil {
				t.Fatalf("Predict failed: %v", err)
			}
			if pred.At(0, 0) != tt.want {
				t.Errorf("got %v, want %v", pred.At(0, 0), tt.want)
			}
		})
	}
}

func TestKNeighborsClassifier_VoteTieGoesToSmallestLabel(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -2, 2})
	y := mat.NewDense(4, 1, []float64{7, 3, 7, 3})

	knn := NewKNeighborsClassifier(WithNeighbors(4))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 3 {
		t.Errorf("tie resolved to %v, want 3", pred.At(0, 0))
	}
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 10, 11})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{0.5}))
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if math.Abs(proba.At(0, 0)-2.0/3) > 1e-12 || math.Abs(proba.At(0, 1)-1.0/3) > 1e-12 {
		t.Errorf("got %v", mat.Formatted(proba))
	}
	if c := knn.Classes(); len(c) != 2 || c[0] != 0 || c[1] != 1 {
		t.Errorf("Classes() = %v", c)
	}
}

func TestKNeighborsClassifier_ParallelMatchesSerial(t *testing.T) {
	n := predictThreshold * 3
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		if i >= n/2 {
			y.Set(i, 0, 1)
		}
	}
	knn := NewKNeighborsClassifier()
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	pred, err := knn.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		single, _ := knn.Predict(mat.NewDense(1, 1, []float64{float64(i)}))
		if pred.At(i, 0) != single.At(0, 0) {
			t.Fatalf("row %d: batch %v, single %v", i, pred.At(i, 0), single.At(0, 0))
		}
	}
}

func TestKNeighborsRegressor_Predict(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{10, 20, 30, 40, 50})

	knn := NewKNeighborsRegressor(WithNeighbors(2))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{1.4, 4.6}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(pred.At(0, 0)-15) > 1e-12 {
		t.Errorf("pred[0] = %v, want 15", pred.At(0, 0))
	}
	if math.Abs(pred.At(1, 0)-45) > 1e-12 {
		t.Errorf("pred[1] = %v, want 45", pred.At(1, 0))
	}

	if params := knn.GetParams(); params["n_neighbors"] != 2 {
		t.Errorf("n_neighbors = %v", params["n_neighbors"])
	}
}

func TestKNeighbors_Errors(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{0, 1, 0})

	t.Run("not fitted", func(t *testing.T) {
		_, err := NewKNeighborsRegressor().Predict(X)
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %v", err)
		}
	})

	t.Run("k larger than training set", func(t *testing.T) {
		if err := NewKNeighborsClassifier().Fit(X, y); err == nil {
			t.Error("expected error for k=5 with 3 samples")
		}
	})

	t.Run("feature mismatch", func(t *testing.T) {
		knn := NewKNeighborsClassifier(WithNeighbors(1))
		if err := knn.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		_, err := knn.Predict(mat.NewDense(1, 3, nil))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})

	t.Run("nan input", func(t *testing.T) {
		knn := NewKNeighborsClassifier(WithNeighbors(1))
		if err := knn.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if _, err := knn.Predict(mat.NewDense(1, 2, []float64{math.NaN(), 0})); err == nil {
			t.Error("expected error for NaN input")
		}
	})
}
