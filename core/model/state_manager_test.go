package model

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager("KNeighborsClassifier")

	var notFitted *errors.NotFittedError
	if err := s.RequireFitted("Predict"); !errors.As(err, &notFitted) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}

	s.SetFitted(4, 120)
	if !s.IsFitted() {
		t.Fatal("expected fitted state")
	}
	if f, n := s.GetDimensions(); f != 4 || n != 120 {
		t.Errorf("GetDimensions() = (%d, %d), want (4, 120)", f, n)
	}

	var dimErr *errors.DimensionError
	if err := s.CheckPredict("Predict", mat.NewDense(2, 3, nil)); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
	if err := s.CheckPredict("Predict", mat.NewDense(2, 4, nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("expected reset state")
	}
}

func TestValidateFit(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	tests := []struct {
		name    string
		y       mat.Matrix
		wantErr bool
	}{
		{"valid", mat.NewDense(3, 1, []float64{0, 1, 0}), false},
		{"wrong rows", mat.NewDense(2, 1, []float64{0, 1}), true},
		{"two columns", mat.NewDense(3, 2, nil), true},
		{"nan target", mat.NewDense(3, 1, []float64{0, nan(), 1}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, cols, err := ValidateFit("Fit", X, tt.y)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (rows != 3 || cols != 2) {
				t.Errorf("dims = (%d, %d), want (3, 2)", rows, cols)
			}
		})
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
