package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(X); err == nil {
		t.Fatal("expected NotFittedError before Fit")
	}

	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	if math.Abs(scaler.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v, want 2.5", scaler.Mean[0])
	}
	// 母標準偏差 sqrt(1.25)
	if math.Abs(scaler.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale[0] = %v, want sqrt(1.25)", scaler.Scale[0])
	}
	// 分散0の列はスケール1
	if scaler.Scale[1] != 1 {
		t.Errorf("Scale[1] = %v, want 1", scaler.Scale[1])
	}
	if Xs.At(0, 1) != 0 {
		t.Errorf("constant column should center to 0, got %v", Xs.At(0, 1))
	}

	back, err := scaler.InverseTransform(Xs)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Error("InverseTransform did not restore the input")
	}

	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestLabelEncoder(t *testing.T) {
	y := dataset.NewCategoricalColumn("species", []string{"virginica", "setosa", "versicolor", "setosa"})

	enc := NewLabelEncoder()
	codes, err := enc.FitTransform(y)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{2, 0, 1, 0}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes[%d] = %v, want %v", i, codes[i], want[i])
		}
	}

	labels, err := enc.InverseTransform([]float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if labels[0] != "versicolor" || labels[1] != "virginica" {
		t.Errorf("InverseTransform() = %v", labels)
	}

	if _, err := enc.InverseTransform([]float64{3}); err == nil {
		t.Error("expected error for out-of-range code")
	}
}

func TestLabelEncoderNumericOrder(t *testing.T) {
	y := dataset.NewNumericColumn("quality", []float64{10, 9, 3})

	enc := NewLabelEncoder()
	if err := enc.Fit(y); err != nil {
		t.Fatal(err)
	}
	got := enc.Classes()
	if got[0] != "3" || got[1] != "9" || got[2] != "10" {
		t.Errorf("Classes() = %v, want numeric order", got)
	}
}
