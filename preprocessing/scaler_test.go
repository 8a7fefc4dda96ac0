package preprocessing

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	wantMean := []float64{2.5, 10}
	wantScale := []float64{math.Sqrt(1.25), 1} // constant column keeps scale 1
	for j := range wantMean {
		if math.Abs(s.Mean[j]-wantMean[j]) > 1e-12 {
			t.Errorf("Mean[%d] = %v, want %v", j, s.Mean[j], wantMean[j])
		}
		if math.Abs(s.Scale[j]-wantScale[j]) > 1e-12 {
			t.Errorf("Scale[%d] = %v, want %v", j, s.Scale[j], wantScale[j])
		}
	}

	var colMean float64
	for i := 0; i < 4; i++ {
		colMean += out.At(i, 0)
		if out.At(i, 1) != 0 {
			t.Errorf("constant column should transform to 0, got %v", out.At(i, 1))
		}
	}
	if math.Abs(colMean) > 1e-12 {
		t.Errorf("transformed column mean = %v, want 0", colMean/4)
	}

	back, err := s.InverseTransform(out)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Error("InverseTransform should recover the input")
	}
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 1, []float64{1}))
	var untrained *errors.UntrainedModelError
	if !errors.As(err, &untrained) {
		t.Fatalf("expected UntrainedModelError, got %v", err)
	}

	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	_, err = s.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestStandardScalerRestore(t *testing.T) {
	s := NewStandardScalerDefault()
	if err := s.Fit(mat.NewDense(3, 1, []float64{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var restored StandardScaler
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Transform(mat.NewDense(1, 1, []float64{5}))
	b, err := restored.Transform(mat.NewDense(1, 1, []float64{5}))
	if err != nil {
		t.Fatal(err)
	}
	if a.At(0, 0) != b.At(0, 0) {
		t.Errorf("restored scaler = %v, want %v", b.At(0, 0), a.At(0, 0))
	}

	if err := (&StandardScaler{}).Restore(); err == nil {
		t.Error("expected error restoring an empty scaler")
	}
}
