package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Train",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "salescope: Train: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "corrupt estimator",
			err:      nil,
			wantMsg:  "salescope: Predict: corrupt estimator",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Split", 30, 29, 0)

	want := "salescope: Split: dimension mismatch on axis 0 (rows). Expected 30, got 29"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewUntrainedModelError(t *testing.T) {
	err := NewUntrainedModelError("linear_regression", "Predict")

	want := "salescope: linear_regression: this model is not trained yet. Call Train() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var untrained *UntrainedModelError
	if !As(err, &untrained) {
		t.Fatal("Error should be castable to *UntrainedModelError")
	}
	if untrained.Method != "Predict" {
		t.Errorf("Method = %q, want Predict", untrained.Method)
	}
}

func TestNewMissingColumnError(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		wantMsg    string
	}{
		{
			name:    "without candidates",
			wantMsg: "salescope: Project: required column feature not found",
		},
		{
			name:       "with candidates",
			candidates: []string{"hour", "quantity"},
			wantMsg:    "salescope: Project: required column feature not found (looked for: hour, quantity)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMissingColumnError("Project", "feature", tt.candidates...)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			var missing *MissingColumnError
			if !As(err, &missing) {
				t.Error("Error should be castable to *MissingColumnError")
			}
		})
	}
}

func TestNewModelTrainingError(t *testing.T) {
	cause := New("singular kernel")

	tests := []struct {
		name    string
		fold    int
		phase   string
		wantMsg string
	}{
		{
			name:    "fold failure",
			fold:    2,
			phase:   "cross_validation",
			wantMsg: `salescope: model "svm" failed during cross_validation (fold 2): singular kernel`,
		},
		{
			name:    "final fit failure",
			fold:    -1,
			phase:   "final_fit",
			wantMsg: `salescope: model "svm" failed during final_fit: singular kernel`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelTrainingError("svm", tt.phase, tt.fold, cause)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if !Is(err, cause) {
				t.Error("Expected training error to unwrap to its cause")
			}
			var trainErr *ModelTrainingError
			if !As(err, &trainErr) {
				t.Fatal("Error should be castable to *ModelTrainingError")
			}
			if trainErr.ModelName != "svm" {
				t.Errorf("ModelName = %q, want svm", trainErr.ModelName)
			}
		})
	}
}

func TestNoComparisonAndFileNotFound(t *testing.T) {
	err := NewNoComparisonPerformedError("BestModel")
	var noCmp *NoComparisonPerformedError
	if !As(err, &noCmp) {
		t.Error("Error should be castable to *NoComparisonPerformedError")
	}

	err = NewModelFileNotFoundError("/tmp/missing.json")
	var notFound *ModelFileNotFoundError
	if !As(err, &notFound) {
		t.Fatal("Error should be castable to *ModelFileNotFoundError")
	}
	if notFound.Path != "/tmp/missing.json" {
		t.Errorf("Path = %q", notFound.Path)
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("Load", "bundle holds tree, not svm")
	want := "salescope: Load: bundle holds tree, not svm"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	var valErr *ValueError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		warn error
		want string
	}{
		{
			name: "convergence",
			warn: NewConvergenceWarning("SVR", 1000, "dual gap above tolerance"),
			want: "SVR failed to converge after 1000 iterations: dual gap above tolerance",
		},
		{
			name: "data conversion",
			warn: NewDataConversionWarning("order_date", "text", "date", "unparseable cell"),
			want: "column 'order_date' could not be converted from text to date. Reason: unparseable cell",
		},
		{
			name: "undefined metric",
			warn: NewUndefinedMetricWarning("r2", "constant target", 0),
			want: "'r2' is ill-defined and being set to 0.000000 due to constant target.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.warn.Error() != tt.want {
				t.Errorf("Error() = %v, want %v", tt.warn.Error(), tt.want)
			}
		})
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("SVR", 10, ""))
	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			logger.Warn().EmbedObject(m).Msg(w.Error())
			return
		}
		logger.Warn().Msg(w.Error())
	})
	defer SetZerologWarnFunc(nil)

	Warn(NewDataConversionWarning("order_date", "text", "date", "bad cell"))
	if len(got) != 1 {
		t.Error("zerolog route should take precedence over the handler")
	}
	if !strings.Contains(buf.String(), `"column":"order_date"`) {
		t.Errorf("expected structured warning fields, got %s", buf.String())
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in Cleaner.Clean")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Cleaner.Clean") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrNoFeatures, "in %s: expected %d, got %d", "Train", 6, 0)

	if !Is(wrapped, ErrNoFeatures) {
		t.Error("Expected Is(wrapped, ErrNoFeatures) to be true")
	}
	expectedMsg := "in Train: expected 6, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestNumericalHelpers(t *testing.T) {
	if err := CheckNumericalStability("predict", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("finite values should pass, got %v", err)
	}
	var numErr *NumericalInstabilityError
	err := CheckScalar("kernel", nanValue(), 3)
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", numErr.Iteration)
	}
	if got := SafeDivide(1, 0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v, want 0", got)
	}
	if got := ClipValue(5, 0, 1); got != 1 {
		t.Errorf("ClipValue(5, 0, 1) = %v, want 1", got)
	}
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
