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
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "easyfit: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "easyfit: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 3, 2, 1)

	want := "easyfit: Predict: dimension mismatch on axis 1 (features). Expected 3, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("linear_reg", "Predict")

	want := "easyfit: linear_reg: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewUnknownAlgorithmError(t *testing.T) {
	err := NewUnknownAlgorithmError("svm", "classification", []string{"decision_tree", "logistic_reg"})

	want := `easyfit: unknown classification algorithm "svm" (available: decision_tree, logistic_reg)`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var unknown *UnknownAlgorithmError
	if !As(err, &unknown) {
		t.Fatal("Error should be castable to *UnknownAlgorithmError")
	}
	if unknown.Name != "svm" {
		t.Errorf("Name = %q, want svm", unknown.Name)
	}
}

func TestNewMissingFeatureError(t *testing.T) {
	err := NewMissingFeatureError("prediction", "Petal.Width")

	if !strings.Contains(err.Error(), "feature 'Petal.Width'") {
		t.Errorf("Error() = %v, want feature name", err.Error())
	}

	var shapeErr *InputShapeError
	if !As(err, &shapeErr) {
		t.Error("Error should be castable to *InputShapeError")
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("Split", "prop: 1.5 (must be in (0, 1))")

	want := "easyfit: Split: prop: 1.5 (must be in (0, 1))"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValueError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("LBFGS", 100, "gradient threshold not reached")

	want := "LBFGS failed to converge after 100 iterations: gradient threshold not reached"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}
}

func TestWarn_ZerologFunc(t *testing.T) {
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

	Warn(NewUndefinedMetricWarning("roc_auc", "only one class present in truth", 0.5))

	out := buf.String()
	if !strings.Contains(out, `"metric":"roc_auc"`) {
		t.Errorf("expected structured warning, got %s", out)
	}
	if !strings.Contains(out, `"type":"UndefinedMetricWarning"`) {
		t.Errorf("expected warning type, got %s", out)
	}
}

func TestWarn_Handler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewDataConversionWarning("string", "factor", "character outcome"))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrSingularMatrix, "in linear.Regression.Fit")

	if !Is(wrapped, ErrSingularMatrix) {
		t.Error("Expected Is(wrapped, ErrSingularMatrix) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in linear.Regression.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Predict: expected 10, got 5"
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

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("Fit", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckNumericalStability("Fit", []float64{1, nan()}); err == nil {
		t.Error("expected error for NaN")
	}
	if got := ClipValue(2, 0, 1); got != 1 {
		t.Errorf("ClipValue(2, 0, 1) = %v, want 1", got)
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
