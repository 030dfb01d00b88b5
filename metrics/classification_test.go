package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// collectWarnings records every warning passed to errors.Warn until the test ends.
func collectWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &got
}

func undefinedMetrics(ws []error) []string {
	var names []string
	for _, w := range ws {
		var um *errors.UndefinedMetricWarning
		if errors.As(w, &um) {
			names = append(names, um.Metric)
		}
	}
	return names
}

func optVec(v []float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewVecDense(len(v), v)
}

func TestAccuracy_LevelIndices(t *testing.T) {
	tests := []struct {
		name    string
		truth   []float64
		pred    []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "three levels",
			truth: []float64{0, 1, 2, 2, 1, 0},
			pred:  []float64{0, 2, 2, 2, 1, 1},
			want:  4.0 / 6,
		},
		{
			name:  "every row right",
			truth: []float64{2, 0, 1},
			pred:  []float64{2, 0, 1},
			want:  1,
		},
		{
			name:  "level index never predicted",
			truth: []float64{3, 3},
			pred:  []float64{0, 1},
			want:  0,
		},
		{
			name:    "length mismatch",
			truth:   []float64{0, 1, 2},
			pred:    []float64{0, 1},
			wantErr: true,
		},
		{
			name:    "no rows",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := Accuracy(optVec(tt.truth), optVec(tt.pred))
			miss, errMiss := ClassificationError(optVec(tt.truth), optVec(tt.pred))
			if tt.wantErr {
				if err == nil || errMiss == nil {
					t.Errorf("expected errors, got %v and %v", err, errMiss)
				}
				return
			}
			if err != nil || errMiss != nil {
				t.Fatalf("unexpected errors %v, %v", err, errMiss)
			}
			if math.Abs(acc-tt.want) > 1e-12 {
				t.Errorf("Accuracy() = %v, want %v", acc, tt.want)
			}
			if math.Abs(miss-(1-tt.want)) > 1e-12 {
				t.Errorf("ClassificationError() = %v, want %v", miss, 1-tt.want)
			}
		})
	}
}

func TestBinaryLogLoss_Clipping(t *testing.T) {
	tests := []struct {
		name    string
		truth   []float64
		proba   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "typical",
			truth: []float64{1, 0, 1},
			proba: []float64{0.9, 0.2, 0.6},
			want:  -(math.Log(0.9) + math.Log(0.8) + math.Log(0.6)) / 3,
		},
		{
			name:  "confident and right stays finite",
			truth: []float64{1, 0},
			proba: []float64{1, 0},
			want:  -math.Log(1 - logLossEps),
		},
		{
			name:  "confident and wrong is clipped",
			truth: []float64{1},
			proba: []float64{0},
			want:  -math.Log(logLossEps),
		},
		{
			name:    "level index 2 is not binary",
			truth:   []float64{0, 2},
			proba:   []float64{0.5, 0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(optVec(tt.truth), optVec(tt.proba))
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("BinaryLogLoss() error = %v", err)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("BinaryLogLoss() = %v, want a finite value", got)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BinaryLogLoss() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAUC_UndefinedWarns(t *testing.T) {
	tests := []struct {
		name     string
		truth    []float64
		score    []float64
		want     float64
		warnings int
	}{
		{"separated", []float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.7, 0.9}, 1, 0},
		{"one swapped pair", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75, 0},
		{"tied scores", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5, 0},
		{"only the second level", []float64{1, 1, 1}, []float64{0.2, 0.6, 0.9}, 0.5, 1},
		{"only the first level", []float64{0, 0}, []float64{0.2, 0.6}, 0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := collectWarnings(t)
			got, err := AUC(optVec(tt.truth), optVec(tt.score))
			if err != nil {
				t.Fatalf("AUC() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
			names := undefinedMetrics(*ws)
			if len(names) != tt.warnings {
				t.Fatalf("got %d undefined-metric warnings, want %d", len(names), tt.warnings)
			}
			for _, n := range names {
				if n != "roc_auc" {
					t.Errorf("warning names %q, want roc_auc", n)
				}
			}
		})
	}

	if _, err := AUC(optVec([]float64{0, 0.5}), optVec([]float64{0.1, 0.2})); err == nil {
		t.Error("fractional labels should fail")
	}
}

func TestAUCMatrix_FirstColumn(t *testing.T) {
	truth := mat.NewDense(4, 2, []float64{
		0, 9,
		0, 9,
		1, 9,
		1, 9,
	})
	score := mat.NewDense(4, 1, []float64{0.1, 0.4, 0.35, 0.8})
	got, err := AUCMatrix(truth, score)
	if err != nil {
		t.Fatalf("AUCMatrix() error = %v", err)
	}
	if math.Abs(got-0.75) > 1e-12 {
		t.Errorf("AUCMatrix() = %v, want 0.75", got)
	}

	if _, err := AUCMatrix(truth, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("row mismatch should fail")
	}
	if _, err := AUCMatrix(nil, score); err == nil {
		t.Error("nil truth should fail")
	}
}

func TestMacroAUC_AbsentLevel(t *testing.T) {
	ws := collectWarnings(t)

	// level 2 never appears in the truth
	truth := []float64{0, 1, 0, 1}
	proba := mat.NewDense(4, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.7, 0.2, 0.1,
		0.2, 0.7, 0.1,
	})
	got, err := MacroAUC(truth, proba)
	if err != nil {
		t.Fatalf("MacroAUC() error = %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("MacroAUC() = %v, want 1", got)
	}
	if names := undefinedMetrics(*ws); len(names) != 1 || names[0] != "roc_auc" {
		t.Errorf("expected one roc_auc warning, got %v", names)
	}

	*ws = nil
	got, err = MacroAUC([]float64{2, 2}, mat.NewDense(2, 3, []float64{0.2, 0.2, 0.6, 0.1, 0.1, 0.8}))
	if err != nil {
		t.Fatalf("MacroAUC() error = %v", err)
	}
	if got != 0.5 {
		t.Errorf("MacroAUC() with a single level = %v, want 0.5", got)
	}
	if len(undefinedMetrics(*ws)) != 1 {
		t.Errorf("expected one warning, got %v", *ws)
	}

	if _, err := MacroAUC([]float64{0, 1}, mat.NewDense(2, 1, []float64{0.3, 0.7})); err == nil {
		t.Error("a single probability column should fail")
	}
}

func TestConfusionMatrix_ThreeLevels(t *testing.T) {
	truth := []float64{0, 0, 1, 1, 2, 2}
	pred := []float64{0, 1, 1, 1, 2, 0}
	cm, err := ConfusionMatrix(truth, pred, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	if cm["a"]["a"] != 1 || cm["a"]["b"] != 1 || cm["b"]["b"] != 2 || cm["c"]["c"] != 1 || cm["c"]["a"] != 1 {
		t.Fatalf("unexpected confusion matrix %v", cm)
	}
	if _, ok := cm["c"]; !ok {
		t.Error("every level should have a row")
	}

	kappa, err := Kappa(cm)
	if err != nil {
		t.Fatalf("Kappa() error = %v", err)
	}
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		// po = 4/6, pe = (2*2 + 2*3 + 2*1) / 36 = 1/3
		{"kappa", kappa, 0.5},
		{"macro precision", MacroPrecision(cm), (0.5 + 2.0/3 + 1) / 3},
		{"macro recall", MacroRecall(cm), (0.5 + 1 + 0.5) / 3},
		{"macro f1", MacroF1(cm), (0.5 + 0.8 + 2.0/3) / 3},
		{"f1 of the last level", F1("c", cm), 2.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestConfusionMetrics_Undefined(t *testing.T) {
	ws := collectWarnings(t)

	// b is never predicted, so its precision is 0/0
	cm, err := ConfusionMatrix([]float64{0, 0, 1}, []float64{0, 0, 0}, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	if got, want := MacroPrecision(cm), (2.0/3)/2; math.Abs(got-want) > 1e-12 {
		t.Errorf("MacroPrecision() = %v, want %v", got, want)
	}
	if got := F1("b", cm); got != 0 {
		t.Errorf("F1(b) = %v, want 0", got)
	}
	names := undefinedMetrics(*ws)
	if len(names) != 2 || names[0] != "precision" || names[1] != "f_meas" {
		t.Errorf("undefined-metric warnings = %v, want [precision f_meas]", names)
	}

	if _, err := Kappa(cm); err != nil {
		t.Errorf("Kappa() error = %v", err)
	}
	single, err := ConfusionMatrix([]float64{0, 0}, []float64{0, 0}, []string{"a"})
	if err != nil {
		t.Fatalf("ConfusionMatrix() error = %v", err)
	}
	if _, err := Kappa(single); err == nil {
		t.Error("kappa with expected agreement 1 should fail")
	}
	if _, err := ConfusionMatrix(nil, nil, []string{"a"}); err == nil {
		t.Error("no rows should fail")
	}
	if _, err := ConfusionMatrix([]float64{0, 1}, []float64{0}, []string{"a", "b"}); err == nil {
		t.Error("length mismatch should fail")
	}
}
