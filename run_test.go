package easyfit

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
	"github.com/YuminosukeSato/easyfit/registry"
	"github.com/YuminosukeSato/easyfit/tune"
)

// regressionTable returns y = 2*x1 - x2 plus a small deterministic wobble.
func regressionTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i % 10)
		x2[i] = float64((i * 7) % 13)
		y[i] = 2*x1[i] - x2[i] + 0.1*float64((i*3)%5)
	}
	tbl := dataset.NewTable()
	require.NoError(t, tbl.AddNumeric("x1", x1))
	require.NoError(t, tbl.AddNumeric("x2", x2))
	require.NoError(t, tbl.AddNumeric("y", y))
	return tbl
}

// classificationTable returns two well separated clusters "a" and "b" and
// a categorical predictor unrelated to the class.
func classificationTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	g := make([]string, n)
	class := make([]string, n)
	for i := 0; i < n; i++ {
		shift := 0.0
		class[i] = "a"
		if i%2 == 1 {
			shift = 10
			class[i] = "b"
		}
		x1[i] = shift + float64(i%5)
		x2[i] = shift + float64((i*3)%5)
		g[i] = []string{"u", "v", "w"}[i%3]
	}
	tbl := dataset.NewTable()
	require.NoError(t, tbl.AddNumeric("x1", x1))
	require.NoError(t, tbl.AddNumeric("x2", x2))
	require.NoError(t, tbl.AddCategorical("g", g))
	require.NoError(t, tbl.AddCategorical("class", class))
	return tbl
}

func quiet(t *testing.T) {
	t.Helper()
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
}

func TestRun_Regression(t *testing.T) {
	quiet(t)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := Run(context.Background(), regressionTable(t, 80), "y",
		[]string{"Linear Regression", "decision_tree", "svm_rbf"},
		WithFolds(3, 1),
		WithGrid(tune.Regular, 3),
		WithWorkers(2),
		WithLogger(logger),
	)
	require.NoError(t, err)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Equal(t, model.Regression, res.Mode)
	assert.Equal(t, 60, res.TrainRows)
	assert.Equal(t, 20, res.TestRows)
	require.Len(t, res.Fits, 3)
	assert.Len(t, res.Successful(), 2)

	failed := res.Failed()
	require.Len(t, failed, 1)
	var unknown *errors.UnknownAlgorithmError
	assert.True(t, errors.As(failed[0].Err, &unknown))

	lm, ok := res.Get("linear_reg")
	require.True(t, ok)
	require.NotNil(t, lm.Tuning)
	assert.Len(t, lm.Tuning.Candidates, 3)
	assert.Contains(t, lm.Params, model.Penalty)
	assert.Less(t, lm.TestMetrics["rmse"], 0.2)
	assert.Len(t, lm.Predictions, 20)
	assert.Nil(t, lm.Probabilities)

	best, err := res.Best("")
	require.NoError(t, err)
	assert.Equal(t, "linear_reg", best.Name)

	ranked, err := res.Ranked("rsq")
	require.NoError(t, err)
	assert.Equal(t, "linear_reg", ranked[0].Name)

	_, err = res.Best("accuracy")
	assert.Error(t, err)

	pred, err := lm.Predict(regressionTable(t, 5))
	require.NoError(t, err)
	assert.InDelta(t, 0, pred[0], 0.3)

	assert.True(t, logger.ContainsMessage("Run started"))
	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))
	assert.True(t, logger.ContainsMessage("Algorithm failed"))
}

func TestRun_Classification(t *testing.T) {
	quiet(t)
	var converted []error
	errors.SetWarningHandler(func(w error) {
		var dc *errors.DataConversionWarning
		if errors.As(w, &dc) {
			converted = append(converted, w)
		}
	})

	progress := map[string]int{}
	res, err := Run(context.Background(), classificationTable(t, 60), "class",
		[]string{"logistic_reg", "knn", "naive_bayes"},
		WithFolds(3, 1),
		WithGrid(tune.LatinHypercube, 3),
		WithWorkers(1),
		WithProgress(func(name string, done, total int) { progress[name] = total }),
	)
	require.NoError(t, err)
	assert.Equal(t, model.Classification, res.Mode)
	assert.Equal(t, []string{"a", "b"}, res.Levels)
	assert.Len(t, res.Successful(), 3)
	assert.Len(t, converted, 1, "dummy expansion is reported once")

	for _, f := range res.Successful() {
		assert.GreaterOrEqual(t, f.TestMetrics["accuracy"], 0.9, f.Name)
		require.NotNil(t, f.Probabilities, f.Name)
		r, c := f.Probabilities.Dims()
		assert.Equal(t, res.TestRows, r)
		assert.Equal(t, 2, c)
	}
	assert.Nil(t, res.Fits[2].Tuning, "naive_bayes has nothing to tune")
	assert.Contains(t, progress, "logistic_reg")
	assert.Contains(t, progress, "nearest_neighbor")

	knn, ok := res.Get("nearest_neighbor")
	require.True(t, ok)
	labels, err := knn.PredictLabels(classificationTable(t, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "b"}, labels)

	proba, err := knn.PredictProba(classificationTable(t, 2))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba.At(0, 0)+proba.At(0, 1), 1e-12)
}

func TestRun_NoTuning(t *testing.T) {
	quiet(t)
	test := regressionTable(t, 12)
	res, err := Run(context.Background(), regressionTable(t, 40), "y",
		[]string{"lm", "knn"},
		WithTuning(false),
		WithTestData(test),
		WithFolds(1, 1),
	)
	require.NoError(t, err)
	assert.Equal(t, 40, res.TrainRows)
	assert.Equal(t, 12, res.TestRows)
	for _, f := range res.Fits {
		assert.Nil(t, f.Tuning)
		assert.True(t, f.Params.Equal(map[string]model.Params{
			"linear_reg":       {model.Penalty: 0.0},
			"nearest_neighbor": {model.Neighbors: 5, model.Distance: "euclidean"},
		}[f.Name]), f.Name)
	}
}

func TestRun_Bayes(t *testing.T) {
	quiet(t)
	res, err := Run(context.Background(), regressionTable(t, 40), "y",
		[]string{"linear_reg"},
		WithFolds(2, 1),
		WithBayes(3),
		WithSelection("rmse", SelectOneStdErr),
	)
	require.NoError(t, err)
	lm := res.Fits[0]
	require.NotNil(t, lm.Tuning)
	assert.Equal(t, tune.Bayesian, lm.Tuning.Type)
	assert.Len(t, lm.Tuning.Candidates, 3)
}

func TestRun_DropMissing(t *testing.T) {
	quiet(t)
	tbl := regressionTable(t, 40)
	x1, _ := tbl.Column("x1")
	x1.Numeric[3] = math.NaN()

	res, err := Run(context.Background(), tbl, "y", []string{"lm"}, WithTuning(false))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 39, res.TrainRows+res.TestRows)

	_, err = Run(context.Background(), tbl, "y", []string{"lm"}, WithTuning(false), WithDropMissing(false))
	assert.Error(t, err, "recipe rejects missing predictors")
}

func TestRun_RareLevel(t *testing.T) {
	quiet(t)
	n := 41
	x := make([]float64, n)
	class := make([]string, n)
	for i := 0; i < n; i++ {
		class[i] = []string{"a", "b"}[i%2]
		x[i] = float64(i%2)*10 + float64(i%7)
	}
	class[n-1], x[n-1] = "c", 30
	tbl := dataset.NewTable()
	require.NoError(t, tbl.AddNumeric("x", x))
	require.NoError(t, tbl.AddCategorical("class", class))

	res, err := Run(context.Background(), tbl, "class", []string{"logistic_reg"}, WithTuning(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Levels)
	require.Len(t, res.Successful(), 1)
	_, c := res.Fits[0].Probabilities.Dims()
	assert.Equal(t, 3, c)

	// a level that only the supplied test data has
	test := dataset.NewTable()
	require.NoError(t, test.AddNumeric("x", []float64{1, 12, 40}))
	require.NoError(t, test.AddCategorical("class", []string{"a", "b", "d"}))
	res, err = Run(context.Background(), tbl, "class", []string{"logistic_reg"},
		WithTuning(false), WithTestData(test))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Levels)
	assert.Len(t, res.Successful(), 1)
}

// separableTable has numeric predictors only; class is decided by x1 alone.
func separableTable(t *testing.T, n int) *dataset.Table {
	t.Helper()
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	class := make([]string, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i)
		x2[i] = float64((i * 7) % 11)
		class[i] = "low"
		if i >= n/2 {
			class[i] = "high"
		}
	}
	tbl := dataset.NewTable()
	require.NoError(t, tbl.AddNumeric("x1", x1))
	require.NoError(t, tbl.AddNumeric("x2", x2))
	require.NoError(t, tbl.AddCategorical("class", class))
	return tbl
}

func TestRun_EveryClassifier(t *testing.T) {
	quiet(t)
	for _, name := range registry.Algorithms(model.Classification) {
		t.Run(name, func(t *testing.T) {
			res, err := Run(context.Background(), separableTable(t, 80), "class",
				[]string{name}, WithTuning(false))
			require.NoError(t, err)
			f := res.Fits[0]
			require.NoError(t, f.Err)
			assert.GreaterOrEqual(t, f.TestMetrics["accuracy"], 0.8)
		})
	}
}

func TestRun_BoostTree(t *testing.T) {
	quiet(t)
	res, err := Run(context.Background(), regressionTable(t, 80), "y",
		[]string{"lightgbm"}, WithTuning(false))
	require.NoError(t, err)
	f := res.Fits[0]
	require.NoError(t, f.Err)
	assert.Equal(t, "boost_tree", f.Name)
	assert.Equal(t, 100, f.Params.GetInt(model.Trees, 0))
	assert.Equal(t, 0.1, f.Params.GetFloat(model.LearnRate, 0))
	assert.Greater(t, f.TestMetrics["rsq"], 0.5)
}

func TestRun_Invalid(t *testing.T) {
	quiet(t)
	ctx := context.Background()
	tbl := regressionTable(t, 20)

	tests := []struct {
		name  string
		train *dataset.Table
		alg   []string
		opts  []Option
	}{
		{"empty table", dataset.NewTable(), []string{"lm"}, nil},
		{"no algorithms", tbl, nil, nil},
		{"one fold", tbl, []string{"lm"}, []Option{WithFolds(1, 1)}},
		{"bad rule", tbl, []string{"lm"}, []Option{WithSelection("", "median")}},
		{"bad grid", tbl, []string{"lm"}, []Option{WithGrid("sobol", 3)}},
		{"bad prop", tbl, []string{"lm"}, []Option{WithSplit(1.5, "")}},
		{"metric of other mode", tbl, []string{"lm"}, []Option{WithMetrics("accuracy")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(ctx, tt.train, "y", tt.alg, tt.opts...)
			assert.Error(t, err)
		})
	}

	_, err := Run(ctx, tbl, "nope", []string{"lm"})
	assert.Error(t, err)

	res, err := Run(ctx, tbl, "y", []string{"rand_forest", "svm"}, WithTuning(false))
	require.Error(t, err, "every algorithm fails")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedMode))
	require.NotNil(t, res)
	assert.Empty(t, res.Successful())
}
