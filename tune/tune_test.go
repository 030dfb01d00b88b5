package tune

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/linear"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

func TestParamRange(t *testing.T) {
	pen := LogRange(model.Penalty, -2, 0)
	assert.InDelta(t, 0.01, pen.Value(0), 1e-12)
	assert.InDelta(t, 1, pen.Value(1), 1e-12)
	assert.InDelta(t, 1, pen.Value(7), 1e-12, "u is clipped")
	assert.Equal(t, "penalty log10[-2, 0]", pen.String())

	k := IntRange(model.Neighbors, 1, 3)
	assert.Equal(t, []interface{}{1, 2, 3}, k.Levels(10), "integer levels are unique")
	assert.Equal(t, 2, k.Value(0.5))

	dist := CategoricalRange(model.Distance, "euclidean", "manhattan")
	assert.Equal(t, "euclidean", dist.Value(0.49))
	assert.Equal(t, "manhattan", dist.Value(1))

	mtry := IntRange(model.Mtry, 1, 0).FeatureBound()
	assert.Error(t, mtry.Validate(), "unfinalized")
	assert.Equal(t, "mtry [1, p]", mtry.String())
	fin := mtry.Finalize(6)
	require.NoError(t, fin.Validate())
	assert.Equal(t, 6.0, fin.Upper)

	assert.Error(t, FloatRange("x", 2, 1).Validate())
	assert.Error(t, CategoricalRange("x").Validate())
}

func TestGridRegular(t *testing.T) {
	grid, err := GridRegular([]ParamRange{
		LogRange(model.Penalty, -2, 0),
		CategoricalRange(model.Distance, "a", "b"),
	}, 3)
	require.NoError(t, err)
	require.Len(t, grid, 6)

	pens := map[string]int{}
	for _, p := range grid {
		pens[model.FormatValue(p[model.Penalty])]++
	}
	assert.Equal(t, map[string]int{"0.01": 2, "0.1": 2, "1": 2}, pens)

	_, err = GridRegular([]ParamRange{IntRange("k", 1, 2), IntRange("k", 1, 2)}, 2)
	assert.Error(t, err, "duplicate names")
}

func TestGridLatinHypercube(t *testing.T) {
	grid, err := GridLatinHypercube([]ParamRange{FloatRange("a", 0, 1), FloatRange("b", 0, 1)}, 10, 42)
	require.NoError(t, err)
	require.Len(t, grid, 10)

	// every tenth of each dimension holds exactly one sample
	for _, name := range []string{"a", "b"} {
		bins := make([]int, 10)
		for _, p := range grid {
			v := p.GetFloat(name, -1)
			require.True(t, v >= 0 && v <= 1)
			bins[int(math.Min(v*10, 9))]++
		}
		for i, n := range bins {
			assert.Equal(t, 1, n, "%s bin %d", name, i)
		}
	}

	again, err := GridLatinHypercube([]ParamRange{FloatRange("a", 0, 1), FloatRange("b", 0, 1)}, 10, 42)
	require.NoError(t, err)
	assert.Equal(t, grid, again, "seeded")

	small, err := GridLatinHypercube([]ParamRange{IntRange("k", 1, 3)}, 10, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(small), 3, "duplicates removed")

	_, err = GridLatinHypercube([]ParamRange{IntRange("k", 1, 3)}, 0, 1)
	assert.Error(t, err)
}

func TestGridRandom(t *testing.T) {
	grid, err := GridRandom([]ParamRange{LogRange(model.Penalty, -10, 0)}, 8, 7)
	require.NoError(t, err)
	assert.Len(t, grid, 8)
	for _, p := range grid {
		v := p.GetFloat(model.Penalty, -1)
		assert.True(t, v >= 1e-10 && v <= 1, "penalty %v", v)
	}

	none, err := GridRandom(nil, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, []model.Params{{}}, none)
}

func TestParseGridType(t *testing.T) {
	g, err := ParseGridType("")
	require.NoError(t, err)
	assert.Equal(t, LatinHypercube, g)
	g, err = ParseGridType(" Bayes ")
	require.NoError(t, err)
	assert.Equal(t, Bayesian, g)
	_, err = ParseGridType("sobol")
	assert.Error(t, err)

	_, err = MakeGrid(Bayesian, nil, 3, 1)
	assert.Error(t, err)
}

// line returns y = 3x + 1 with a small wobble and a categorical predictor.
func line(t *testing.T) (*dataset.Table, *dataset.Target) {
	t.Helper()
	n := 30
	x := make([]float64, n)
	y := make([]float64, n)
	g := make([]string, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 3*x[i] + 1 + float64(i%2)*0.1
		g[i] = []string{"a", "b", "c"}[i%3]
	}
	tbl := dataset.NewTable()
	require.NoError(t, tbl.AddNumeric("x", x))
	require.NoError(t, tbl.AddCategorical("g", g))
	require.NoError(t, tbl.AddNumeric("y", y))
	tg, err := dataset.NewTarget(tbl, "y", model.Regression)
	require.NoError(t, err)
	return tbl, tg
}

func ridge(params model.Params, _ int) (model.Learner, error) {
	return linear.NewRegression(linear.WithPenalty(params.GetFloat(model.Penalty, 0))), nil
}

func config(t *testing.T) Config {
	tbl, tg := line(t)
	folds, err := dataset.VFold(tbl, 5, 1, "", 1)
	require.NoError(t, err)
	return Config{
		Algorithm: "linear_reg",
		Type:      Regular,
		Data:      tbl,
		Target:    tg,
		Folds:     folds,
		Defaults:  model.Params{model.Penalty: 0.0},
		Ranges:    []ParamRange{LogRange(model.Penalty, -10, 0).Simpler()},
		Build:     ridge,
		Metrics:   metrics.DefaultSet(model.Regression),
		Workers:   2,
	}
}

func TestGrid(t *testing.T) {
	cfg := config(t)
	cfg.Candidates = []model.Params{{model.Penalty: 1e-10}, {model.Penalty: 100.0}}
	calls := 0
	cfg.Progress = func(done, total int) {
		calls++
		assert.Equal(t, 10, total)
	}

	res, err := Grid(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Notes)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 10, calls)
	assert.Equal(t, Regular, res.Type)

	for _, c := range res.Candidates {
		assert.Equal(t, 5, c.Metrics["rmse"].N)
		assert.Len(t, c.Folds, 5)
	}

	best, err := res.SelectBest("")
	require.NoError(t, err)
	assert.Equal(t, 1e-10, best.GetFloat(model.Penalty, -1))

	top, err := res.ShowBest("rmse", 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Model01", top[0].ID)

	rows := res.CollectMetrics()
	assert.Len(t, rows, 6)
	assert.Equal(t, "Model01", rows[0].Candidate)
	assert.Equal(t, "rmse", rows[0].Metric)

	_, err = res.SelectBest("accuracy")
	assert.Error(t, err, "metric not in the set")
}

func TestGrid_Notes(t *testing.T) {
	cfg := config(t)
	cfg.Candidates = []model.Params{{model.Penalty: 0.001}, {model.Penalty: 0.9}}
	cfg.Build = func(params model.Params, n int) (model.Learner, error) {
		if params.GetFloat(model.Penalty, 0) > 0.5 {
			return nil, errors.New("penalty too large")
		}
		return ridge(params, n)
	}

	res, err := Grid(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Len(t, res.Notes, 5)
	assert.Equal(t, "Model02", res.Notes[0].Candidate)
	assert.Equal(t, "Fold01", res.Notes[0].Fold)

	cfg.Candidates = []model.Params{{model.Penalty: 0.9}}
	_, err = Grid(context.Background(), cfg)
	assert.True(t, errors.Is(err, errors.ErrNoCandidates))
}

func TestGrid_Panic(t *testing.T) {
	cfg := config(t)
	cfg.Build = func(model.Params, int) (model.Learner, error) { panic("boom") }
	_, err := Grid(context.Background(), cfg)
	assert.True(t, errors.Is(err, errors.ErrNoCandidates))
}

func TestGrid_Invalid(t *testing.T) {
	cfg := config(t)
	cfg.Folds = nil
	_, err := Grid(context.Background(), cfg)
	assert.Error(t, err)

	cfg = config(t)
	cfg.Build = nil
	_, err = Grid(context.Background(), cfg)
	assert.Error(t, err)

	cfg = config(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Grid(ctx, cfg)
	assert.Error(t, err)
}

func TestBayes(t *testing.T) {
	cfg := config(t)
	res, err := Bayes(context.Background(), cfg, 6, 3)
	require.NoError(t, err)
	assert.Equal(t, Bayesian, res.Type)
	require.Len(t, res.Candidates, 6)
	assert.Equal(t, "Iter01", res.Candidates[0].ID)
	for _, c := range res.Candidates {
		v := c.Params.GetFloat(model.Penalty, -1)
		assert.True(t, v >= 1e-10 && v <= 1, "penalty %v", v)
	}
	_, err = res.SelectBest("rmse")
	assert.NoError(t, err)

	_, err = Bayes(context.Background(), cfg, 0, 3)
	assert.Error(t, err)
}

func manual() *Result {
	set, _ := metrics.NewSet(model.Regression, "rmse")
	return &Result{
		Metrics: set,
		Ranges:  []ParamRange{LogRange(model.Penalty, -3, 0).Simpler()},
		Candidates: []Candidate{
			{ID: "Model01", Params: model.Params{model.Penalty: 0.001}, Metrics: map[string]Summary{"rmse": {Mean: 1.0, StdErr: 0.2, N: 5}}},
			{ID: "Model02", Params: model.Params{model.Penalty: 0.1}, Metrics: map[string]Summary{"rmse": {Mean: 1.1, StdErr: 0.3, N: 5}}},
			{ID: "Model03", Params: model.Params{model.Penalty: 1.0}, Metrics: map[string]Summary{"rmse": {Mean: 1.5, StdErr: 0.1, N: 5}}},
			{ID: "Model04", Params: model.Params{model.Penalty: 0.5}, Metrics: map[string]Summary{"rmse": {Mean: math.NaN(), N: 0}}},
		},
	}
}

func TestResult_Select(t *testing.T) {
	res := manual()

	best, err := res.SelectBest("rmse")
	require.NoError(t, err)
	assert.Equal(t, 0.001, best.GetFloat(model.Penalty, -1))

	simple, err := res.SelectBySimplest("rmse")
	require.NoError(t, err)
	assert.Equal(t, 0.1, simple.GetFloat(model.Penalty, -1), "largest penalty within one std err")

	ranked, err := res.ShowBest("", 0)
	require.NoError(t, err)
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"Model01", "Model02", "Model03", "Model04"}, ids, "NaN last")

	empty := &Result{Metrics: res.Metrics}
	_, err = empty.SelectBest("")
	assert.True(t, errors.Is(err, errors.ErrNoCandidates))
}
