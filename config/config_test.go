package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/easyfit"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/tune"
)

func writeFile(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := New()
	v.Set("train", "train.csv")
	v.Set("target", "y")
	v.Set("algorithms", []string{"linear_reg"})

	c, err := Load(v, "")
	require.NoError(t, err)
	d := easyfit.DefaultOptions()
	assert.Equal(t, d.Prop, c.Split.Prop)
	assert.Equal(t, d.Folds, c.Resample.Folds)
	assert.Equal(t, d.Seed, c.Seed)
	assert.True(t, c.Tune.Enabled)
	assert.Equal(t, "latin_hypercube", c.Tune.Grid)
	assert.Equal(t, "best", c.Tune.Rule)
	assert.Equal(t, "png", c.Output.PlotFormat)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, ',', c.CSVOptions().Comma)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "easyfit.yaml", `
train: data/train.csv
test: data/test.csv
target: species
algorithms: [knn, "random forest"]
mode: classification
metrics: [accuracy, roc_auc]
seed: 7
resample:
  folds: 4
  repeats: 2
tune:
  grid: bayes
  iterations: 12
  rule: one_std_err
csv:
  separator: ";"
  categorical: [island]
output:
  plot_dir: plots
  plot_format: svg
`)
	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"knn", "random forest"}, c.Algorithms)
	assert.Equal(t, "classification", c.Mode)
	assert.Equal(t, uint64(7), c.Seed)
	assert.Equal(t, 4, c.Resample.Folds)
	assert.Equal(t, 12, c.Tune.Iterations)
	assert.Equal(t, "svg", c.Output.PlotFormat)

	csv := c.CSVOptions()
	assert.Equal(t, ';', csv.Comma)
	assert.Equal(t, []string{"island"}, csv.Categorical)

	opts, err := c.Options()
	require.NoError(t, err)
	o := easyfit.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	assert.Equal(t, tune.Bayesian, o.GridType)
	assert.Equal(t, 12, o.BayesIterations)
	assert.Equal(t, easyfit.SelectOneStdErr, o.SelectRule)
	assert.Equal(t, "classification", string(o.Mode))
	assert.Equal(t, []string{"accuracy", "roc_auc"}, o.Metrics)
	assert.Equal(t, 4, o.Folds)
	assert.Equal(t, 2, o.Repeats)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("EASYFIT_TRAIN", "env.csv")
	t.Setenv("EASYFIT_TARGET", "price")
	t.Setenv("EASYFIT_ALGORITHMS", "linear_reg,decision_tree")
	t.Setenv("EASYFIT_TUNE_SIZE", "3")
	t.Setenv("EASYFIT_CSV_SEPARATOR", `\t`)

	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "env.csv", c.Train)
	assert.Equal(t, []string{"linear_reg", "decision_tree"}, c.Algorithms)
	assert.Equal(t, 3, c.Tune.Size)
	assert.Equal(t, '\t', c.CSVOptions().Comma)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := New()
		v.Set("train", "a.csv")
		v.Set("target", "y")
		v.Set("algorithms", []string{"lm"})
		c, err := Load(v, "")
		require.NoError(t, err)
		return c
	}

	tests := []struct {
		name  string
		edit  func(c *Config)
		param string
	}{
		{"missing train", func(c *Config) { c.Train = "" }, "train"},
		{"no algorithms", func(c *Config) { c.Algorithms = nil }, "algorithms"},
		{"bad mode", func(c *Config) { c.Mode = "ranking" }, "mode"},
		{"prop", func(c *Config) { c.Split.Prop = 1 }, "split.prop"},
		{"folds", func(c *Config) { c.Resample.Folds = 1 }, "resample.folds"},
		{"grid", func(c *Config) { c.Tune.Grid = "sobol" }, "tune.grid"},
		{"rule", func(c *Config) { c.Tune.Rule = "median" }, "tune.rule"},
		{"separator", func(c *Config) { c.CSV.Separator = ";;" }, "csv.separator"},
		{"plot format", func(c *Config) { c.Output.PlotFormat = "gif" }, "output.plot_format"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.edit(c)
			err := c.Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	c := valid()
	c.Train, c.Target = "", ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "train is required; target is required")

	c = valid()
	c.CSV.Separator = "||"
	c.Output.PlotDir = "plots"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv.separator must be a single character")
	assert.NotContains(t, err.Error(), "c_s_v")

	c = valid()
	c.Algorithms = []string{"lm", ""}
	var ve *errors.ValidationError
	require.True(t, errors.As(c.Validate(), &ve))
	assert.Equal(t, "algorithms[1]", ve.ParamName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
