package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/easyfit"
	"github.com/YuminosukeSato/easyfit/config"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
	"github.com/YuminosukeSato/easyfit/report"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"train":         "train",
	"test":          "test",
	"target":        "target",
	"algorithms":    "algorithms",
	"mode":          "mode",
	"metrics":       "metrics",
	"seed":          "seed",
	"workers":       "workers",
	"prop":          "split.prop",
	"strata":        "split.strata",
	"folds":         "resample.folds",
	"repeats":       "resample.repeats",
	"tune":          "tune.enabled",
	"grid":          "tune.grid",
	"grid-size":     "tune.size",
	"iterations":    "tune.iterations",
	"select-metric": "tune.metric",
	"select-rule":   "tune.rule",
	"separator":     "csv.separator",
	"categorical":   "csv.categorical",
	"top":           "output.top",
	"plot-dir":      "output.plot_dir",
	"plot-format":   "output.plot_format",
	"coefficients":  "output.coefficients",
	"progress":      "output.progress",
	"log-level":     "log.level",
}

func newFitCommand() *cobra.Command {
	v := config.New()
	var configPath string
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit, tune and evaluate algorithms on a CSV file",
		Example: "  easyfit fit --train penguins.csv --target species --algorithms knn,rand_forest --plot-dir plots\n" +
			"  easyfit fit --config easyfit.yaml",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for name, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return errors.Wrapf(err, "bind flag %s", name)
				}
			}
			c, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			if err := log.SetupLogger(c.Log.Level, c.Log.Console); err != nil {
				return err
			}
			return runFit(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), c)
		},
	}

	d := easyfit.DefaultOptions()
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")
	f.String("train", "", "training CSV file")
	f.String("test", "", "test CSV file; a split of the training data otherwise")
	f.StringP("target", "y", "", "outcome column")
	f.StringSliceP("algorithms", "a", nil, "algorithms to fit (see easyfit algorithms)")
	f.String("mode", "", "regression or classification; inferred from the target otherwise")
	f.StringSlice("metrics", nil, "metric set; the first metric ranks the fits")
	f.Uint64("seed", d.Seed, "random seed")
	f.Int("workers", d.Workers, "concurrent fits during tuning (0 uses every CPU)")
	f.Float64("prop", d.Prop, "training proportion of the initial split")
	f.String("strata", "", "stratification column")
	f.Int("folds", d.Folds, "cross-validation folds")
	f.Int("repeats", d.Repeats, "cross-validation repeats")
	f.Bool("tune", d.Tune, "tune hyperparameters")
	f.String("grid", string(d.GridType), "grid type: regular, latin_hypercube, random or bayes")
	f.Int("grid-size", d.GridSize, "grid candidates (levels per parameter for regular)")
	f.Int("iterations", d.BayesIterations, "iterations of a bayes search")
	f.String("select-metric", "", "metric used to select tuned parameters")
	f.String("select-rule", d.SelectRule, "best or one_std_err")
	f.String("separator", ",", `CSV field separator (\t for tab)`)
	f.StringSlice("categorical", nil, "columns read as categorical")
	f.Int("top", 5, "tuning candidates printed per algorithm (0 hides them)")
	f.String("plot-dir", "", "directory receiving plots")
	f.String("plot-format", "png", "plot format: png, svg or pdf")
	f.String("coefficients", "", "directory receiving linear model weights as JSON")
	f.Bool("progress", true, "show tuning progress bars")
	f.String("log-level", "info", "debug, info, warn or error")
	return cmd
}

func runFit(ctx context.Context, out, errOut io.Writer, c *config.Config) error {
	logger := log.GetLogger()
	csvOpts := c.CSVOptions()
	train, err := dataset.ReadCSVFile(c.Train, csvOpts)
	if err != nil {
		return err
	}
	opts, err := c.Options()
	if err != nil {
		return err
	}
	if c.Test != "" {
		test, err := dataset.ReadCSVFile(c.Test, csvOpts)
		if err != nil {
			return err
		}
		opts = append(opts, easyfit.WithTestData(test))
	}
	opts = append(opts, easyfit.WithLogger(logger))
	var bars *progressBars
	if c.Output.Progress {
		bars = newProgressBars(errOut)
		opts = append(opts, easyfit.WithProgress(bars.update))
	}

	res, runErr := easyfit.Run(ctx, train, c.Target, c.Algorithms, opts...)
	if bars != nil {
		bars.finish()
	}
	if res == nil {
		return runErr
	}

	if err := report.PrintSummary(out, res); err != nil {
		return err
	}
	for _, f := range res.Fits {
		if f.Tuning != nil && c.Output.Top > 0 && len(f.Tuning.Candidates) > 0 {
			fmt.Fprintln(out)
			if err := report.PrintTuning(out, f.Tuning, c.Tune.Metric, c.Output.Top); err != nil {
				return err
			}
		}
	}
	if c.Output.Confusion && res.Mode == model.Classification {
		for _, f := range res.Successful() {
			fmt.Fprintln(out)
			if err := report.PrintConfusion(out, f); err != nil {
				return err
			}
		}
	}

	if c.Output.PlotDir != "" {
		paths, err := writePlots(res, c.Output.PlotDir, c.Output.PlotFormat, c.Tune.Metric)
		if err != nil {
			return err
		}
		logger.Info("Plots written", "dir", c.Output.PlotDir, "count", len(paths))
	}
	if c.Output.Coefficients != "" {
		n, err := writeCoefficients(res, c.Output.Coefficients)
		if err != nil {
			return err
		}
		logger.Info("Coefficients written", "dir", c.Output.Coefficients, "count", n)
	}
	return runErr
}

// writePlots writes every plot that applies to the results.
func writePlots(res *easyfit.Results, dir, format, metric string) ([]string, error) {
	path := func(name string) string { return filepath.Join(dir, name+"."+format) }
	var written []string
	add := func(p string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, p)
		return nil
	}

	if err := add(path("metrics"), report.PlotMetricComparison(res, "", path("metrics"))); err != nil {
		return written, err
	}
	if res.Mode == model.Classification {
		if err := add(path("roc"), report.PlotROC(res.Successful(), path("roc"))); err != nil {
			return written, err
		}
	}
	for _, f := range res.Successful() {
		if res.Mode == model.Regression {
			p := path(f.Name + "_predictions")
			if err := add(p, report.PlotPredictions(f, p)); err != nil {
				return written, err
			}
		}
		if _, ok := f.Learner.(model.CoefficientLearner); ok {
			p := path(f.Name + "_coefficients")
			if err := add(p, report.PlotCoefficients(f, p)); err != nil {
				return written, err
			}
		}
		if f.Tuning != nil && len(f.Tuning.Candidates) > 0 {
			tuned, err := report.PlotTuning(f.Tuning, metric, path(f.Name+"_tuning"))
			if err != nil && !errors.As(err, new(*errors.ValueError)) {
				return written, err
			}
			written = append(written, tuned...)
		}
	}
	return written, nil
}

// writeCoefficients saves the weights of every linear fit as <name>.json.
func writeCoefficients(res *easyfit.Results, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "create %s", dir)
	}
	n := 0
	for _, f := range res.Successful() {
		if _, ok := f.Learner.(model.CoefficientLearner); !ok {
			continue
		}
		mw, err := report.Coefficients(f)
		if err != nil {
			return n, err
		}
		if err := model.SaveWeights(mw, filepath.Join(dir, f.Name+".json")); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// progressBars shows one bar per algorithm while it is tuned.
type progressBars struct {
	mu      sync.Mutex
	w       io.Writer
	current string
	bar     *progressbar.ProgressBar
}

func newProgressBars(w io.Writer) *progressBars {
	return &progressBars{w: w}
}

func (p *progressBars) update(algorithm string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if algorithm != p.current || p.bar == nil {
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		p.current = algorithm
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("tuning "+algorithm),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
		)
	}
	_ = p.bar.Set(done)
}

func (p *progressBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
}
