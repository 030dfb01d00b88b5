package tune

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/core/parallel"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
)

// BuildFunc creates an unfitted learner from merged hyperparameters.
// nClasses is 0 for regression.
type BuildFunc func(params model.Params, nClasses int) (model.Learner, error)

// Config describes one tuning job.
type Config struct {
	// Algorithm names the learner in logs and results.
	Algorithm string
	// Type is recorded on the result; Grid itself only sees Candidates.
	Type GridType

	// Data holds the training rows including the target column.
	Data *dataset.Table
	// Target is the outcome of Data, encoded.
	Target *dataset.Target
	// Folds index rows of Data.
	Folds []dataset.Fold
	// Recipe configures the design matrix prepped on every analysis set.
	Recipe dataset.RecipeOptions

	Defaults model.Params
	Ranges   []ParamRange
	Build    BuildFunc

	// Candidates is the grid evaluated by Grid.
	Candidates []model.Params
	// Metrics are computed on every assessment set. The primary metric
	// drives Bayes.
	Metrics metrics.Set

	// Workers is the number of concurrent fits (<= 0 means one per CPU).
	Workers int
	// Progress, when set, is called after every candidate x fold fit.
	Progress func(done, total int)
	Logger   log.Logger
}

func (c *Config) validate() error {
	if c.Data == nil || c.Data.NumRows() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "tune")
	}
	if c.Target == nil || c.Target.Len() != c.Data.NumRows() {
		return errors.NewValueError("tune", "target does not match the training rows")
	}
	if len(c.Folds) == 0 {
		return errors.NewValidationError("folds", "tuning needs resamples", 0)
	}
	if c.Build == nil {
		return errors.NewValidationError("build", "learner constructor is required", nil)
	}
	if len(c.Metrics.Metrics) == 0 {
		return errors.NewValidationError("metrics", "metric set is empty", nil)
	}
	return nil
}

func (c *Config) logger() log.Logger {
	l := c.Logger
	if l == nil {
		l = log.GetLogger()
	}
	return l.With(log.AlgorithmKey, c.Algorithm, log.ComponentKey, "tune")
}

// resample is one fold with its design matrices baked by a recipe prepped
// on the analysis rows only.
type resample struct {
	id          string
	xAnalysis   *mat.Dense
	yAnalysis   []float64
	xAssessment *mat.Dense
	yAssessment []float64
	err         error
}

// prepResamples preps the recipe on the analysis rows of every fold and
// bakes both sides. A fold whose recipe fails keeps its error; every
// candidate then records a note for it.
func prepResamples(cfg *Config) []resample {
	out := make([]resample, len(cfg.Folds))
	for i, f := range cfg.Folds {
		out[i] = bake(cfg, f)
	}
	return out
}

func bake(cfg *Config, f dataset.Fold) resample {
	rs := resample{id: f.ID}
	analysis := cfg.Data.Subset(f.Analysis)
	assessment := cfg.Data.Subset(f.Assessment)
	recipe, err := dataset.Prep(analysis, cfg.Target.Name, cfg.Recipe)
	if err != nil {
		rs.err = err
		return rs
	}
	if rs.xAnalysis, err = recipe.Bake(analysis); err != nil {
		rs.err = err
		return rs
	}
	if rs.xAssessment, err = recipe.Bake(assessment); err != nil {
		rs.err = err
		return rs
	}
	rs.yAnalysis = cfg.Target.Subset(f.Analysis).Values
	rs.yAssessment = cfg.Target.Subset(f.Assessment).Values
	return rs
}

// fitFold fits one candidate on one resample and computes the metric set on
// its assessment rows.
func fitFold(cfg *Config, params model.Params, rs resample) (metrics.Values, error) {
	if rs.err != nil {
		return nil, rs.err
	}
	learner, err := cfg.Build(params, cfg.Target.NumClasses())
	if err != nil {
		return nil, err
	}
	if err := learner.Fit(rs.xAnalysis, rs.yAnalysis); err != nil {
		return nil, err
	}
	pred, err := learner.Predict(rs.xAssessment)
	if err != nil {
		return nil, err
	}
	var proba mat.Matrix
	if pl, ok := learner.(model.ProbabilityLearner); ok {
		p, err := pl.PredictProba(rs.xAssessment)
		if err != nil {
			return nil, err
		}
		proba = p
	}
	return cfg.Metrics.Compute(rs.yAssessment, pred, proba)
}

// Grid evaluates every candidate of cfg.Candidates on every fold. Fits run
// concurrently; a failing candidate x fold is kept as a Note. Grid fails
// with ErrNoCandidates when no candidate has a single successful fold.
func Grid(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = []model.Params{{}}
	}
	logger := cfg.logger()
	start := time.Now()

	resamples := prepResamples(&cfg)
	nFolds := len(resamples)
	total := len(cfg.Candidates) * nFolds
	logger.Info("Tuning started",
		log.GridTypeKey, string(cfg.Type),
		log.CandidatesKey, len(cfg.Candidates),
		log.FoldsKey, nFolds,
	)

	values := make([][]metrics.Values, len(cfg.Candidates))
	for i := range values {
		values[i] = make([]metrics.Values, nFolds)
	}
	var (
		mu    sync.Mutex
		notes []Note
		done  int
	)
	err := parallel.Parallel(ctx, total, parallel.Workers(cfg.Workers), func(_, jobID int) error {
		ci, fi := jobID/nFolds, jobID%nFolds
		params := cfg.Defaults.Overwrite(cfg.Candidates[ci])
		v, err := errors.SafeCall("tune "+cfg.Algorithm, func() (metrics.Values, error) {
			return fitFold(&cfg, params, resamples[fi])
		})

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			notes = append(notes, Note{Candidate: candidateID(ci), Fold: resamples[fi].id, Err: err})
			logger.Debug("Candidate failed on fold",
				log.CandidateKey, candidateID(ci),
				log.FoldKey, resamples[fi].id,
				"error", err.Error(),
			)
		} else {
			values[ci][fi] = v
		}
		done++
		if cfg.Progress != nil {
			cfg.Progress(done, total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNotes(notes)
	res := newResult(cfg, notes)
	for ci, params := range cfg.Candidates {
		res.add(candidateID(ci), params, values[ci])
	}
	if len(res.Candidates) == 0 {
		return res, noCandidates(notes)
	}

	logger.Info("Tuning finished",
		log.CandidatesKey, len(res.Candidates),
		"notes", len(notes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func noCandidates(notes []Note) error {
	if len(notes) == 0 {
		return errors.WithStack(errors.ErrNoCandidates)
	}
	return errors.Wrapf(errors.ErrNoCandidates, "first failure (%s, %s): %v",
		notes[0].Candidate, notes[0].Fold, notes[0].Err)
}

func candidateID(i int) string {
	return fmt.Sprintf("Model%02d", i+1)
}

// summarize reduces per fold values of one metric. NaN folds are skipped.
func summarize(vals []float64) Summary {
	ok := lo.Filter(vals, func(v float64, _ int) bool { return !math.IsNaN(v) })
	s := Summary{Mean: math.NaN(), StdErr: math.NaN(), N: len(ok)}
	switch len(ok) {
	case 0:
	case 1:
		s.Mean = ok[0]
	default:
		mean, std := stat.MeanStdDev(ok, nil)
		s.Mean = mean
		s.StdErr = std / math.Sqrt(float64(len(ok)))
	}
	return s
}
