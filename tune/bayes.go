package tune

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/core/parallel"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
)

// Bayes tunes with a TPE study. Each trial suggests one candidate from
// cfg.Ranges, evaluates it on every fold and reports the mean of the
// primary metric. cfg.Candidates is ignored.
func Bayes(ctx context.Context, cfg Config, iterations int, seed int64) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if iterations < 1 {
		return nil, errors.NewValidationError("iterations", "must be positive", iterations)
	}
	if err := validateAll(cfg.Ranges); err != nil {
		return nil, err
	}
	cfg.Type = Bayesian
	logger := cfg.logger()
	start := time.Now()

	primary := cfg.Metrics.Primary()
	direction := goptuna.StudyDirectionMinimize
	if primary.Maximize {
		direction = goptuna.StudyDirectionMaximize
	}
	study, err := goptuna.CreateStudy("easyfit-"+cfg.Algorithm,
		goptuna.StudyOptionDirection(direction),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(seed))),
		goptuna.StudyOptionLogger(logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create study")
	}

	search := &bayesSearch{
		ctx:        ctx,
		cfg:        &cfg,
		resamples:  prepResamples(&cfg),
		result:     newResult(cfg, nil),
		worst:      worstValue(primary),
		iterations: iterations,
		logger:     logger,
	}
	logger.Info("Tuning started",
		log.GridTypeKey, string(Bayesian),
		log.TrialsKey, iterations,
		log.FoldsKey, len(search.resamples),
	)
	if err := study.Optimize(search.Objective, iterations); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithStack(ctxErr)
		}
		return nil, errors.Wrap(err, "optimize")
	}

	res := search.result
	sortNotes(res.Notes)
	if len(res.Candidates) == 0 {
		return res, noCandidates(res.Notes)
	}
	logger.Info("Tuning finished",
		log.CandidatesKey, len(res.Candidates),
		"notes", len(res.Notes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

type bayesSearch struct {
	ctx        context.Context
	cfg        *Config
	resamples  []resample
	result     *Result
	worst      float64
	trials     int
	iterations int
	logger     log.Logger
}

// Objective evaluates one trial. Candidate failures are recorded as notes
// and reported as the worst possible value so the study keeps going.
func (s *bayesSearch) Objective(trial goptuna.Trial) (float64, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	candidate, err := suggest(trial, s.cfg.Ranges)
	if err != nil {
		return 0, err
	}
	s.trials++
	id := fmt.Sprintf("Iter%02d", s.trials)

	folds, notes := evaluate(s.ctx, s.cfg, s.resamples, id, s.cfg.Defaults.Overwrite(candidate))
	s.result.Notes = append(s.result.Notes, notes...)
	s.result.add(id, candidate, folds)
	if s.cfg.Progress != nil {
		s.cfg.Progress(s.trials, s.iterations)
	}

	if n := len(s.result.Candidates); n == 0 || s.result.Candidates[n-1].ID != id {
		return s.worst, nil
	}
	mean := s.result.Candidates[len(s.result.Candidates)-1].Metrics[s.cfg.Metrics.Primary().Name].Mean
	if math.IsNaN(mean) {
		return s.worst, nil
	}
	s.logger.Debug("Trial evaluated",
		log.CandidateKey, id,
		log.HyperParamsKey, candidate.String(),
		log.MetricValueKey, mean,
	)
	return mean, nil
}

func suggest(trial goptuna.Trial, ranges []ParamRange) (model.Params, error) {
	params := make(model.Params, len(ranges))
	for _, r := range ranges {
		switch r.Kind {
		case Categorical:
			v, err := trial.SuggestCategorical(r.Name, r.Values)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			params[r.Name] = v
		case Int:
			v, err := trial.SuggestInt(r.Name, int(r.Lower), int(r.Upper))
			if err != nil {
				return nil, errors.WithStack(err)
			}
			params[r.Name] = v
		default:
			v, err := trial.SuggestFloat(r.Name, r.Lower, r.Upper)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			if r.Log10 {
				v = math.Pow(10, v)
			}
			params[r.Name] = v
		}
	}
	return params, nil
}

// evaluate fits params on every resample concurrently. Failed folds are nil
// in the returned slice and described by a note.
func evaluate(ctx context.Context, cfg *Config, resamples []resample, id string, params model.Params) ([]metrics.Values, []Note) {
	folds := make([]metrics.Values, len(resamples))
	var (
		mu    sync.Mutex
		notes []Note
	)
	err := parallel.Parallel(ctx, len(resamples), parallel.Workers(cfg.Workers), func(_, fi int) error {
		v, err := errors.SafeCall("tune "+cfg.Algorithm, func() (metrics.Values, error) {
			return fitFold(cfg, params, resamples[fi])
		})
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			notes = append(notes, Note{Candidate: id, Fold: resamples[fi].id, Err: err})
			return nil
		}
		folds[fi] = v
		return nil
	})
	if err != nil {
		notes = append(notes, Note{Candidate: id, Err: err})
	}
	return folds, notes
}

func worstValue(m metrics.Metric) float64 {
	if m.Maximize {
		return -math.MaxFloat64
	}
	return math.MaxFloat64
}
