package tune

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Summary is a metric resampling estimate: the mean over folds and its
// standard error. Folds where the metric was undefined are not counted.
type Summary struct {
	Mean   float64
	StdErr float64
	N      int
}

// Candidate is one evaluated hyperparameter combination. Params holds the
// tuned values only; defaults are merged when the learner is built.
type Candidate struct {
	ID      string
	Params  model.Params
	Metrics map[string]Summary
	// Folds holds the per fold values; failed folds are absent.
	Folds map[string]metrics.Values
}

// Note records a candidate that failed on a fold.
type Note struct {
	Candidate string
	Fold      string
	Err       error
}

func (n Note) String() string {
	return fmt.Sprintf("%s/%s: %v", n.Candidate, n.Fold, n.Err)
}

func sortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Candidate != notes[j].Candidate {
			return notes[i].Candidate < notes[j].Candidate
		}
		return notes[i].Fold < notes[j].Fold
	})
}

// Result holds every candidate that succeeded on at least one fold.
type Result struct {
	Algorithm  string
	Type       GridType
	Metrics    metrics.Set
	Ranges     []ParamRange
	Candidates []Candidate
	Notes      []Note
	foldIDs    []string
}

func newResult(cfg Config, notes []Note) *Result {
	return &Result{
		Algorithm: cfg.Algorithm,
		Type:      cfg.Type,
		Metrics:   cfg.Metrics,
		Ranges:    cfg.Ranges,
		Notes:     notes,
		foldIDs:   lo.Map(cfg.Folds, func(f dataset.Fold, _ int) string { return f.ID }),
	}
}

// add summarizes per fold values of one candidate; nil entries are failed
// folds. A candidate without any successful fold is dropped.
func (r *Result) add(id string, params model.Params, folds []metrics.Values) {
	c := Candidate{
		ID:      id,
		Params:  params.Copy(),
		Metrics: make(map[string]Summary, len(r.Metrics.Metrics)),
		Folds:   make(map[string]metrics.Values, len(folds)),
	}
	for i, v := range folds {
		if v != nil {
			c.Folds[r.foldIDs[i]] = v
		}
	}
	if len(c.Folds) == 0 {
		return
	}
	for _, m := range r.Metrics.Metrics {
		vals := lo.FilterMap(folds, func(v metrics.Values, _ int) (float64, bool) {
			if v == nil {
				return 0, false
			}
			x, ok := v[m.Name]
			return x, ok
		})
		c.Metrics[m.Name] = summarize(vals)
	}
	r.Candidates = append(r.Candidates, c)
}

// MetricRow is one candidate x metric estimate.
type MetricRow struct {
	Candidate string
	Params    model.Params
	Metric    string
	Mean      float64
	StdErr    float64
	N         int
}

// CollectMetrics returns one row per candidate and metric, ordered by
// candidate and then by the metric set order.
func (r *Result) CollectMetrics() []MetricRow {
	var rows []MetricRow
	for _, c := range r.Candidates {
		for _, m := range r.Metrics.Metrics {
			s := c.Metrics[m.Name]
			rows = append(rows, MetricRow{
				Candidate: c.ID,
				Params:    c.Params,
				Metric:    m.Name,
				Mean:      s.Mean,
				StdErr:    s.StdErr,
				N:         s.N,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Candidate < rows[j].Candidate })
	return rows
}

// metric resolves a metric name of the set; "" is the primary metric.
func (r *Result) metric(name string) (metrics.Metric, error) {
	if len(r.Metrics.Metrics) == 0 {
		return metrics.Metric{}, errors.NewValueError("tune.Result", "no metrics were computed")
	}
	if name == "" {
		return r.Metrics.Primary(), nil
	}
	m, err := metrics.Lookup(name)
	if err != nil {
		return metrics.Metric{}, err
	}
	if _, ok := r.Metrics.Get(m.Name); !ok {
		return metrics.Metric{}, errors.NewValidationError("metric",
			"not computed during tuning (computed: "+fmt.Sprint(r.Metrics.Names())+")", name)
	}
	return m, nil
}

// ShowBest returns the top n candidates by metric ("" for the primary
// metric). Candidates whose estimate is NaN sort last. n <= 0 returns all.
func (r *Result) ShowBest(metric string, n int) ([]Candidate, error) {
	m, err := r.metric(metric)
	if err != nil {
		return nil, err
	}
	ranked := append([]Candidate(nil), r.Candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return m.Better(ranked[i].Metrics[m.Name].Mean, ranked[j].Metrics[m.Name].Mean)
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// SelectBest returns the parameters of the best candidate.
func (r *Result) SelectBest(metric string) (model.Params, error) {
	best, err := r.best(metric)
	if err != nil {
		return nil, err
	}
	return best.Params.Copy(), nil
}

func (r *Result) best(metric string) (Candidate, error) {
	ranked, err := r.ShowBest(metric, 1)
	if err != nil {
		return Candidate{}, err
	}
	if len(ranked) == 0 {
		return Candidate{}, errors.WithStack(errors.ErrNoCandidates)
	}
	m, _ := r.metric(metric)
	if math.IsNaN(ranked[0].Metrics[m.Name].Mean) {
		return Candidate{}, errors.Wrapf(errors.ErrNoCandidates, "metric %s is undefined for every candidate", m.Name)
	}
	return ranked[0], nil
}

// SelectBySimplest applies the one standard error rule: among candidates
// whose mean is within one standard error of the best, it returns the
// simplest. Simplicity compares parameters in range order, smaller values
// first unless the range is marked HigherIsSimpler.
func (r *Result) SelectBySimplest(metric string) (model.Params, error) {
	best, err := r.best(metric)
	if err != nil {
		return nil, err
	}
	m, _ := r.metric(metric)
	top := best.Metrics[m.Name]
	margin := top.StdErr
	if math.IsNaN(margin) {
		margin = 0
	}

	within := lo.Filter(r.Candidates, func(c Candidate, _ int) bool {
		v := c.Metrics[m.Name].Mean
		if math.IsNaN(v) {
			return false
		}
		if m.Maximize {
			return v >= top.Mean-margin
		}
		return v <= top.Mean+margin
	})
	sort.SliceStable(within, func(i, j int) bool {
		if c := r.simpler(within[i].Params, within[j].Params); c != 0 {
			return c < 0
		}
		return m.Better(within[i].Metrics[m.Name].Mean, within[j].Metrics[m.Name].Mean)
	})
	return within[0].Params.Copy(), nil
}

// simpler returns -1 when a is the simpler parameter set, 1 when b is.
func (r *Result) simpler(a, b model.Params) int {
	for _, rg := range r.Ranges {
		var x, y float64
		if rg.Kind == Categorical {
			x = float64(lo.IndexOf(rg.Values, a.GetString(rg.Name, "")))
			y = float64(lo.IndexOf(rg.Values, b.GetString(rg.Name, "")))
		} else {
			x = a.GetFloat(rg.Name, math.NaN())
			y = b.GetFloat(rg.Name, math.NaN())
		}
		if x == y || math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		if rg.HigherIsSimpler {
			x, y = -x, -y
		}
		if x < y {
			return -1
		}
		return 1
	}
	return 0
}
