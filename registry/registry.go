// Package registry is the algorithm dispatch table: it maps user facing
// algorithm names to learner engines, their default hyperparameters and
// their tuning ranges.
package registry

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/boost"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/linear"
	"github.com/YuminosukeSato/easyfit/naivebayes"
	"github.com/YuminosukeSato/easyfit/neighbors"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/tree"
	"github.com/YuminosukeSato/easyfit/tune"
)

// Mode is the modeling mode of an entry.
type Mode = model.Mode

// Spec is one algorithm in one mode.
type Spec struct {
	Name    string
	Aliases []string
	Mode    Mode
	// Engine names the library doing the fitting.
	Engine   string
	Defaults model.Params
	Tunable  []tune.ParamRange
	// Normalize asks for centered and scaled predictors.
	Normalize bool

	build func(p model.Params, nClasses int) (model.Learner, error)
}

// Build creates an unfitted learner. params overwrite the defaults;
// nClasses is ignored for regression.
func (s Spec) Build(params model.Params, nClasses int) (model.Learner, error) {
	if s.Mode == model.Classification && nClasses < 2 {
		return nil, errors.NewValidationError("classes",
			s.Name+" needs at least 2 outcome levels", nClasses)
	}
	return s.build(s.Defaults.Overwrite(params), nClasses)
}

// Tunes reports whether the entry has hyperparameters to tune.
func (s Spec) Tunes() bool {
	return len(s.Tunable) > 0
}

var specs = []Spec{
	{
		Name:     "linear_reg",
		Aliases:  []string{"linear regression", "lm", "linear", "ols", "ridge"},
		Mode:     model.Regression,
		Engine:   "gonum/mat (normal equations)",
		Defaults: model.Params{model.Penalty: 0.0},
		Tunable:  []tune.ParamRange{tune.LogRange(model.Penalty, -10, 0).Simpler()},
		build: func(p model.Params, _ int) (model.Learner, error) {
			return linear.NewRegression(linear.WithPenalty(p.GetFloat(model.Penalty, 0))), nil
		},
	},
	{
		Name:      "logistic_reg",
		Aliases:   []string{"logistic regression", "logistic", "logit", "multinom"},
		Mode:      model.Classification,
		Engine:    "gonum/optimize (LBFGS)",
		Defaults:  model.Params{model.Penalty: 1e-4},
		Tunable:   []tune.ParamRange{tune.LogRange(model.Penalty, -10, 0).Simpler()},
		Normalize: true,
		build: func(p model.Params, nClasses int) (model.Learner, error) {
			return linear.NewLogisticRegression(nClasses,
				linear.WithPenalty(p.GetFloat(model.Penalty, 1e-4)),
				linear.WithMaxIter(p.GetInt(model.MaxIter, 200)),
			), nil
		},
	},
	{
		Name:     "decision_tree",
		Aliases:  []string{"decision tree", "tree", "cart", "rpart"},
		Mode:     model.Regression,
		Engine:   "golearn/trees (CART)",
		Defaults: model.Params{model.TreeDepth: 10},
		Tunable:  []tune.ParamRange{tune.IntRange(model.TreeDepth, 1, 15)},
		build: func(p model.Params, _ int) (model.Learner, error) {
			return tree.NewRegressor(p.GetInt(model.TreeDepth, 10)), nil
		},
	},
	{
		Name:     "decision_tree",
		Aliases:  []string{"decision tree", "tree", "id3"},
		Mode:     model.Classification,
		Engine:   "golearn/trees (ID3)",
		Defaults: model.Params{model.Prune: 0.6},
		Tunable:  []tune.ParamRange{tune.FloatRange(model.Prune, 0.1, 0.9).Simpler()},
		build: func(p model.Params, nClasses int) (model.Learner, error) {
			return tree.NewClassifier(nClasses, p.GetFloat(model.Prune, 0.6)), nil
		},
	},
	{
		Name:     "rand_forest",
		Aliases:  []string{"random forest", "rf", "forest", "ranger"},
		Mode:     model.Classification,
		Engine:   "golearn/trees (bagged ID3)",
		Defaults: model.Params{model.Trees: 50, model.Mtry: 0},
		Tunable: []tune.ParamRange{
			tune.IntRange(model.Trees, 10, 200),
			tune.IntRange(model.Mtry, 1, 1).FeatureBound(),
		},
		build: func(p model.Params, nClasses int) (model.Learner, error) {
			return tree.NewRandomForest(nClasses, p.GetInt(model.Trees, 50), p.GetInt(model.Mtry, 0)), nil
		},
	},
	{
		Name:     "boost_tree",
		Aliases:  []string{"boosted trees", "boost", "gbm", "lightgbm", "xgboost"},
		Mode:     model.Regression,
		Engine:   "scigo/sklearn/lightgbm",
		Defaults: model.Params{model.Trees: 100, model.LearnRate: 0.1, model.TreeDepth: 6},
		Tunable: []tune.ParamRange{
			tune.IntRange(model.Trees, 10, 500),
			tune.LogRange(model.LearnRate, -3, -0.5),
			tune.IntRange(model.TreeDepth, 1, 15),
		},
		build: func(p model.Params, _ int) (model.Learner, error) {
			return boost.NewRegressor(
				p.GetInt(model.Trees, 100),
				p.GetFloat(model.LearnRate, 0.1),
				p.GetInt(model.TreeDepth, 6),
			), nil
		},
	},
	{
		Name:      "nearest_neighbor",
		Aliases:   []string{"nearest neighbor", "knn", "kknn", "k nearest neighbors"},
		Mode:      model.Regression,
		Engine:    "golearn/knn",
		Defaults:  model.Params{model.Neighbors: 5, model.Distance: "euclidean"},
		Tunable:   knnRanges(),
		Normalize: true,
		build: func(p model.Params, _ int) (model.Learner, error) {
			return neighbors.NewRegressor(p.GetInt(model.Neighbors, 5), p.GetString(model.Distance, "euclidean")), nil
		},
	},
	{
		Name:      "nearest_neighbor",
		Aliases:   []string{"nearest neighbor", "knn", "kknn", "k nearest neighbors"},
		Mode:      model.Classification,
		Engine:    "golearn/metrics/pairwise",
		Defaults:  model.Params{model.Neighbors: 5, model.Distance: "euclidean"},
		Tunable:   knnRanges(),
		Normalize: true,
		build: func(p model.Params, nClasses int) (model.Learner, error) {
			return neighbors.NewClassifier(nClasses, p.GetInt(model.Neighbors, 5), p.GetString(model.Distance, "euclidean")), nil
		},
	},
	{
		Name:     "naive_bayes",
		Aliases:  []string{"naive bayes", "nb", "bayes"},
		Mode:     model.Classification,
		Engine:   "golearn/naive (Bernoulli)",
		Defaults: model.Params{},
		build: func(_ model.Params, nClasses int) (model.Learner, error) {
			return naivebayes.NewClassifier(nClasses), nil
		},
	},
}

func knnRanges() []tune.ParamRange {
	return []tune.ParamRange{
		tune.IntRange(model.Neighbors, 1, 15).Simpler(),
		tune.CategoricalRange(model.Distance, neighbors.Distances...),
	}
}

// key folds case, spaces and dashes: "Random Forest" and "random-forest"
// both become "random_forest".
func key(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

// canonical resolves a name or alias to the canonical algorithm name.
func canonical(name string) (string, bool) {
	k := key(name)
	for _, s := range specs {
		if key(s.Name) == k || lo.ContainsBy(s.Aliases, func(a string) bool { return key(a) == k }) {
			return s.Name, true
		}
	}
	return "", false
}

// Lookup finds the entry for name in mode. Names are matched ignoring case,
// spaces and dashes, and aliases are accepted.
func Lookup(name string, mode Mode) (Spec, error) {
	canon, ok := canonical(name)
	if !ok {
		return Spec{}, errors.NewUnknownAlgorithmError(name, string(mode), Algorithms(mode))
	}
	s, ok := lo.Find(specs, func(s Spec) bool { return s.Name == canon && s.Mode == mode })
	if !ok {
		modes := lo.FilterMap(specs, func(s Spec, _ int) (string, bool) { return string(s.Mode), s.Name == canon })
		return Spec{}, errors.Wrapf(errors.ErrUnsupportedMode,
			"%s supports %s, not %s", canon, strings.Join(modes, " and "), mode)
	}
	return s, nil
}

// Algorithms returns the canonical names available in mode, sorted. An
// empty mode lists every algorithm.
func Algorithms(mode Mode) []string {
	names := lo.Uniq(lo.FilterMap(specs, func(s Spec, _ int) (string, bool) {
		return s.Name, mode == "" || s.Mode == mode
	}))
	sort.Strings(names)
	return names
}

// All returns every entry ordered by name and then mode.
func All() []Spec {
	out := append([]Spec(nil), specs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

// Row is one printable line of the dispatch table.
type Row struct {
	Name     string
	Mode     string
	Engine   string
	Defaults string
	Tunable  string
	Aliases  string
}

// Describe returns the dispatch table as rows for printing.
func Describe() []Row {
	return lo.Map(All(), func(s Spec, _ int) Row {
		tunable := "-"
		if s.Tunes() {
			tunable = strings.Join(lo.Map(s.Tunable, func(r tune.ParamRange, _ int) string { return r.String() }), "; ")
		}
		defaults := "-"
		if len(s.Defaults) > 0 {
			defaults = s.Defaults.String()
		}
		return Row{
			Name:     s.Name,
			Mode:     string(s.Mode),
			Engine:   s.Engine,
			Defaults: defaults,
			Tunable:  tunable,
			Aliases:  strings.Join(s.Aliases, ", "),
		}
	})
}
