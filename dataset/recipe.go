package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/core/parallel"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/preprocessing"
)

// parallelRowThreshold is the row count above which design matrices are filled concurrently.
const parallelRowThreshold = 5000

// zeroVarianceTol is the variance below which a design column is removed.
const zeroVarianceTol = 1e-12

// RecipeOptions configures the preprocessing steps of a Recipe.
type RecipeOptions struct {
	// Normalize centers and scales every design column.
	Normalize bool
	// KeepZeroVariance disables the removal of constant columns.
	KeepZeroVariance bool
}

type predictor struct {
	name        string
	categorical bool
	// levels are the dummy levels; the reference (first sorted) level is dropped.
	levels []string
}

// Recipe turns a table into a numeric design matrix. Its steps are learned
// on training data by Prep and replayed on any table by Bake:
// categorical predictors become dummy columns, constant columns are removed
// and, optionally, columns are normalized.
type Recipe struct {
	target     string
	opts       RecipeOptions
	predictors []predictor
	expanded   []string
	keep       []int
	scaler     *preprocessing.StandardScaler
	removed    []string
}

// Prep learns the recipe steps on t. Every column except target is a
// predictor. Missing predictor values are an error naming the columns.
func Prep(t *Table, target string, opts RecipeOptions) (*Recipe, error) {
	if t.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Prep")
	}
	r := &Recipe{target: target, opts: opts}

	for _, name := range t.Names() {
		if name == target {
			continue
		}
		c, _ := t.Column(name)
		p := predictor{name: name, categorical: c.IsCategorical()}
		if p.categorical {
			levels := lo.Uniq(lo.Filter(c.Categorical, func(s string, _ int) bool { return s != "" }))
			sort.Strings(levels)
			if len(levels) > 1 {
				p.levels = levels[1:]
			}
		}
		r.predictors = append(r.predictors, p)
	}
	if len(r.predictors) == 0 {
		return nil, errors.NewValidationError("predictors", "table has no predictor columns", t.Names())
	}
	if err := r.checkMissing(t); err != nil {
		return nil, err
	}

	for _, p := range r.predictors {
		if !p.categorical {
			r.expanded = append(r.expanded, p.name)
			continue
		}
		for _, l := range p.levels {
			r.expanded = append(r.expanded, dummyName(p.name, l))
		}
	}

	if len(r.expanded) == 0 {
		return nil, errors.NewValueError("Prep", "every predictor has zero variance")
	}

	full, err := r.expand(t)
	if err != nil {
		return nil, err
	}
	rows, cols := t.NumRows(), len(r.expanded)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		if !opts.KeepZeroVariance {
			mat.Col(col, j, full)
			if rows < 2 || stat.Variance(col, nil) < zeroVarianceTol {
				r.removed = append(r.removed, r.expanded[j])
				continue
			}
		}
		r.keep = append(r.keep, j)
	}
	if len(r.keep) == 0 {
		return nil, errors.NewValueError("Prep", "every predictor has zero variance")
	}

	if opts.Normalize {
		r.scaler = preprocessing.NewStandardScalerDefault()
		if err := r.scaler.Fit(r.selectKept(full)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Bake applies the learned steps to t. t must contain every predictor seen by
// Prep with the same type; the target column is not required.
func (r *Recipe) Bake(t *Table) (*mat.Dense, error) {
	if t.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Bake")
	}
	for _, p := range r.predictors {
		c, err := t.Column(p.name)
		if err != nil {
			return nil, errors.NewMissingFeatureError("prediction", p.name)
		}
		if c.IsCategorical() != p.categorical {
			return nil, errors.NewValidationError(p.name, "column type differs from training data", kind(c))
		}
	}
	if err := r.checkMissing(t); err != nil {
		return nil, err
	}

	full, err := r.expand(t)
	if err != nil {
		return nil, err
	}
	X := r.selectKept(full)
	if r.scaler != nil {
		return r.scaler.Transform(X)
	}
	return X, nil
}

// FeatureNames returns the design column names produced by Bake.
func (r *Recipe) FeatureNames() []string {
	return lo.Map(r.keep, func(j int, _ int) string { return r.expanded[j] })
}

// NumFeatures returns the number of design columns produced by Bake.
func (r *Recipe) NumFeatures() int {
	return len(r.keep)
}

// Predictors returns the predictor column names in table order.
func (r *Recipe) Predictors() []string {
	return lo.Map(r.predictors, func(p predictor, _ int) string { return p.name })
}

// Target returns the outcome column name.
func (r *Recipe) Target() string {
	return r.target
}

// Removed returns the design columns dropped as zero-variance.
func (r *Recipe) Removed() []string {
	return r.removed
}

// HasDummies reports whether any categorical predictor was expanded.
func (r *Recipe) HasDummies() bool {
	return lo.SomeBy(r.predictors, func(p predictor) bool { return p.categorical })
}

// String summarizes the recipe steps.
func (r *Recipe) String() string {
	steps := []string{fmt.Sprintf("outcome: %s", r.target), fmt.Sprintf("predictors: %d", len(r.predictors))}
	if dummies := lo.Filter(r.predictors, func(p predictor, _ int) bool { return p.categorical }); len(dummies) > 0 {
		steps = append(steps, "dummy: "+strings.Join(lo.Map(dummies, func(p predictor, _ int) string { return p.name }), ", "))
	}
	if len(r.removed) > 0 {
		steps = append(steps, "zv removed: "+strings.Join(r.removed, ", "))
	}
	if r.scaler != nil {
		steps = append(steps, "normalize: all")
	}
	return "Recipe(" + strings.Join(steps, "; ") + ")"
}

func (r *Recipe) checkMissing(t *Table) error {
	var bad []string
	for _, p := range r.predictors {
		c, _ := t.Column(p.name)
		if n := missingCount(c); n > 0 {
			bad = append(bad, fmt.Sprintf("%s (%d)", p.name, n))
		}
	}
	if len(bad) > 0 {
		return errors.NewValueError("Recipe",
			"missing predictor values in "+strings.Join(bad, ", ")+"; drop or impute them first")
	}
	return nil
}

// expand builds the full design matrix before column selection. Unseen
// categorical levels map to all-zero dummies.
func (r *Recipe) expand(t *Table) (*mat.Dense, error) {
	rows := t.NumRows()
	X := mat.NewDense(rows, len(r.expanded), nil)

	type source struct {
		offset int
		col    *Column
		levels map[string]int
	}
	sources := make([]source, len(r.predictors))
	offset := 0
	for i, p := range r.predictors {
		c, err := t.Column(p.name)
		if err != nil {
			return nil, errors.NewMissingFeatureError("transform", p.name)
		}
		s := source{offset: offset, col: c}
		if p.categorical {
			s.levels = make(map[string]int, len(p.levels))
			for k, l := range p.levels {
				s.levels[l] = k
			}
			offset += len(p.levels)
		} else {
			offset++
		}
		sources[i] = s
	}

	parallel.ParallelizeWithThreshold(rows, parallelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for _, s := range sources {
				if s.levels == nil {
					X.Set(i, s.offset, s.col.Numeric[i])
					continue
				}
				if k, ok := s.levels[s.col.Categorical[i]]; ok {
					X.Set(i, s.offset+k, 1)
				}
			}
		}
	})
	return X, nil
}

func (r *Recipe) selectKept(full *mat.Dense) *mat.Dense {
	rows, _ := full.Dims()
	X := mat.NewDense(rows, len(r.keep), nil)
	col := make([]float64, rows)
	for k, j := range r.keep {
		mat.Col(col, j, full)
		X.SetCol(k, col)
	}
	return X
}

func dummyName(column, level string) string {
	return column + "_" + strings.ReplaceAll(level, " ", ".")
}

func kind(c *Column) string {
	if c.IsCategorical() {
		return "categorical"
	}
	return "numeric"
}
