package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Target is the encoded outcome column. For regression Values holds the
// outcome; for classification Values holds level indices into Levels.
type Target struct {
	Name   string
	Mode   model.Mode
	Values []float64
	Levels []string
}

// InferMode returns classification for a categorical target column and
// regression for a numeric one.
func InferMode(t *Table, target string) (model.Mode, error) {
	c, err := t.Column(target)
	if err != nil {
		return "", err
	}
	if c.IsCategorical() {
		return model.Classification, nil
	}
	return model.Regression, nil
}

// NewTarget encodes the target column of t. An empty mode is inferred.
// Classification levels are sorted (numerically when every level is a
// number); a numeric column is formatted to strings first. The target labels
// of levelsFrom join the levels of t, so a level that only occurs outside the
// training rows still gets an index.
func NewTarget(t *Table, name string, mode model.Mode, levelsFrom ...*Table) (*Target, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode, _ = InferMode(t, name)
	}
	if n := missingCount(c); n > 0 {
		return nil, errors.NewValueError("NewTarget",
			fmt.Sprintf("target %q has %d missing values", name, n))
	}

	switch mode {
	case model.Regression:
		if c.IsCategorical() {
			return nil, errors.NewValidationError("mode", "regression needs a numeric target", name)
		}
		return &Target{Name: name, Mode: mode, Values: append([]float64(nil), c.Numeric...)}, nil
	case model.Classification:
		labels := asLabels(c)
		all := append([]string(nil), labels...)
		for _, other := range levelsFrom {
			oc, err := other.Column(name)
			if err != nil {
				return nil, err
			}
			for i, l := range asLabels(oc) {
				if !oc.IsMissing(i) {
					all = append(all, l)
				}
			}
		}
		levels := sortLevels(lo.Uniq(all))
		if len(levels) < 2 {
			return nil, errors.NewValueError("NewTarget",
				fmt.Sprintf("classification target %q needs at least 2 levels, got %d", name, len(levels)))
		}
		tg := &Target{Name: name, Mode: mode, Levels: levels}
		tg.Values, err = tg.encode(labels)
		if err != nil {
			return nil, err
		}
		return tg, nil
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedMode, "mode %q", mode)
	}
}

// Encode encodes the target column of another table (e.g. the test set)
// with the levels learned here. Unknown levels are an error.
func (tg *Target) Encode(t *Table) (*Target, error) {
	c, err := t.Column(tg.Name)
	if err != nil {
		return nil, err
	}
	if n := missingCount(c); n > 0 {
		return nil, errors.NewValueError("Target.Encode",
			fmt.Sprintf("target %q has %d missing values", tg.Name, n))
	}
	out := &Target{Name: tg.Name, Mode: tg.Mode, Levels: tg.Levels}
	if tg.Mode == model.Regression {
		if c.IsCategorical() {
			return nil, errors.NewValidationError("mode", "regression needs a numeric target", tg.Name)
		}
		out.Values = append([]float64(nil), c.Numeric...)
		return out, nil
	}
	out.Values, err = tg.encode(asLabels(c))
	return out, err
}

// Labels decodes level indices back to level names.
func (tg *Target) Labels(values []float64) []string {
	return lo.Map(values, func(v float64, _ int) string {
		i := int(v)
		if i < 0 || i >= len(tg.Levels) {
			return ""
		}
		return tg.Levels[i]
	})
}

// NumClasses returns the number of levels (0 for regression).
func (tg *Target) NumClasses() int {
	return len(tg.Levels)
}

// Len returns the number of rows.
func (tg *Target) Len() int {
	return len(tg.Values)
}

// Subset returns the target restricted to rows.
func (tg *Target) Subset(rows []int) *Target {
	return &Target{
		Name:   tg.Name,
		Mode:   tg.Mode,
		Levels: tg.Levels,
		Values: lo.Map(rows, func(r int, _ int) float64 { return tg.Values[r] }),
	}
}

func (tg *Target) encode(labels []string) ([]float64, error) {
	index := make(map[string]int, len(tg.Levels))
	for i, l := range tg.Levels {
		index[l] = i
	}
	values := make([]float64, len(labels))
	for i, l := range labels {
		k, ok := index[l]
		if !ok {
			return nil, errors.NewValueError("Target.Encode",
				fmt.Sprintf("level %q of %q was not seen in training data", l, tg.Name))
		}
		values[i] = float64(k)
	}
	return values, nil
}

func asLabels(c *Column) []string {
	if c.IsCategorical() {
		return c.Categorical
	}
	return lo.Map(c.Numeric, func(v float64, _ int) string {
		return strconv.FormatFloat(v, 'g', -1, 64)
	})
}

func sortLevels(levels []string) []string {
	numeric := lo.EveryBy(levels, func(l string) bool {
		_, err := strconv.ParseFloat(l, 64)
		return err == nil
	})
	sort.Slice(levels, func(i, j int) bool {
		if numeric {
			a, _ := strconv.ParseFloat(levels[i], 64)
			b, _ := strconv.ParseFloat(levels[j], 64)
			return a < b
		}
		return levels[i] < levels[j]
	})
	return levels
}

func missingCount(c *Column) int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Proportions returns the share of each level (nil for regression).
func (tg *Target) Proportions() []float64 {
	if tg.Mode != model.Classification {
		return nil
	}
	w := make([]float64, len(tg.Levels))
	for _, v := range tg.Values {
		w[int(v)]++
	}
	total := float64(len(tg.Values))
	for i := range w {
		w[i] = math.Round(w[i]/total*1000) / 1000
	}
	return w
}
