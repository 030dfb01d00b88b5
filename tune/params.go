// Package tune searches hyperparameter candidates by resampling: every
// candidate is fit on the analysis rows of each fold and scored on the
// assessment rows. Candidates come from regular, latin hypercube or random
// grids, or from a TPE study driven by goptuna.
package tune

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Kind is the value type of a parameter.
type Kind int

const (
	Int Kind = iota
	Float
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParamRange is the search range of one tunable hyperparameter.
//
// Numeric bounds are inclusive. When Log10 is set, Lower and Upper are
// exponents: LogRange("penalty", -10, 0) searches 1e-10 .. 1.
type ParamRange struct {
	Name   string
	Kind   Kind
	Lower  float64
	Upper  float64
	Log10  bool
	Values []string

	// UpperIsFeatures marks a range whose upper bound is the number of
	// predictors and is only known once the data is prepped.
	UpperIsFeatures bool

	// HigherIsSimpler orders candidates for SelectBySimplest; by default a
	// smaller value is the simpler model.
	HigherIsSimpler bool
}

// IntRange creates an integer range [lower, upper].
func IntRange(name string, lower, upper int) ParamRange {
	return ParamRange{Name: name, Kind: Int, Lower: float64(lower), Upper: float64(upper)}
}

// FloatRange creates a float range [lower, upper].
func FloatRange(name string, lower, upper float64) ParamRange {
	return ParamRange{Name: name, Kind: Float, Lower: lower, Upper: upper}
}

// LogRange creates a float range searched on the log10 scale between
// 10^lower and 10^upper.
func LogRange(name string, lower, upper float64) ParamRange {
	return ParamRange{Name: name, Kind: Float, Lower: lower, Upper: upper, Log10: true}
}

// CategoricalRange creates a range over a fixed set of values.
func CategoricalRange(name string, values ...string) ParamRange {
	return ParamRange{Name: name, Kind: Categorical, Values: values}
}

// Simpler marks larger values as simpler models.
func (r ParamRange) Simpler() ParamRange {
	r.HigherIsSimpler = true
	return r
}

// FeatureBound marks the upper bound as data dependent.
func (r ParamRange) FeatureBound() ParamRange {
	r.UpperIsFeatures = true
	return r
}

// Finalize resolves a data dependent upper bound to p predictors.
func (r ParamRange) Finalize(p int) ParamRange {
	if r.UpperIsFeatures {
		r.Upper = math.Max(float64(p), r.Lower)
		r.UpperIsFeatures = false
	}
	return r
}

// Validate checks that the range can be sampled.
func (r ParamRange) Validate() error {
	if r.Name == "" {
		return errors.NewValidationError("range", "name must not be empty", r.Name)
	}
	if r.UpperIsFeatures {
		return errors.NewValueError("ParamRange.Validate",
			fmt.Sprintf("range %q is not finalized", r.Name))
	}
	switch r.Kind {
	case Categorical:
		if len(r.Values) == 0 {
			return errors.NewValidationError(r.Name, "categorical range needs values", r.Values)
		}
	case Int, Float:
		if math.IsNaN(r.Lower) || math.IsNaN(r.Upper) || r.Lower > r.Upper {
			return errors.NewValidationError(r.Name, "lower must not exceed upper",
				fmt.Sprintf("[%v, %v]", r.Lower, r.Upper))
		}
	default:
		return errors.NewValidationError(r.Name, "unknown kind", r.Kind)
	}
	return nil
}

// Value maps u in [0, 1] onto the range. Integers are rounded and
// categorical values split [0, 1] into equal bins.
func (r ParamRange) Value(u float64) interface{} {
	u = errors.ClipValue(u, 0, 1)
	switch r.Kind {
	case Categorical:
		i := int(u * float64(len(r.Values)))
		if i >= len(r.Values) {
			i = len(r.Values) - 1
		}
		return r.Values[i]
	case Int:
		return int(math.Round(r.Lower + u*(r.Upper-r.Lower)))
	default:
		x := r.Lower + u*(r.Upper-r.Lower)
		if r.Log10 {
			return math.Pow(10, x)
		}
		return x
	}
}

// Levels returns n evenly spaced values covering the range. Integer ranges
// give at most Upper-Lower+1 values and categorical ranges all of theirs.
func (r ParamRange) Levels(n int) []interface{} {
	if r.Kind == Categorical {
		return lo.Map(r.Values, func(v string, _ int) interface{} { return v })
	}
	if n < 1 {
		n = 1
	}
	if n == 1 {
		return []interface{}{r.Value(0.5)}
	}
	var out []interface{}
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := r.Value(float64(i) / float64(n-1))
		key := model.FormatValue(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// String formats the range as it is printed in the dispatch table.
func (r ParamRange) String() string {
	switch {
	case r.Kind == Categorical:
		return fmt.Sprintf("%s {%s}", r.Name, strings.Join(r.Values, ","))
	case r.UpperIsFeatures:
		return fmt.Sprintf("%s [%g, p]", r.Name, r.Lower)
	case r.Log10:
		return fmt.Sprintf("%s log10[%g, %g]", r.Name, r.Lower, r.Upper)
	default:
		return fmt.Sprintf("%s [%g, %g]", r.Name, r.Lower, r.Upper)
	}
}

// FinalizeAll finalizes every range for p predictors and validates it.
func FinalizeAll(ranges []ParamRange, p int) ([]ParamRange, error) {
	out := make([]ParamRange, len(ranges))
	for i, r := range ranges {
		out[i] = r.Finalize(p)
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
