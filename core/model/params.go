package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/pkg/log"
)

// Hyperparameter names shared by the dispatch table and tuning results.
const (
	Penalty   = "penalty"       // L2 penalty strength
	TreeDepth = "tree_depth"    // maximum tree depth
	Prune     = "prune"         // share of ID3 rows held out for pruning
	Trees     = "trees"         // trees in a forest or boosting rounds
	LearnRate = "learning_rate" // boosting shrinkage
	Mtry      = "mtry"          // predictors sampled per tree (0 = floor(sqrt(p)))
	Neighbors = "neighbors"     // k
	Distance  = "distance"      // euclidean or manhattan
	MaxIter   = "max_iter"      // optimizer iteration budget
)

// Params maps hyperparameter names to values. Values are int, float64 or
// string.
//
//	model.Params{
//	    model.Trees: 200,
//	    model.Mtry:  3,
//	}
type Params map[string]interface{}

// Copy returns a shallow copy.
func (p Params) Copy() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Overwrite returns p with other laid over it. p is not modified.
func (p Params) Overwrite(other Params) Params {
	merged := p.Copy()
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// GetInt gets an integer parameter by name. Whole float64 values are accepted
// since grids are built in float space. Returns def if missing or mistyped.
func (p Params) GetInt(name string, def int) int {
	val, ok := p[name]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	log.GetLogger().Warn("Params.GetInt: unexpected value type",
		"param", name, "value", fmt.Sprintf("%v (%T)", val, val))
	return def
}

// GetFloat gets a float parameter by name. Integers are converted.
func (p Params) GetFloat(name string, def float64) float64 {
	val, ok := p[name]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	log.GetLogger().Warn("Params.GetFloat: unexpected value type",
		"param", name, "value", fmt.Sprintf("%v (%T)", val, val))
	return def
}

// GetString gets a string parameter by name.
func (p Params) GetString(name string, def string) string {
	val, ok := p[name]
	if !ok {
		return def
	}
	if v, ok := val.(string); ok {
		return v
	}
	log.GetLogger().Warn("Params.GetString: unexpected value type",
		"param", name, "value", fmt.Sprintf("%v (%T)", val, val))
	return def
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := lo.Keys(p)
	sort.Strings(names)
	return names
}

// String formats the parameters as "a=1, b=0.5" sorted by name.
func (p Params) String() string {
	if len(p) == 0 {
		return "(defaults)"
	}
	parts := lo.Map(p.Names(), func(name string, _ int) string {
		return fmt.Sprintf("%s=%s", name, FormatValue(p[name]))
	})
	return strings.Join(parts, ", ")
}

// Equal reports whether both parameter sets hold the same values.
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		w, ok := other[k]
		if !ok || FormatValue(v) != FormatValue(w) {
			return false
		}
	}
	return true
}

// FormatValue renders a parameter value compactly (%g for floats).
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4g", x)
	case float32:
		return fmt.Sprintf("%.4g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
