package tune

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// GridType selects how candidates are generated.
type GridType string

const (
	Regular        GridType = "regular"
	LatinHypercube GridType = "latin_hypercube"
	Random         GridType = "random"
	Bayesian       GridType = "bayes"
)

// ParseGridType parses a grid type name; "" means latin_hypercube.
func ParseGridType(s string) (GridType, error) {
	switch g := GridType(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return LatinHypercube, nil
	case Regular, LatinHypercube, Random, Bayesian:
		return g, nil
	case "lhs", "latin hypercube":
		return LatinHypercube, nil
	default:
		return "", errors.NewValidationError("grid_type",
			"must be regular, latin_hypercube, random or bayes", s)
	}
}

// MakeGrid builds the candidates of a space filling grid type. For Regular
// size is the number of levels per parameter; otherwise it is the number of
// candidates. Bayesian has no up front grid.
func MakeGrid(kind GridType, ranges []ParamRange, size int, seed uint64) ([]model.Params, error) {
	switch kind {
	case Regular:
		return GridRegular(ranges, size)
	case LatinHypercube:
		return GridLatinHypercube(ranges, size, seed)
	case Random:
		return GridRandom(ranges, size, seed)
	default:
		return nil, errors.NewValidationError("grid_type", "no up front grid for this type", kind)
	}
}

// GridRegular returns the cartesian product of levels values per range.
func GridRegular(ranges []ParamRange, levels int) ([]model.Params, error) {
	if err := validateAll(ranges); err != nil {
		return nil, err
	}
	values := lo.Map(ranges, func(r ParamRange, _ int) []interface{} { return r.Levels(levels) })
	count := lo.Reduce(values, func(n int, v []interface{}, _ int) int { return n * len(v) }, 1)

	grid := make([]model.Params, 0, count)
	var dfs func(deep int, params model.Params)
	dfs = func(deep int, params model.Params) {
		if deep == len(ranges) {
			grid = append(grid, params.Copy())
			return
		}
		for _, val := range values[deep] {
			params[ranges[deep].Name] = val
			dfs(deep+1, params)
		}
	}
	dfs(0, model.Params{})
	return grid, nil
}

// GridLatinHypercube samples size candidates with a latin hypercube design
// over the unit cube, then maps each dimension onto its range. Integer and
// categorical parameters collapse neighbouring samples, so duplicates are
// removed and fewer than size candidates may be returned.
func GridLatinHypercube(ranges []ParamRange, size int, seed uint64) ([]model.Params, error) {
	if err := validateAll(ranges); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, errors.NewValidationError("grid_size", "must be positive", size)
	}
	if len(ranges) == 0 {
		return []model.Params{{}}, nil
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	unit := distmv.NewUniform(unitCube(len(ranges)), src)
	batch := mat.NewDense(size, len(ranges), nil)
	samplemv.LatinHypercube{Q: unit, Src: src}.Sample(batch)
	return fromUnit(ranges, batch), nil
}

// GridRandom samples size candidates uniformly over the unit cube.
// Duplicates are removed as in GridLatinHypercube.
func GridRandom(ranges []ParamRange, size int, seed uint64) ([]model.Params, error) {
	if err := validateAll(ranges); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, errors.NewValidationError("grid_size", "must be positive", size)
	}
	if len(ranges) == 0 {
		return []model.Params{{}}, nil
	}
	unit := distmv.NewUniform(unitCube(len(ranges)), rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	batch := mat.NewDense(size, len(ranges), nil)
	for i := 0; i < size; i++ {
		batch.SetRow(i, unit.Rand(nil))
	}
	return fromUnit(ranges, batch), nil
}

func unitCube(d int) []r1.Interval {
	bounds := make([]r1.Interval, d)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: 0, Max: 1}
	}
	return bounds
}

func fromUnit(ranges []ParamRange, batch *mat.Dense) []model.Params {
	n, _ := batch.Dims()
	seen := make(map[string]bool, n)
	grid := make([]model.Params, 0, n)
	for i := 0; i < n; i++ {
		params := make(model.Params, len(ranges))
		for j, r := range ranges {
			params[r.Name] = r.Value(batch.At(i, j))
		}
		key := params.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		grid = append(grid, params)
	}
	return grid
}

func validateAll(ranges []ParamRange) error {
	names := make(map[string]bool, len(ranges))
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
		if names[r.Name] {
			return errors.NewValidationError("range", fmt.Sprintf("duplicate parameter %q", r.Name), r.Name)
		}
		names[r.Name] = true
	}
	return nil
}
