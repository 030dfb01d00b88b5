package dataset

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Fold is one resample: the model is fit on Analysis rows and assessed on
// Assessment rows. Every row appears in exactly one assessment set per repeat.
type Fold struct {
	ID         string
	Analysis   []int
	Assessment []int
}

// Splitter generates folds over n rows. labels are used by stratified
// splitters and ignored otherwise.
type Splitter interface {
	Split(n int, labels []string) ([]Fold, error)
	NSplits() int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	V       int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(v int, shuffle bool, seed uint64) *KFold {
	return &KFold{V: v, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of splits
func (kf *KFold) NSplits() int {
	return kf.V
}

// Split generates analysis/assessment indices for each fold
func (kf *KFold) Split(n int, _ []string) ([]Fold, error) {
	if err := checkFolds(kf.V, n); err != nil {
		return nil, err
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.Seed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assignment := make([]int, n)
	foldSize := n / kf.V
	remainder := n % kf.V
	current := 0
	for f := 0; f < kf.V; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assignment[idx] = f
		}
		current += size
	}
	return buildFolds(assignment, kf.V), nil
}

// StratifiedKFold implements stratified k-fold cross-validation.
// Each class is dealt round-robin over the folds so class proportions are
// preserved in every assessment set.
type StratifiedKFold struct {
	V       int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(v int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{V: v, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of splits
func (skf *StratifiedKFold) NSplits() int {
	return skf.V
}

// Split generates stratified analysis/assessment indices for each fold
func (skf *StratifiedKFold) Split(n int, labels []string) ([]Fold, error) {
	if err := checkFolds(skf.V, n); err != nil {
		return nil, err
	}
	if len(labels) != n {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", n, len(labels), 0)
	}

	classIndices := make(map[string][]int)
	for i, l := range labels {
		classIndices[l] = append(classIndices[l], i)
	}
	classes := make([]string, 0, len(classIndices))
	for c := range classIndices {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	r := newRand(skf.Seed)
	assignment := make([]int, n)
	next := 0
	for _, c := range classes {
		indices := classIndices[c]
		if skf.Shuffle {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		// continue the round-robin across classes so small classes do not
		// all land in the first fold
		for _, idx := range indices {
			assignment[idx] = next % skf.V
			next++
		}
	}
	return buildFolds(assignment, skf.V), nil
}

func checkFolds(v, n int) error {
	if v < 2 {
		return errors.NewValidationError("folds", "must be at least 2", v)
	}
	if v > n {
		return errors.NewValidationError("folds", fmt.Sprintf("must not exceed the number of rows (%d)", n), v)
	}
	return nil
}

func buildFolds(assignment []int, v int) []Fold {
	folds := make([]Fold, v)
	for f := range folds {
		folds[f].ID = fmt.Sprintf("Fold%02d", f+1)
	}
	for idx, f := range assignment {
		folds[f].Assessment = append(folds[f].Assessment, idx)
		for g := range folds {
			if g != f {
				folds[g].Analysis = append(folds[g].Analysis, idx)
			}
		}
	}
	return folds
}

// VFold creates v folds over the table, repeated `repeats` times with
// different shuffles. When strata is set folds are stratified on that column
// (numeric columns by quartile).
func VFold(t *Table, v, repeats int, strata string, seed uint64) ([]Fold, error) {
	if repeats < 1 {
		repeats = 1
	}
	labels, err := StrataLabels(t, strata)
	if err != nil {
		return nil, err
	}

	var all []Fold
	for rep := 0; rep < repeats; rep++ {
		var splitter Splitter = NewKFold(v, true, seed+uint64(rep))
		if strata != "" {
			splitter = NewStratifiedKFold(v, true, seed+uint64(rep))
		}
		folds, err := splitter.Split(t.NumRows(), labels)
		if err != nil {
			return nil, err
		}
		if repeats > 1 {
			for i := range folds {
				folds[i].ID = fmt.Sprintf("Repeat%d_%s", rep+1, folds[i].ID)
			}
		}
		all = append(all, folds...)
	}
	return all, nil
}
