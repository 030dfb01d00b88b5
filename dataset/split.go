package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// numericStrataBins is the number of quantile bins used to stratify a numeric column.
const numericStrataBins = 4

// Split is a train/test partition of a table.
type Split struct {
	Train      *Table
	Test       *Table
	TrainIndex []int
	TestIndex  []int
}

// InitialSplit puts a proportion prop of the rows into the training set and
// the rest into the test set. When strata names a column the proportion is
// applied within each level (categorical) or quartile bin (numeric). Every
// stratum keeps at least one training row, so a level seen once is never
// test-only.
func InitialSplit(t *Table, prop float64, strata string, seed uint64) (*Split, error) {
	if prop <= 0 || prop >= 1 {
		return nil, errors.NewValueError("InitialSplit", fmt.Sprintf("prop must be in (0, 1), got %v", prop))
	}
	n := t.NumRows()
	if n < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "InitialSplit needs at least 2 rows")
	}

	groups, err := strataGroups(t, strata)
	if err != nil {
		return nil, err
	}

	r := newRand(seed)
	var train, test []int
	for _, g := range groups {
		r.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		k := max(int(math.Floor(prop*float64(len(g)))), 1)
		train = append(train, g[:k]...)
		test = append(test, g[k:]...)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, errors.NewValueError("InitialSplit",
			fmt.Sprintf("prop %v leaves an empty side (%d train, %d test)", prop, len(train), len(test)))
	}
	sort.Ints(train)
	sort.Ints(test)

	return &Split{
		Train:      t.Subset(train),
		Test:       t.Subset(test),
		TrainIndex: train,
		TestIndex:  test,
	}, nil
}

// strataGroups partitions row indices by the strata column. An empty strata
// name yields one group with every row.
func strataGroups(t *Table, strata string) ([][]int, error) {
	labels, err := StrataLabels(t, strata)
	if err != nil {
		return nil, err
	}
	byLabel := make(map[string][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	keys := make([]string, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	groups := make([][]int, len(keys))
	for i, k := range keys {
		groups[i] = byLabel[k]
	}
	return groups, nil
}

// StrataLabels returns one label per row: the categorical value, or the
// quartile bin of a numeric column. An empty name gives identical labels.
func StrataLabels(t *Table, strata string) ([]string, error) {
	labels := make([]string, t.NumRows())
	if strata == "" {
		return labels, nil
	}
	c, err := t.Column(strata)
	if err != nil {
		return nil, err
	}
	if c.IsCategorical() {
		copy(labels, c.Categorical)
		return labels, nil
	}

	sorted := make([]float64, 0, len(c.Numeric))
	for _, v := range c.Numeric {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	if len(sorted) == 0 {
		return labels, nil
	}
	cuts := make([]float64, numericStrataBins-1)
	for i := range cuts {
		p := float64(i+1) / numericStrataBins
		cuts[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	for i, v := range c.Numeric {
		bin := sort.SearchFloat64s(cuts, v)
		labels[i] = fmt.Sprintf("q%d", bin)
	}
	return labels, nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
