package dataset

import (
	"bytes"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/sjwhitworth/golearn/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

const irisLike = `Sepal.Length,Sepal.Width,Color,Species
5.1,3.5,red,setosa
4.9,3.0,red,setosa
4.7,3.2,blue,setosa
4.6,NA,red,setosa
7.0,3.2,blue,versicolor
6.4,3.2,green,versicolor
6.9,3.1,blue,versicolor
5.5,2.3,green,versicolor
`

func readIris(t *testing.T) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(irisLike), CSVOptions{})
	require.NoError(t, err)
	return tbl
}

func TestReadCSV(t *testing.T) {
	tbl := readIris(t)

	assert.Equal(t, 8, tbl.NumRows())
	assert.Equal(t, []string{"Sepal.Length", "Sepal.Width", "Color", "Species"}, tbl.Names())

	width, err := tbl.Column("Sepal.Width")
	require.NoError(t, err)
	assert.False(t, width.IsCategorical())
	assert.True(t, math.IsNaN(width.Numeric[3]))

	species, err := tbl.Column("Species")
	require.NoError(t, err)
	assert.True(t, species.IsCategorical())

	forced, err := ReadCSV(strings.NewReader(irisLike), CSVOptions{Categorical: []string{"Sepal.Length"}})
	require.NoError(t, err)
	c, _ := forced.Column("Sepal.Length")
	assert.Equal(t, "5.1", c.Categorical[0])
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tbl := readIris(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))

	again, err := ReadCSV(&buf, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), again.Names())
	w, _ := again.Column("Sepal.Width")
	assert.True(t, math.IsNaN(w.Numeric[3]))
}

func TestTable(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddNumeric("x", []float64{1, 2, math.NaN()}))
	require.NoError(t, tbl.AddCategorical("g", []string{"a", "", "b"}))

	assert.Error(t, tbl.AddNumeric("x", []float64{1, 2, 3}), "duplicate name")
	var dim *errors.DimensionError
	assert.True(t, errors.As(tbl.AddNumeric("y", []float64{1}), &dim))

	clean, dropped := tbl.DropMissing()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, clean.NumRows())

	onlyX, dropped := tbl.DropMissing("x")
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, onlyX.NumRows())

	sub := tbl.Subset([]int{2, 0})
	g, _ := sub.Column("g")
	assert.Equal(t, []string{"b", "a"}, g.Categorical)

	assert.Equal(t, []string{"g"}, tbl.Drop("x").Names())
	_, err := tbl.Select("nope")
	assert.Error(t, err)
}

func TestInitialSplit(t *testing.T) {
	tbl := NewTable()
	x := make([]float64, 100)
	g := make([]string, 100)
	for i := range x {
		x[i] = float64(i)
		g[i] = "a"
		if i%4 == 0 {
			g[i] = "b"
		}
	}
	require.NoError(t, tbl.AddNumeric("x", x))
	require.NoError(t, tbl.AddCategorical("g", g))

	split, err := InitialSplit(tbl, 0.75, "g", 42)
	require.NoError(t, err)
	// floor(0.75*75) + floor(0.75*25) = 56 + 18
	assert.Equal(t, 74, split.Train.NumRows())
	assert.Equal(t, 26, split.Test.NumRows())

	testG, _ := split.Test.Column("g")
	nb := 0
	for _, v := range testG.Categorical {
		if v == "b" {
			nb++
		}
	}
	assert.Equal(t, 7, nb, "stratified: 25 b rows -> 18 train, 7 test")

	all := append(append([]int{}, split.TrainIndex...), split.TestIndex...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	again, err := InitialSplit(tbl, 0.75, "g", 42)
	require.NoError(t, err)
	assert.Equal(t, split.TestIndex, again.TestIndex, "same seed, same split")

	_, err = InitialSplit(tbl, 1.5, "", 1)
	assert.Error(t, err)
	_, err = InitialSplit(tbl, 0.75, "missing", 1)
	assert.Error(t, err)
}

func TestInitialSplit_SingletonStratum(t *testing.T) {
	tbl := NewTable()
	g := make([]string, 41)
	for i := range g {
		g[i] = []string{"a", "b"}[i%2]
	}
	g[40] = "c"
	require.NoError(t, tbl.AddCategorical("g", g))

	split, err := InitialSplit(tbl, 0.75, "g", 3)
	require.NoError(t, err)
	assert.Contains(t, split.TrainIndex, 40, "a level seen once stays in training")
	assert.NotContains(t, split.TestIndex, 40)
	// floor(0.75*20) twice plus the kept singleton
	assert.Equal(t, 31, split.Train.NumRows())
}

func TestKFold(t *testing.T) {
	folds, err := NewKFold(3, true, 7).Split(10, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, 10, len(f.Analysis)+len(f.Assessment))
		for _, i := range f.Assessment {
			seen[i]++
		}
	}
	assert.Len(t, seen, 10)
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
	assert.Equal(t, "Fold01", folds[0].ID)

	_, err = NewKFold(1, false, 0).Split(10, nil)
	assert.Error(t, err)
	_, err = NewKFold(11, false, 0).Split(10, nil)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	labels := []string{"a", "a", "a", "a", "a", "a", "b", "b", "b"}
	folds, err := NewStratifiedKFold(3, true, 1).Split(len(labels), labels)
	require.NoError(t, err)

	for _, f := range folds {
		nb := 0
		for _, i := range f.Assessment {
			if labels[i] == "b" {
				nb++
			}
		}
		assert.Equal(t, 1, nb, "each fold holds one b row")
		assert.Len(t, f.Assessment, 3)
	}
}

func TestVFold_Repeats(t *testing.T) {
	tbl := readIris(t)
	folds, err := VFold(tbl, 2, 2, "Species", 3)
	require.NoError(t, err)
	require.Len(t, folds, 4)
	assert.Equal(t, "Repeat2_Fold01", folds[2].ID)
}

func TestTarget(t *testing.T) {
	tbl := readIris(t)

	mode, err := InferMode(tbl, "Species")
	require.NoError(t, err)
	assert.Equal(t, model.Classification, mode)

	tg, err := NewTarget(tbl, "Species", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor"}, tg.Levels)
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 1, 1}, tg.Values)
	assert.Equal(t, []float64{0.5, 0.5}, tg.Proportions())
	assert.Equal(t, []string{"versicolor", "setosa"}, tg.Labels([]float64{1, 0}))

	reg, err := NewTarget(tbl, "Sepal.Length", "")
	require.NoError(t, err)
	assert.Equal(t, model.Regression, reg.Mode)
	assert.Nil(t, reg.Levels)

	_, err = NewTarget(tbl, "Species", model.Regression)
	assert.Error(t, err)

	// a numeric outcome can be treated as classes
	num := NewTable()
	require.NoError(t, num.AddNumeric("y", []float64{10, 2, 10, 2}))
	cls, err := NewTarget(num, "y", model.Classification)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "10"}, cls.Levels, "numeric levels sort numerically")

	other := NewTable()
	require.NoError(t, other.AddCategorical("Species", []string{"virginica"}))
	_, err = tg.Encode(other)
	assert.Error(t, err, "unseen level")

	// levels seen only in other tables still get an index
	wide, err := NewTarget(tbl, "Species", "", other)
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, wide.Levels)
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 1, 1}, wide.Values)
	enc, err := wide.Encode(other)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, enc.Values)

	gap := NewTable()
	require.NoError(t, gap.AddCategorical("Species", []string{"", "virginica"}))
	wide, err = NewTarget(tbl, "Species", "", gap)
	require.NoError(t, err)
	assert.NotContains(t, wide.Levels, "", "missing labels are not levels")
}

func TestRecipe(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddNumeric("x", []float64{1, 2, 3, 4}))
	require.NoError(t, tbl.AddNumeric("const", []float64{5, 5, 5, 5}))
	require.NoError(t, tbl.AddCategorical("color", []string{"red", "blue", "green", "blue"}))
	require.NoError(t, tbl.AddCategorical("y", []string{"a", "b", "a", "b"}))

	r, err := Prep(tbl, "y", RecipeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "color_green", "color_red"}, r.FeatureNames())
	assert.Equal(t, []string{"const"}, r.Removed())
	assert.True(t, r.HasDummies())
	assert.Equal(t, []string{"x", "const", "color"}, r.Predictors())

	X, err := r.Bake(tbl)
	require.NoError(t, err)
	want := mat.NewDense(4, 3, []float64{
		1, 0, 1,
		2, 0, 0,
		3, 1, 0,
		4, 0, 0,
	})
	assert.True(t, mat.Equal(want, X), "got\n%v", mat.Formatted(X))

	// unseen level maps to all-zero dummies; target column not needed
	newData := NewTable()
	require.NoError(t, newData.AddNumeric("x", []float64{9}))
	require.NoError(t, newData.AddNumeric("const", []float64{5}))
	require.NoError(t, newData.AddCategorical("color", []string{"purple"}))
	X2, err := r.Bake(newData)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 0, 0}, X2.RawRowView(0))

	var shapeErr *errors.InputShapeError
	_, err = r.Bake(newData.Drop("color"))
	assert.True(t, errors.As(err, &shapeErr))
}

func TestRecipe_NormalizeAndMissing(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddNumeric("x", []float64{1, 2, 3}))
	require.NoError(t, tbl.AddNumeric("y", []float64{1, 2, 3}))

	r, err := Prep(tbl, "y", RecipeOptions{Normalize: true})
	require.NoError(t, err)
	X, err := r.Bake(tbl)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, X.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, X.At(1, 0), 1e-12)
	assert.Contains(t, r.String(), "normalize")

	bad := NewTable()
	require.NoError(t, bad.AddNumeric("x", []float64{1, math.NaN()}))
	require.NoError(t, bad.AddNumeric("y", []float64{1, 2}))
	_, err = Prep(bad, "y", RecipeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x (1)")
}

func TestSchema_Instances(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	s := NewSchema([]string{"a", "b"}, []string{"no", "yes"})

	inst, err := s.Instances(X, []float64{0, 1, 1})
	require.NoError(t, err)
	cols, rows := inst.Size()
	assert.Equal(t, 3, cols)
	assert.Equal(t, 3, rows)
	assert.Equal(t, "yes", base.GetClass(inst, 1))

	decoded, err := s.DecodeClasses(inst)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, decoded)

	_, err = s.Instances(mat.NewDense(1, 3, nil), nil)
	assert.Error(t, err)

	reg := NewSchema([]string{"a", "b"}, nil)
	_, err = reg.DecodeClasses(inst)
	assert.ErrorIs(t, err, errors.ErrUnsupportedMode)
}

func TestSchema_BinaryInstances(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 1, 2, 0, -1, 0.5})
	s := NewBinaryIndexSchema(2, 2)
	assert.Equal(t, 2, s.NumFeatures())

	inst, err := s.Instances(X, []float64{0, 1, 1})
	require.NoError(t, err)
	attrs := base.NonClassAttributes(inst)
	require.Len(t, attrs, 2)
	for _, a := range attrs {
		_, ok := a.(*base.BinaryAttribute)
		assert.True(t, ok, a.GetName())
	}

	specs := base.ResolveAttributes(inst, attrs)
	var got []string
	for i := 0; i < 3; i++ {
		for _, sp := range specs {
			got = append(got, sp.GetAttribute().GetStringFromSysVal(inst.Get(sp, i)))
		}
	}
	assert.Equal(t, []string{"0", "1", "1", "0", "0", "1"}, got)
	assert.Equal(t, "1", base.GetClass(inst, 2))
}
