package dataset

import (
	"strconv"

	"github.com/sjwhitworth/golearn/base"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// ClassAttributeName is the golearn class attribute name. The leading dot
// keeps it from colliding with design column names.
const ClassAttributeName = ".outcome"

// Schema is the golearn attribute layout of a design matrix. Training and
// prediction grids built from the same Schema share attribute objects, which
// golearn uses to resolve columns between grids.
type Schema struct {
	features []base.Attribute
	binary   bool
	class    base.Attribute
	levels   []string
	index    map[string]int
}

// NewSchema creates float feature attributes and a class attribute that is
// categorical when levels are given and float (regression) otherwise.
func NewSchema(features []string, levels []string) *Schema {
	s := newSchema(levels)
	for _, f := range features {
		s.features = append(s.features, base.NewFloatAttribute(f))
	}
	return s
}

// NewBinarySchema is like NewSchema with golearn binary feature attributes.
// A value is stored as 1 when it is positive and 0 otherwise.
func NewBinarySchema(features []string, levels []string) *Schema {
	s := newSchema(levels)
	s.binary = true
	for _, f := range features {
		s.features = append(s.features, base.NewBinaryAttribute(f))
	}
	return s
}

func newSchema(levels []string) *Schema {
	s := &Schema{levels: levels, index: make(map[string]int, len(levels))}
	if len(levels) > 0 {
		c := base.NewCategoricalAttribute()
		c.SetName(ClassAttributeName)
		for i, l := range levels {
			c.GetSysValFromString(l)
			s.index[l] = i
		}
		s.class = c
	} else {
		s.class = base.NewFloatAttribute(ClassAttributeName)
	}
	return s
}

// NewIndexSchema creates a schema with generated feature names x1..xp and,
// when nClasses > 0, class levels "0".."K-1" matching level indices.
func NewIndexSchema(p, nClasses int) *Schema {
	return NewSchema(indexNames(p, nClasses))
}

// NewBinaryIndexSchema is NewIndexSchema with binary feature attributes.
func NewBinaryIndexSchema(p, nClasses int) *Schema {
	return NewBinarySchema(indexNames(p, nClasses))
}

func indexNames(p, nClasses int) (features, levels []string) {
	features = make([]string, p)
	for j := range features {
		features[j] = "x" + strconv.Itoa(j+1)
	}
	for k := 0; k < nClasses; k++ {
		levels = append(levels, strconv.Itoa(k))
	}
	return features, levels
}

// NumFeatures returns the number of feature attributes.
func (s *Schema) NumFeatures() int {
	return len(s.features)
}

// Instances copies X (and y when non-nil) into golearn dense instances.
// With a nil y the class column is filled with the first level (or 0) so the
// grid can be passed to Predict.
func (s *Schema) Instances(X mat.Matrix, y []float64) (*base.DenseInstances, error) {
	rows, cols := X.Dims()
	if cols != len(s.features) {
		return nil, errors.NewDimensionError("Schema.Instances", len(s.features), cols, 1)
	}
	if y != nil && len(y) != rows {
		return nil, errors.NewDimensionError("Schema.Instances", rows, len(y), 0)
	}

	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, cols)
	for j, a := range s.features {
		specs[j] = inst.AddAttribute(a)
	}
	classSpec := inst.AddAttribute(s.class)
	if err := inst.AddClassAttribute(s.class); err != nil {
		return nil, errors.Wrap(err, "golearn AddClassAttribute")
	}
	if err := inst.Extend(rows); err != nil {
		return nil, errors.Wrap(err, "golearn Extend")
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			inst.Set(specs[j], i, s.featureBytes(X.At(i, j)))
		}
		v := 0.0
		if y != nil {
			v = y[i]
		}
		inst.Set(classSpec, i, s.classBytes(v))
	}
	return inst, nil
}

func (s *Schema) featureBytes(v float64) []byte {
	if !s.binary {
		return base.PackFloatToBytes(v)
	}
	if v > 0 {
		return []byte{1}
	}
	return []byte{0}
}

func (s *Schema) classBytes(v float64) []byte {
	if len(s.levels) == 0 {
		return base.PackFloatToBytes(v)
	}
	k := int(v)
	if k < 0 || k >= len(s.levels) {
		k = 0
	}
	return s.class.GetSysValFromString(s.levels[k])
}

// DecodeClasses reads the class column of a golearn prediction grid back
// into level indices.
func (s *Schema) DecodeClasses(pred base.FixedDataGrid) ([]float64, error) {
	if len(s.levels) == 0 {
		return nil, errors.Wrap(errors.ErrUnsupportedMode, "DecodeClasses on a regression schema")
	}
	_, rows := pred.Size()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		label := base.GetClass(pred, i)
		k, ok := s.index[label]
		if !ok {
			return nil, errors.NewValueError("Schema.DecodeClasses",
				"golearn predicted unknown class "+label)
		}
		out[i] = float64(k)
	}
	return out, nil
}
