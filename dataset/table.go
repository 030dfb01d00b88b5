// Package dataset holds the tabular data model of easyfit: column-oriented
// tables, CSV loading, train/test splits, resampling folds, outcome encoding,
// design-matrix recipes and the bridge to golearn instances.
package dataset

import (
	"math"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Column is one named column of a Table. Exactly one of Numeric or
// Categorical is set. Missing values are NaN (numeric) or "" (categorical).
type Column struct {
	Name        string
	Numeric     []float64
	Categorical []string
}

// IsCategorical reports whether the column holds strings.
func (c *Column) IsCategorical() bool {
	return c.Categorical != nil
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.IsCategorical() {
		return len(c.Categorical)
	}
	return len(c.Numeric)
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.IsCategorical() {
		return c.Categorical[i] == ""
	}
	return math.IsNaN(c.Numeric[i])
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name}
	if c.IsCategorical() {
		out.Categorical = lo.Map(rows, func(r int, _ int) string { return c.Categorical[r] })
	} else {
		out.Numeric = lo.Map(rows, func(r int, _ int) float64 { return c.Numeric[r] })
	}
	return out
}

// Table is an ordered collection of equally long named columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// AddNumeric appends a numeric column. The slice is not copied.
func (t *Table) AddNumeric(name string, values []float64) error {
	if values == nil {
		values = []float64{}
	}
	return t.add(&Column{Name: name, Numeric: values})
}

// AddCategorical appends a categorical column. The slice is not copied.
func (t *Table) AddCategorical(name string, values []string) error {
	if values == nil {
		values = []string{}
	}
	return t.add(&Column{Name: name, Categorical: values})
}

func (t *Table) add(c *Column) error {
	if c.Name == "" {
		return errors.NewValidationError("column", "name must not be empty", c.Name)
	}
	if _, exists := t.index[c.Name]; exists {
		return errors.NewValidationError("column", "duplicate column name", c.Name)
	}
	if len(t.columns) > 0 && c.Len() != t.rows {
		return errors.NewDimensionError("Table.Add("+c.Name+")", t.rows, c.Len(), 0)
	}
	t.rows = c.Len()
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	return lo.Map(t.columns, func(c *Column, _ int) string { return c.Name })
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "not found in table", name)
	}
	return t.columns[i], nil
}

// Subset returns a new table containing the given rows in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := NewTable()
	for _, c := range t.columns {
		_ = out.add(c.subset(rows))
	}
	out.rows = len(rows)
	return out
}

// Select returns a table with only the named columns.
func (t *Table) Select(names ...string) (*Table, error) {
	out := NewTable()
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	out := NewTable()
	for _, c := range t.columns {
		if !lo.Contains(names, c.Name) {
			_ = out.add(c)
		}
	}
	out.rows = t.rows
	return out
}

// DropMissing returns the rows with no missing value in the given columns
// (all columns when none are given) and the number of rows removed.
func (t *Table) DropMissing(names ...string) (*Table, int) {
	cols := t.columns
	if len(names) > 0 {
		cols = lo.Filter(t.columns, func(c *Column, _ int) bool { return lo.Contains(names, c.Name) })
	}
	keep := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if !lo.SomeBy(cols, func(c *Column) bool { return c.IsMissing(i) }) {
			keep = append(keep, i)
		}
	}
	return t.Subset(keep), t.rows - len(keep)
}
