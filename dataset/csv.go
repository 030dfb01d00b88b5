package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// DefaultMissing lists the tokens read as missing values.
var DefaultMissing = []string{"", "NA", "NaN", "nan", "null", "NULL"}

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Missing overrides DefaultMissing.
	Missing []string
	// Categorical forces the named columns to be read as strings.
	Categorical []string
}

// ReadCSVFile reads a CSV file with a header row.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadCSV reads CSV records with a header row. A column is numeric when every
// non-missing value parses as a float, otherwise it is categorical.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}

	missing := opts.Missing
	if missing == nil {
		missing = DefaultMissing
	}
	isMissing := func(s string) bool { return lo.Contains(missing, strings.TrimSpace(s)) }

	header := lo.Map(records[0], func(h string, _ int) string { return strings.TrimSpace(h) })
	body := records[1:]

	t := NewTable()
	for j, name := range header {
		raw := lo.Map(body, func(rec []string, _ int) string { return rec[j] })

		if !lo.Contains(opts.Categorical, name) {
			if values, ok := parseNumeric(raw, isMissing); ok {
				if err := t.AddNumeric(name, values); err != nil {
					return nil, err
				}
				continue
			}
		}
		values := lo.Map(raw, func(s string, _ int) string {
			if isMissing(s) {
				return ""
			}
			return strings.TrimSpace(s)
		})
		if err := t.AddCategorical(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseNumeric(raw []string, isMissing func(string) bool) ([]float64, bool) {
	values := make([]float64, len(raw))
	for i, s := range raw {
		if isMissing(s) {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// WriteCSV writes the table with a header row. Missing values are written as "NA".
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Names()); err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < t.NumRows(); i++ {
		rec := lo.Map(t.columns, func(c *Column, _ int) string {
			switch {
			case c.IsMissing(i):
				return "NA"
			case c.IsCategorical():
				return c.Categorical[i]
			default:
				return strconv.FormatFloat(c.Numeric[i], 'g', -1, 64)
			}
		})
		if err := writer.Write(rec); err != nil {
			return errors.WithStack(err)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}
