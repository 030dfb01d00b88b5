// Package report renders easyfit results as console tables and plots.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/easyfit"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/registry"
	"github.com/YuminosukeSato/easyfit/tune"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// PrintAlgorithms prints the dispatch table.
func PrintAlgorithms(w io.Writer) {
	table := newTable(w, []string{"Algorithm", "Mode", "Engine", "Defaults", "Tunable", "Aliases"})
	for _, r := range registry.Describe() {
		table.Append([]string{r.Name, r.Mode, r.Engine, r.Defaults, r.Tunable, r.Aliases})
	}
	table.Render()
}

// PrintSummary prints the test metrics of every fit. Successful fits come
// first, ranked by the primary metric; failed fits follow with their error.
func PrintSummary(w io.Writer, res *easyfit.Results) error {
	ranked, err := res.Ranked("")
	if err != nil {
		return err
	}
	names := res.Metrics.Names()
	header := append([]string{"#", "Algorithm", "Params"}, names...)
	header = append(header, "Time", "Status")
	table := newTable(w, header)

	for i, f := range ranked {
		row := []string{strconv.Itoa(i + 1), f.Name, f.Params.String()}
		for _, name := range names {
			row = append(row, formatFloat(f.TestMetrics[name]))
		}
		row = append(row, f.Duration.Round(time.Millisecond).String(), "ok")
		table.Append(row)
	}
	for _, f := range res.Failed() {
		row := []string{"-", f.Name, "-"}
		for range names {
			row = append(row, "-")
		}
		row = append(row, f.Duration.Round(time.Millisecond).String(), "failed: "+f.Err.Error())
		table.Append(row)
	}
	table.SetCaption(true, fmt.Sprintf("run %s, %s of %s, %d train / %d test rows",
		res.RunID, res.Mode, res.Target, res.TrainRows, res.TestRows))
	table.Render()
	return nil
}

// PrintTuning prints the n best candidates of a tuning result (all when n
// <= 0) ordered by metric, followed by the notes of failed fits.
func PrintTuning(w io.Writer, res *tune.Result, metric string, n int) error {
	best, err := res.ShowBest(metric, n)
	if err != nil {
		return err
	}
	m := res.Metrics.Primary()
	if metric != "" {
		m, err = metrics.Lookup(metric)
		if err != nil {
			return err
		}
	}
	params := lo.Map(res.Ranges, func(r tune.ParamRange, _ int) string { return r.Name })
	header := append([]string{"#", "Candidate"}, params...)
	header = append(header, "Mean", "Std Err", "N")
	table := newTable(w, header)
	for i, c := range best {
		row := []string{strconv.Itoa(i + 1), c.ID}
		for _, name := range params {
			row = append(row, model.FormatValue(c.Params[name]))
		}
		s := c.Metrics[m.Name]
		row = append(row, formatFloat(s.Mean), formatFloat(s.StdErr), strconv.Itoa(s.N))
		table.Append(row)
	}
	table.SetCaption(true, fmt.Sprintf("%s %s tuning, metric %s", res.Algorithm, res.Type, m.Name))
	table.Render()

	if len(res.Notes) > 0 {
		fmt.Fprintf(w, "%d fits failed:\n", len(res.Notes))
		for _, note := range res.Notes {
			fmt.Fprintf(w, "  %s\n", note.String())
		}
	}
	return nil
}

// PrintConfusion prints the test confusion matrix of a classification fit.
// Rows are the truth, columns the predictions.
func PrintConfusion(w io.Writer, f *easyfit.Fit) error {
	if f.Mode != model.Classification {
		return errors.Wrapf(errors.ErrUnsupportedMode, "%s: confusion matrix needs classification", f.Name)
	}
	if !f.OK() {
		return errors.NewNotFittedError(f.Name, "PrintConfusion")
	}
	cm, err := metrics.ConfusionMatrix(f.Truth, f.Predictions, f.Levels)
	if err != nil {
		return err
	}
	table := newTable(w, append([]string{"Truth \\ Predicted"}, f.Levels...))
	for _, ref := range f.Levels {
		row := []string{ref}
		for _, got := range f.Levels {
			row = append(row, strconv.Itoa(cm[ref][got]))
		}
		table.Append(row)
	}
	table.SetCaption(true, f.Name+": "+strings.Join(lo.Map(f.Levels, func(l string, _ int) string {
		return l + " " + formatFloat(metrics.F1(l, cm))
	}), ", ")+" (F1)")
	table.Render()
	return nil
}
