package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// WriteTables renders the report as aligned plain-text tables: class
// balance, per-fold and averaged tuning metrics, final metrics and the
// confusion matrix of every model.
func (r *Report) WriteTables(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (seed %d)\n\n", r.RunID, r.Seed)

	if len(r.Balance) > 0 {
		fmt.Fprintln(tw, "Class balance")
		fmt.Fprintln(tw, "split\ttotal\tpositive\tnegative\tpositive rate\t")
		for _, b := range r.Balance {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n",
				b.Split, b.Total, b.Positive, b.Negative, formatFloat(b.PositiveRate))
		}
		fmt.Fprintln(tw)
	}

	for _, t := range r.Tuning {
		r.writeTuning(tw, t)
	}

	if len(r.Models) > 0 {
		fmt.Fprintln(tw, "Test set metrics")
		fmt.Fprintf(tw, "model\tconfig\t%s\t\n", strings.Join(r.Metrics, "\t"))
		for _, m := range r.Models {
			fmt.Fprintf(tw, "%s\t%s\t", m.Model, m.ConfigID)
			for _, name := range r.Metrics {
				v, ok := m.Metrics[name]
				if !ok {
					fmt.Fprint(tw, "-\t")
					continue
				}
				fmt.Fprintf(tw, "%s\t", formatFloat(v))
			}
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw)

		for _, m := range r.Models {
			c := m.Confusion
			fmt.Fprintf(tw, "Confusion matrix: %s (threshold 0.5)\n", m.Model)
			fmt.Fprintln(tw, "\ttruth=1\ttruth=0\t")
			fmt.Fprintf(tw, "pred=1\t%d\t%d\t\n", c.TP, c.FP)
			fmt.Fprintf(tw, "pred=0\t%d\t%d\t\n", c.FN, c.TN)
			fmt.Fprintln(tw)
		}
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "write report tables")
	}
	return nil
}

func (r *Report) writeTuning(tw *tabwriter.Writer, t Tuning) {
	if t.Param == "" {
		fmt.Fprintf(tw, "Resampling %s (%s)\n", t.Model, t.Best)
	} else {
		fmt.Fprintf(tw, "Tuning %s over %s (selected by %s)\n", t.Model, t.Param, t.Metric)
	}
	fmt.Fprintf(tw, "config\tfold\t%s\t\n", strings.Join(r.Metrics, "\t"))
	for _, f := range t.Folds {
		fmt.Fprintf(tw, "%s\t%d\t", f.ConfigID, f.Fold)
		for _, name := range r.Metrics {
			fmt.Fprintf(tw, "%s\t", formatFloat(lookup(f.Values, name)))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "config\t%s\t\n", strings.Join(r.Metrics, "\t"))
	for i, c := range t.Configs {
		marker := ""
		if i == t.BestIndex && t.Param != "" {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t", c.ConfigID, marker)
		for _, name := range r.Metrics {
			fmt.Fprintf(tw, "%s ± %s (n=%d)\t",
				formatFloat(lookup(c.Mean, name)), formatFloat(lookup(c.StdErr, name)), c.N[name])
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)
}

func lookup(m map[string]Float, key string) Float {
	v, ok := m[key]
	if !ok {
		return Float(math.NaN())
	}
	return v
}
