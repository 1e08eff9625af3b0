package report

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// PlotROC draws the test-set ROC curve of every model that has one, with
// the chance diagonal, and saves it to path. The image format follows the
// file extension.
func (r *Report) PlotROC(path string) error {
	p := plot.New()
	p.Title.Text = "ROC curves (test set)"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	p.Legend.Left = false

	var drawn int
	for i, m := range r.Models {
		if len(m.ROC) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(m.ROC))
		for j, pt := range m.ROC {
			pts[j].X = pt.FPR
			pts[j].Y = pt.TPR
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "roc line for %s", m.Model)
		}
		l.Color = plotutil.Color(i)
		l.LineStyle.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(m.Model+" (AUC "+formatFloat(m.ROCArea)+")", l)
		drawn++
	}
	if drawn == 0 {
		return errors.NewValueError("PlotROC", "no model has a ROC curve")
	}

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "roc diagonal")
	}
	diag.Dashes = plotutil.Dashes(1)
	diag.Color = plotutil.Color(7)
	p.Add(diag)

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save roc plot %s", path)
	}
	return nil
}

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// PlotTuning draws the resampled mean ± one standard error of the tuning
// metric against the tuned parameter for model and saves it to path.
// Configurations without a finite mean are left out. A non-numeric
// parameter is plotted against the configuration index.
func (r *Report) PlotTuning(model, path string) error {
	var t *Tuning
	for i := range r.Tuning {
		if r.Tuning[i].Model == model {
			t = &r.Tuning[i]
			break
		}
	}
	if t == nil {
		return errors.NewValueError("PlotTuning", "no tuning recorded for "+model)
	}

	var data errorPoints
	for i, c := range t.Configs {
		mean := lookup(c.Mean, t.Metric)
		if mean.IsNaN() {
			continue
		}
		x := float64(c.Value)
		if c.Value.IsNaN() {
			x = float64(i + 1)
		}
		se := float64(lookup(c.StdErr, t.Metric))
		if math.IsNaN(se) {
			se = 0
		}
		data.XYs = append(data.XYs, plotter.XY{X: x, Y: float64(mean)})
		data.YErrors = append(data.YErrors, struct{ Low, High float64 }{se, se})
	}
	if len(data.XYs) == 0 {
		return errors.NewValueError("PlotTuning", "no configuration of "+model+" has a finite "+t.Metric)
	}

	p := plot.New()
	p.Title.Text = "Tuning " + model
	p.X.Label.Text = t.Param
	p.Y.Label.Text = t.Metric + " (resampled mean ± SE)"

	line, points, err := plotter.NewLinePoints(data.XYs)
	if err != nil {
		return errors.Wrap(err, "tuning line")
	}
	line.Color = plotutil.Color(0)
	points.Color = plotutil.Color(0)
	bars, err := plotter.NewYErrorBars(data)
	if err != nil {
		return errors.Wrap(err, "tuning error bars")
	}
	p.Add(line, points, bars)

	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save tuning plot %s", path)
	}
	return nil
}
