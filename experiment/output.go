package experiment

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
)

// Output file names inside the output directory.
const (
	TablesFile  = "report.txt"
	JSONFile    = "report.json"
	ROCFile     = "roc.png"
	MetricsFile = "metrics.prom"
)

// TuningPlotFile is the tuning curve file name of model.
func TuningPlotFile(model string) string { return "tuning_" + model + ".png" }

// Write renders res into the configured output directory and returns the
// written paths. Plots are skipped when output.plots is false; the ROC plot
// is also skipped when no model has a curve.
func (r *Runner) Write(res *Result) ([]string, error) {
	if res == nil || res.Report == nil {
		return nil, errors.NewValidationError("result", "has no report", nil)
	}
	dir := r.cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", dir)
	}
	rep := res.Report
	var written []string

	tables := filepath.Join(dir, TablesFile)
	f, err := os.Create(tables)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", tables)
	}
	if err := rep.WriteTables(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrapf(err, "close %s", tables)
	}
	written = append(written, tables)

	path := filepath.Join(dir, JSONFile)
	if err := rep.Save(path); err != nil {
		return nil, err
	}
	written = append(written, path)

	if r.cfg.Output.Plots {
		hasROC := false
		for _, m := range rep.Models {
			hasROC = hasROC || len(m.ROC) > 0
		}
		if hasROC {
			path := filepath.Join(dir, ROCFile)
			if err := rep.PlotROC(path); err != nil {
				return nil, err
			}
			written = append(written, path)
		}
		for _, t := range rep.Tuning {
			if t.Param == "" {
				continue
			}
			path := filepath.Join(dir, TuningPlotFile(t.Model))
			if err := rep.PlotTuning(t.Model, path); err != nil {
				return nil, err
			}
			written = append(written, path)
		}
	}

	path = filepath.Join(dir, MetricsFile)
	if err := r.telemetry.WriteTextfile(path); err != nil {
		return nil, err
	}
	written = append(written, path)

	r.logger.Info("report written", "dir", dir, "files", len(written))
	for _, p := range written {
		r.logger.Debug("output file", "path", p, log.OperationKey, "write")
	}
	return written, nil
}
