// Package experiment runs a complete model-selection report: load or
// generate the dataset, split it, build the fold set, resample or tune every
// enabled model, finalize each one on the held-out test piece and aggregate
// the results.
package experiment

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/churnsel/config"
	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/pkg/telemetry"
	"github.com/YuminosukeSato/churnsel/report"
	ms "github.com/YuminosukeSato/churnsel/sklearn/model_selection"
)

// Runner executes one configured run.
type Runner struct {
	cfg       *config.Config
	logger    log.Logger
	telemetry *telemetry.Recorder
	data      *dataset.Dataset
	runID     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTelemetry sets the recorder. The default is a fresh recorder on its
// own registry labelled with the run ID.
func WithTelemetry(t *telemetry.Recorder) Option {
	return func(r *Runner) { r.telemetry = t }
}

// WithDataset uses ds instead of the dataset section of the config.
func WithDataset(ds *dataset.Dataset) Option {
	return func(r *Runner) { r.data = ds }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// New validates cfg and returns a Runner.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("config", "is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewNopLogger()
	}
	if r.telemetry == nil {
		r.telemetry = telemetry.NewRecorder(telemetry.WithConstLabels(map[string]string{"run_id": r.runID}))
	}
	r.logger = r.logger.With(log.RunIDKey, r.runID)
	return r, nil
}

// RunID returns the identifier shared by the logs, telemetry and report.
func (r *Runner) RunID() string { return r.runID }

// Telemetry returns the recorder fed by the evaluator.
func (r *Runner) Telemetry() *telemetry.Recorder { return r.telemetry }

// Result carries the report and the intermediate values it was built from.
type Result struct {
	Report *report.Report
	Split  *ms.Split
	Folds  *ms.FoldSet
	Tuning map[string]*ms.TuneResult
	Final  map[string]*ms.FinalResult
}

// Run executes the pipeline. The test piece is only read by Finalize, after
// every model's configuration has been fixed on the training folds. Any
// structural failure aborts the run with a StageError naming the stage and
// model.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := r.cfg

	plans, err := Plans(cfg)
	if err != nil {
		return nil, err
	}

	ds, err := r.loadData()
	if err != nil {
		return nil, errors.NewStageError(errors.StageSplit, "", "", -1, err)
	}
	r.logger.Info("dataset ready",
		log.SamplesKey, ds.Len(),
		log.RandomSeedKey, cfg.Seed,
	)

	split, err := ms.TrainTestSplit(ds.All(), cfg.Split.TrainFraction, cfg.Seed)
	if err != nil {
		return nil, errors.NewStageError(errors.StageSplit, "", "", -1, err)
	}
	folds, err := ms.MakeFolds(split.Train, cfg.CV.Folds, cfg.Seed)
	if err != nil {
		return nil, errors.NewStageError(errors.StageSplit, "", "", -1, err)
	}

	agg := report.NewAggregator(cfg.Seed,
		report.WithRunID(r.runID),
		report.WithMetricOrder(cfg.Metrics),
	)
	for _, part := range []struct {
		name string
		view dataset.View
	}{
		{"all", ds.All()},
		{"train", split.Train},
		{"test", split.Test},
	} {
		b := dataset.Balance(part.view)
		agg.SetClassBalance(part.name, b)
		r.logger.Info("class balance", log.StageKey, errors.StageSplit, "split", part.name, "balance", b)
	}

	evaluator := ms.NewEvaluator(cfg.PreprocessingRecipe(), cfg.Metrics)
	if cfg.CV.Workers > 0 {
		evaluator.Workers = cfg.CV.Workers
	} else {
		evaluator.Workers = runtime.NumCPU()
	}
	evaluator.Logger = r.logger
	evaluator.Telemetry = r.telemetry
	tuner := ms.NewTuner(evaluator)

	res := &Result{
		Split:  split,
		Folds:  folds,
		Tuning: make(map[string]*ms.TuneResult),
		Final:  make(map[string]*ms.FinalResult),
	}
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "run")
		}
		name := plan.Candidate.Name()

		var params model.Params
		if plan.Tuned() {
			tr, err := tuner.Tune(ctx, plan.Candidate, plan.Grid, folds, cfg.SelectionMetric)
			if err != nil {
				return nil, err
			}
			if err := agg.AddTuning(name, tr, plan.Param, cfg.SelectionMetric); err != nil {
				return nil, err
			}
			res.Tuning[name] = tr
			params = tr.Best
		} else {
			rs, err := evaluator.Evaluate(ctx, plan.Candidate, folds)
			if err != nil {
				return nil, errors.NewStageError(errors.StageFold, name, plan.Candidate.Params.String(), -1, err)
			}
			if err := agg.AddResamples(name, rs, cfg.Metrics); err != nil {
				return nil, err
			}
			sel := ms.Summarize(rs, cfg.Metrics).Metrics[cfg.SelectionMetric]
			r.logger.Info("model resampled",
				log.ModelNameKey, name,
				log.ConfigKey, rs.ConfigID,
				log.MetricNameKey, cfg.SelectionMetric,
				log.MetricValueKey, sel.Mean,
			)
			params = rs.Params
		}

		final, err := evaluator.Finalize(ctx, plan.Candidate, params, split)
		if err != nil {
			return nil, err
		}
		if err := agg.AddFinal(name, final); err != nil {
			return nil, err
		}
		res.Final[name] = final
	}

	res.Report = agg.Build()
	r.logger.Info("run finished",
		"models", len(plans),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (r *Runner) loadData() (*dataset.Dataset, error) {
	if r.data != nil {
		return r.data, nil
	}
	if r.cfg.Dataset.Path != "" {
		return dataset.LoadCSVFile(r.cfg.Dataset.Path, r.cfg.Schema())
	}
	return dataset.Synthetic(r.cfg.Dataset.SyntheticRows, r.cfg.Seed)
}
