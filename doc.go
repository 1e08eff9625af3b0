// Package churnsel builds a reproducible, cross-validated model-selection
// report for a binary churn outcome (did the customer cancel the plan).
//
// A run loads a tabular dataset, splits it into a stratified train/test
// pair, assigns the training rows to stratified folds, and then for every
// enabled model family either resamples a fixed configuration or grid-searches
// a tunable one. The chosen configuration of each family is refit once on the
// whole training piece and scored on the untouched test piece. Results are
// rendered as text tables, JSON, ROC and tuning plots, and a Prometheus
// textfile of evaluation telemetry.
//
// # Quick Start
//
// The churnreport command runs everything from a configuration:
//
//	go run ./cmd/churnreport -synthetic 1000 -out out
//
// The same pipeline is available as a library:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/YuminosukeSato/churnsel/config"
//	    "github.com/YuminosukeSato/churnsel/experiment"
//	)
//
//	func main() {
//	    cfg := config.New()
//	    cfg.Models.KNN.Neighbors = []int{1, 3, 5}
//
//	    runner, err := experiment.New(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := runner.Run(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = res.Report.WriteTables(os.Stdout)
//	}
//
// # Packages
//
//   - dataset: schema, immutable rows, index views, CSV loading, synthetic data
//   - preprocessing: Yeo-Johnson, scaling and dummy encoding fitted per fold
//   - metrics: confusion-matrix metrics, ROC AUC, log loss, Brier score
//   - sklearn/linear_model, sklearn/discriminant_analysis, sklearn/neighbors,
//     sklearn/tree, sklearn/ensemble: the candidate classifiers
//   - sklearn/model_selection: split, folds, candidates, evaluator, tuner, finalize
//   - report: aggregation, tables, plots and JSON persistence
//   - config, experiment, cmd/churnreport: configuration and orchestration
//   - core/model, core/parallel: estimator state, params and the worker pool
//   - pkg/errors, pkg/log, pkg/telemetry: errors, logging and Prometheus metrics
//
// # Reproducibility
//
// Every random choice (split, folds, synthetic rows, bootstrap samples) is
// drawn from a math/rand/v2 PCG source seeded from the configured seed, so
// the same seed and data reproduce the same report regardless of how many
// workers evaluate folds in parallel.
package churnsel
