// Command churnreport runs the cross-validated churn model-selection report.
//
// Usage:
//
//	churnreport [-config churnsel.yaml] [-data churn.csv | -synthetic 1000] [-out out] [-pretty]
//
// Configuration is layered defaults → YAML → CHURNSEL_* environment; flags
// override the dataset and output sections last.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/churnsel/config"
	"github.com/YuminosukeSato/churnsel/experiment"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	dataPath := flag.String("data", "", "CSV dataset, overrides dataset.path")
	synthetic := flag.Int("synthetic", 0, "generate N synthetic rows instead of reading a CSV")
	outDir := flag.String("out", "", "output directory, overrides output.dir")
	pretty := flag.Bool("pretty", false, "human-readable console logs instead of JSON")
	flag.Parse()

	// 致命的エラーはslog経由でスタックトレース付きで出力する
	log.SetupLogger(os.Stderr, "info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *dataPath != "" && *synthetic > 0 {
		slog.Error("invalid flags", log.ErrAttr(errors.New("-data and -synthetic are mutually exclusive")))
		return 2
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		slog.Error("load config", log.ErrAttr(err))
		return 1
	}
	if *dataPath != "" {
		cfg.Dataset.Path = *dataPath
	}
	if *synthetic > 0 {
		cfg.Dataset.Path = ""
		cfg.Dataset.SyntheticRows = *synthetic
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	log.SetupLogger(os.Stderr, cfg.LogLevel)

	logger := log.NewZerologLogger(os.Stderr, cfg.Level())
	if *pretty {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
		logger = log.FromZerolog(zl)
	}
	logger = logger.With(log.ComponentKey, "churnreport")
	log.InstallWarnings(logger)
	defer log.InstallWarnings(nil)

	runner, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		slog.Error("invalid config", log.ErrAttr(err))
		return 1
	}
	res, err := runner.Run(ctx)
	if err != nil {
		slog.Error("run failed", log.ErrAttr(err), slog.String(log.RunIDKey, runner.RunID()))
		return 1
	}
	written, err := runner.Write(res)
	if err != nil {
		slog.Error("write report", log.ErrAttr(err), slog.String(log.RunIDKey, runner.RunID()))
		return 1
	}

	if err := res.Report.WriteTables(os.Stdout); err != nil {
		slog.Error("print report", log.ErrAttr(err))
		return 1
	}
	for _, path := range written {
		fmt.Fprintln(os.Stderr, "wrote", path)
	}
	return 0
}
