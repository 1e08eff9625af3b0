// Package config defines the run configuration of a model-selection report
// and loads it from defaults, an optional YAML file and the environment.
package config

import (
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/preprocessing"
	"github.com/YuminosukeSato/churnsel/sklearn/linear_model"
)

// Config contains one run's configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Seed drives the train/test split, the folds and every stochastic model.
	Seed uint64 `koanf:"seed"`

	Dataset DatasetConfig `koanf:"dataset"`
	Split   SplitConfig   `koanf:"split"`
	CV      CVConfig      `koanf:"cv"`

	// Metrics lists the metrics computed on every fold and on the test set.
	Metrics []string `koanf:"metrics"`

	// SelectionMetric picks the best tuning configuration. It must be in Metrics.
	SelectionMetric string `koanf:"selection_metric"`

	Recipe RecipeConfig `koanf:"recipe"`
	Models ModelsConfig `koanf:"models"`
	Output OutputConfig `koanf:"output"`
}

// DatasetConfig points at a CSV file. An empty Path selects the synthetic
// generator with SyntheticRows rows.
type DatasetConfig struct {
	Path          string   `koanf:"path"`
	Numeric       []string `koanf:"numeric"`
	Categorical   []string `koanf:"categorical"`
	Outcome       string   `koanf:"outcome"`
	Positive      string   `koanf:"positive"`
	SyntheticRows int      `koanf:"synthetic_rows"`
}

// SplitConfig configures the stratified train/test split.
type SplitConfig struct {
	TrainFraction float64 `koanf:"train_fraction"`
}

// CVConfig configures k-fold resampling.
type CVConfig struct {
	Folds int `koanf:"folds"`
	// Workers bounds concurrent folds; 0 means one per CPU.
	Workers int `koanf:"workers"`
}

// RecipeConfig mirrors preprocessing.Recipe.
type RecipeConfig struct {
	PowerTransform bool   `koanf:"power_transform"`
	Scaling        string `koanf:"scaling"`
	Encoding       string `koanf:"encoding"`
	Unknown        string `koanf:"unknown"`
}

// ModelsConfig enables and parameterises each model family.
type ModelsConfig struct {
	Logistic     LogisticConfig `koanf:"logistic"`
	RDA          RDAConfig      `koanf:"rda"`
	KNN          KNNConfig      `koanf:"knn"`
	RandomForest ForestConfig   `koanf:"random_forest"`
}

// LogisticConfig configures logistic regression.
type LogisticConfig struct {
	Enabled bool    `koanf:"enabled"`
	C       float64 `koanf:"c"`
}

// RDAConfig configures regularized discriminant analysis.
type RDAConfig struct {
	Enabled       bool    `koanf:"enabled"`
	FracCommonCov float64 `koanf:"frac_common_cov"`
	FracIdentity  float64 `koanf:"frac_identity"`
}

// KNNConfig configures k-nearest-neighbors. More than one value in
// Neighbors turns evaluation into a grid search.
type KNNConfig struct {
	Enabled   bool  `koanf:"enabled"`
	Neighbors []int `koanf:"neighbors"`
}

// ForestConfig configures the random forest. MaxFeatures 0 means floor(sqrt(p)).
type ForestConfig struct {
	Enabled        bool `koanf:"enabled"`
	NEstimators    int  `koanf:"n_estimators"`
	MaxFeatures    int  `koanf:"max_features"`
	MinSamplesLeaf int  `koanf:"min_samples_leaf"`
}

// OutputConfig selects where and what the report writes.
type OutputConfig struct {
	Dir   string `koanf:"dir"`
	Plots bool   `koanf:"plots"`
}

// New returns the default configuration: synthetic data, a 75/25 split,
// 5-fold CV, three enabled families and KNN tuned over {1,3,5,7,9} by ROC AUC.
func New() *Config {
	schema := dataset.SyntheticSchema()
	return &Config{
		LogLevel: "info",
		Seed:     123,
		Dataset: DatasetConfig{
			Numeric:       schema.Numeric,
			Categorical:   schema.Categorical,
			Outcome:       schema.Outcome,
			Positive:      schema.Positive,
			SyntheticRows: 1000,
		},
		Split: SplitConfig{TrainFraction: 0.75},
		CV:    CVConfig{Folds: 5},
		Metrics: []string{
			metrics.NameAccuracy,
			metrics.NameKappa,
			metrics.NameSensitivity,
			metrics.NameSpecificity,
			metrics.NameROCAUC,
		},
		SelectionMetric: metrics.NameROCAUC,
		Recipe: RecipeConfig{
			PowerTransform: true,
			Scaling:        string(preprocessing.ScalingStandard),
			Encoding:       string(preprocessing.EncodingDummy),
			Unknown:        string(preprocessing.UnknownBucket),
		},
		Models: ModelsConfig{
			Logistic: LogisticConfig{Enabled: true, C: linear_model.DefaultC},
			RDA:      RDAConfig{Enabled: true, FracCommonCov: 1, FracIdentity: 0},
			KNN:      KNNConfig{Enabled: true, Neighbors: []int{1, 3, 5, 7, 9}},
			RandomForest: ForestConfig{
				NEstimators:    500,
				MinSamplesLeaf: 1,
			},
		},
		Output: OutputConfig{Dir: "out", Plots: true},
	}
}

// Schema returns the dataset schema described by the config.
func (c *Config) Schema() dataset.Schema {
	return dataset.Schema{
		Numeric:     append([]string(nil), c.Dataset.Numeric...),
		Categorical: append([]string(nil), c.Dataset.Categorical...),
		Outcome:     c.Dataset.Outcome,
		Positive:    c.Dataset.Positive,
	}
}

// PreprocessingRecipe converts the recipe section.
func (c *Config) PreprocessingRecipe() *preprocessing.Recipe {
	return &preprocessing.Recipe{
		PowerTransform: c.Recipe.PowerTransform,
		Scaling:        preprocessing.Scaling(c.Recipe.Scaling),
		Encoding:       preprocessing.Encoding(c.Recipe.Encoding),
		Unknown:        preprocessing.UnknownPolicy(c.Recipe.Unknown),
	}
}

// Level parses LogLevel. Validate rejects unknown names.
func (c *Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}

// Validate reports every invalid field at once. The returned error matches
// ErrInvalidConfig and each ValidationError can be extracted with errors.As.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, param, reason string, value any) {
		if !ok {
			errs = append(errs, errors.NewValidationError(param, reason, value))
		}
	}

	_, ok := log.ParseLevel(c.LogLevel)
	check(ok, "log_level", "must be debug, info, warn or error", c.LogLevel)

	if c.Dataset.Path == "" {
		check(c.Dataset.SyntheticRows >= 2, "dataset.synthetic_rows", "must be at least 2", c.Dataset.SyntheticRows)
	} else if err := c.Schema().Validate(); err != nil {
		errs = append(errs, err)
	}

	f := c.Split.TrainFraction
	check(f > 0 && f < 1, "split.train_fraction", "must be in (0, 1)", f)
	check(c.CV.Folds >= 2, "cv.folds", "must be at least 2", c.CV.Folds)
	check(c.CV.Workers >= 0, "cv.workers", "must not be negative", c.CV.Workers)

	if len(c.Metrics) == 0 {
		check(false, "metrics", "must name at least one metric", c.Metrics)
	} else if err := metrics.Validate(c.Metrics); err != nil {
		errs = append(errs, err)
	}
	check(contains(c.Metrics, c.SelectionMetric), "selection_metric", "must be one of metrics", c.SelectionMetric)

	if err := c.PreprocessingRecipe().Validate(); err != nil {
		errs = append(errs, err)
	}

	m := c.Models
	check(m.Logistic.Enabled || m.RDA.Enabled || m.KNN.Enabled || m.RandomForest.Enabled,
		"models", "at least one model must be enabled", nil)
	if m.Logistic.Enabled {
		check(m.Logistic.C > 0, "models.logistic.c", "must be positive", m.Logistic.C)
	}
	if m.RDA.Enabled {
		check(inUnit(m.RDA.FracCommonCov), "models.rda.frac_common_cov", "must be in [0, 1]", m.RDA.FracCommonCov)
		check(inUnit(m.RDA.FracIdentity), "models.rda.frac_identity", "must be in [0, 1]", m.RDA.FracIdentity)
	}
	if m.KNN.Enabled {
		check(len(m.KNN.Neighbors) > 0, "models.knn.neighbors", "must list at least one value", m.KNN.Neighbors)
		for _, k := range m.KNN.Neighbors {
			check(k >= 1, "models.knn.neighbors", "values must be at least 1", k)
		}
	}
	if m.RandomForest.Enabled {
		rf := m.RandomForest
		check(rf.NEstimators >= 1, "models.random_forest.n_estimators", "must be at least 1", rf.NEstimators)
		check(rf.MaxFeatures >= 0, "models.random_forest.max_features", "must not be negative", rf.MaxFeatures)
		check(rf.MinSamplesLeaf >= 1, "models.random_forest.min_samples_leaf", "must be at least 1", rf.MinSamplesLeaf)
	}

	check(c.Output.Dir != "", "output.dir", "must not be empty", c.Output.Dir)

	if len(errs) == 0 {
		return nil
	}
	return errors.Mark(errors.Join(errs...), ErrInvalidConfig)
}

func inUnit(x float64) bool { return x >= 0 && x <= 1 }

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
