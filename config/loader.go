package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CHURNSEL_"
	// EnvConfigPath names the YAML file used when Load gets no path.
	EnvConfigPath = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, an optional file and env vars,
// then validates it.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file at path, or at $CHURNSEL_CONFIG when path is empty
//  3. env (prefix CHURNSEL_, "__" separates nested keys:
//     CHURNSEL_CV__FOLDS=10, CHURNSEL_MODELS__KNN__NEIGHBORS=1,3,5)
func Load(ctx context.Context, path string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "load %s", path), ErrLoadConfig)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", envValue)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "load environment"), ErrLoadConfig)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode config"), ErrLoadConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys are decoded from comma-separated env values.
var listKeys = map[string]bool{
	"metrics":              true,
	"models.knn.neighbors": true,
	"dataset.numeric":      true,
	"dataset.categorical":  true,
}

// envValue maps the key with envKey and splits list values on commas:
// CHURNSEL_METRICS=accuracy,roc_auc -> metrics: [accuracy roc_auc].
func envValue(key, value string) (string, interface{}) {
	key = envKey(key)
	if !listKeys[key] {
		return key, value
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return key, items
}

// envKey maps CHURNSEL_MODELS__KNN__ENABLED to models.knn.enabled.
// Single underscores are kept to match the koanf tags.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
