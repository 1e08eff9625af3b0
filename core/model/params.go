package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Params holds hyperparameters keyed by their sklearn-style names.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with override.
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders "k1=v1,k2=v2" with keys sorted. It is used as the
// configuration ID in metric records and reports.
func (p Params) String() string {
	if len(p) == 0 {
		return "default"
	}
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, ",")
}

// Int reads an integer parameter. Whole float64 values are accepted since
// YAML and JSON decode numbers that way.
func (p Params) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, errors.NewValidationError(key, "missing parameter", nil)
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(key, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(key, "must be an integer", v)
	}
}

// Float reads a numeric parameter.
func (p Params) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, errors.NewValidationError(key, "missing parameter", nil)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(key, "must be a number", v)
	}
}

// Uint64 reads a non-negative integer parameter such as a seed.
func (p Params) Uint64(key string) (uint64, error) {
	if v, ok := p[key].(uint64); ok {
		return v, nil
	}
	n, err := p.Int(key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.NewValidationError(key, "must be non-negative", n)
	}
	return uint64(n), nil
}
