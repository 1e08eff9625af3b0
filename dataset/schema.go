// Package dataset holds the tabular input of a churn analysis: a fixed
// schema of numeric and categorical fields plus a binary outcome, and
// index-based views over the rows that never copy values.
package dataset

import (
	"slices"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Schema describes the fields of a Dataset.
type Schema struct {
	Numeric     []string `json:"numeric" koanf:"numeric"`
	Categorical []string `json:"categorical" koanf:"categorical"`
	Outcome     string   `json:"outcome" koanf:"outcome"`
	// Positive is the outcome label encoded as 1 (for example "yes" = cancelled).
	Positive string `json:"positive" koanf:"positive"`
}

// Fields returns numeric then categorical field names.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.Numeric)+len(s.Categorical))
	out = append(out, s.Numeric...)
	return append(out, s.Categorical...)
}

// Equal reports whether both schemas name the same fields in the same order
// and agree on the outcome encoding.
func (s Schema) Equal(o Schema) bool {
	return slices.Equal(s.Numeric, o.Numeric) &&
		slices.Equal(s.Categorical, o.Categorical) &&
		s.Outcome == o.Outcome &&
		s.Positive == o.Positive
}

// Validate checks that the schema names at least one feature, that names are
// unique and that the outcome is not also a feature.
func (s Schema) Validate() error {
	if len(s.Numeric)+len(s.Categorical) == 0 {
		return errors.NewValidationError("schema", "at least one numeric or categorical field is required", nil)
	}
	if s.Outcome == "" {
		return errors.NewValidationError("schema.outcome", "must not be empty", s.Outcome)
	}
	if s.Positive == "" {
		return errors.NewValidationError("schema.positive", "must not be empty", s.Positive)
	}
	seen := make(map[string]struct{}, len(s.Numeric)+len(s.Categorical)+1)
	seen[s.Outcome] = struct{}{}
	for _, f := range s.Fields() {
		if f == "" {
			return errors.NewValidationError("schema", "field names must not be empty", f)
		}
		if _, dup := seen[f]; dup {
			return errors.NewValidationError("schema", "duplicate field name", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}
