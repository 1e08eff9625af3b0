package dataset

import (
	"math"

	"github.com/rs/zerolog"
)

// ClassBalance summarises outcome counts for a view.
type ClassBalance struct {
	Total        int     `json:"total"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
	PositiveRate float64 `json:"positive_rate"`
}

// Balance counts outcomes in v. PositiveRate is NaN for an empty view.
func Balance(v View) ClassBalance {
	b := ClassBalance{Total: v.Len(), PositiveRate: math.NaN()}
	for pos := 0; pos < v.Len(); pos++ {
		if v.Outcome(pos) == 1 {
			b.Positive++
		}
	}
	b.Negative = b.Total - b.Positive
	if b.Total > 0 {
		b.PositiveRate = float64(b.Positive) / float64(b.Total)
	}
	return b
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (b ClassBalance) MarshalZerologObject(e *zerolog.Event) {
	e.Int("total", b.Total).
		Int("positive", b.Positive).
		Int("negative", b.Negative).
		Float64("positive_rate", b.PositiveRate)
}
