package dataset

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// SyntheticSchema is the schema produced by Synthetic: five numeric usage
// fields, one three-level categorical field and a yes/no churn outcome.
func SyntheticSchema() Schema {
	return Schema{
		Numeric: []string{
			"account_length",
			"voice_mail_messages",
			"day_minutes",
			"eve_minutes",
			"customer_service_calls",
		},
		Categorical: []string{"area_code"},
		Outcome:     "churn",
		Positive:    "yes",
	}
}

var syntheticAreas = []string{"area_code_408", "area_code_415", "area_code_510"}

// Synthetic generates n rows with a balanced outcome (exactly n/2 positives,
// rounded down) in shuffled order. Churners use more day minutes and call
// customer service more often, so the classes are separable but overlap.
func Synthetic(n int, seed uint64) (*Dataset, error) {
	if n < 2 {
		return nil, errors.NewValidationError("n", "synthetic dataset needs at least 2 rows", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	outcome := make([]int, n)
	for i := 0; i < n/2; i++ {
		outcome[i] = 1
	}
	rng.Shuffle(n, func(i, j int) { outcome[i], outcome[j] = outcome[j], outcome[i] })

	account := distuv.Normal{Mu: 100, Sigma: 40, Src: rng}
	voicemail := distuv.Gamma{Alpha: 0.8, Beta: 0.08, Src: rng}
	eve := distuv.Normal{Mu: 200, Sigma: 50, Src: rng}
	dayNeg := distuv.Normal{Mu: 175, Sigma: 50, Src: rng}
	dayPos := distuv.Normal{Mu: 215, Sigma: 60, Src: rng}
	callsNeg := distuv.Poisson{Lambda: 1.4, Src: rng}
	callsPos := distuv.Poisson{Lambda: 2.3, Src: rng}

	numeric := make([][]float64, 5)
	for j := range numeric {
		numeric[j] = make([]float64, n)
	}
	area := make([]string, n)
	for i := 0; i < n; i++ {
		numeric[0][i] = math.Max(1, math.Round(account.Rand()))
		numeric[1][i] = math.Round(voicemail.Rand())
		numeric[3][i] = math.Max(0, eve.Rand())
		if outcome[i] == 1 {
			numeric[2][i] = math.Max(0, dayPos.Rand())
			numeric[4][i] = callsPos.Rand()
		} else {
			numeric[2][i] = math.Max(0, dayNeg.Rand())
			numeric[4][i] = callsNeg.Rand()
		}
		area[i] = syntheticAreas[rng.IntN(len(syntheticAreas))]
	}

	return New(SyntheticSchema(), numeric, [][]string{area}, outcome)
}
