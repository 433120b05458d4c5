package sampling

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Zipf draws vocabulary indices for negative sampling with probability mass
// proportional to 1/k^s, where k is the 1-based frequency rank of the word.
// The vocabulary must already be ordered by descending frequency so that
// index i has rank i+1.
type Zipf struct {
	cat distuv.Categorical
}

// NewZipf builds the sampling distribution over nRanks ranks with the given
// exponent. Normalization by the generalized harmonic sum over the ranks is
// handled by the categorical distribution. The source determines the draw
// sequence; per-worker sources seeded from the global seed plus a worker
// identity make runs reproducible.
func NewZipf(nRanks int, exponent float64, src rand.Source) Zipf {
	w := make([]float64, nRanks)
	for k := range w {
		w[k] = 1 / math.Pow(float64(k+1), exponent)
	}
	return Zipf{cat: distuv.NewCategorical(w, src)}
}

// Draw returns one index in [0, nRanks).
func (z Zipf) Draw() int {
	return int(z.cat.Rand())
}
