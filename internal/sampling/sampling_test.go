package sampling

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestZipf_Range(t *testing.T) {
	z := NewZipf(100, 0.5, rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		k := z.Draw()
		if k < 0 || k >= 100 {
			t.Fatalf("draw %d out of range [0, 100)", k)
		}
	}
}

func TestZipf_Deterministic(t *testing.T) {
	a := NewZipf(50, 0.5, rand.NewPCG(7, 11))
	b := NewZipf(50, 0.5, rand.NewPCG(7, 11))
	for i := 0; i < 1000; i++ {
		if x, y := a.Draw(), b.Draw(); x != y {
			t.Fatalf("draw %d differs for identical seeds: %d vs %d", i, x, y)
		}
	}
}

func TestZipf_Distribution(t *testing.T) {
	const (
		nRanks   = 1000
		exponent = 0.5
		draws    = 1_000_000
	)

	z := NewZipf(nRanks, exponent, rand.NewPCG(42, 0))
	counts := make([]int, nRanks)
	for i := 0; i < draws; i++ {
		counts[z.Draw()]++
	}

	// Normalization: generalized harmonic sum over the ranks.
	var h float64
	for k := 1; k <= nRanks; k++ {
		h += 1 / math.Pow(float64(k), exponent)
	}

	// Every rank must track p(k) = 1/(k^s · H). The tolerance is 5% relative
	// with a sampling-noise floor for sparsely hit tail ranks.
	for k := 0; k < nRanks; k++ {
		expected := draws / (math.Pow(float64(k+1), exponent) * h)
		tolerance := 0.05 * expected
		if floor := 5 * math.Sqrt(expected); tolerance < floor {
			tolerance = floor
		}
		if diff := math.Abs(float64(counts[k]) - expected); diff > tolerance {
			t.Errorf("rank %d: expected ~%.0f draws, got %d (tolerance %.0f)",
				k+1, expected, counts[k], tolerance)
		}
	}

	// Rank 1 must dominate rank 1000 by roughly sqrt(1000).
	ratio := float64(counts[0]) / float64(counts[nRanks-1])
	if ratio < 20 || ratio > 50 {
		t.Errorf("expected rank 1 / rank 1000 draw ratio near %.1f, got %.1f",
			math.Sqrt(nRanks), ratio)
	}
}
