package percentile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ascending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestRankExcludesCurrentObservation(t *testing.T) {
	// 40 historical points 0..39, current value 100 ranks above all of them.
	values := append(ascending(40), 100)
	rank := Rank(values, 40, 504)
	assert.InDelta(t, 100.0, rank, 1e-9)

	// A current value equal to the window maximum must not count itself:
	// 39 of 40 reference points are below 39.
	values = append(ascending(40), 39)
	rank = Rank(values, 40, 504)
	assert.InDelta(t, float64(39)/40*100, rank, 1e-9)
}

func TestRankNeutralOnShortHistory(t *testing.T) {
	values := ascending(MinSamples) // MinSamples-1 reference points at the last index
	assert.Equal(t, NeutralRank, Rank(values, len(values)-1, 504))

	values = append(ascending(MinSamples), 999)
	assert.NotEqual(t, NeutralRank, Rank(values, MinSamples, 504)) // exactly MinSamples refs
}

func TestRankTrailingWindowOnly(t *testing.T) {
	// Large early values fall outside a window of 10 and must not count.
	values := []float64{1000, 1000, 1000, 1000, 1000}
	values = append(values, ascending(40)...)
	idx := len(values) - 1 // value 39, window covers only ascending tail
	rank := Rank(values, idx, 10)
	// Window of 10 has fewer than MinSamples points -> neutral.
	assert.Equal(t, NeutralRank, rank)

	rank = Rank(values, idx, 35)
	assert.InDelta(t, 100.0, rank, 1e-9)
}

func TestRankSkipsNaN(t *testing.T) {
	values := ascending(45)
	values[3] = math.NaN()
	values[17] = math.NaN()
	rank := Rank(values, 44, 504)
	// 42 valid reference points, all below 44.
	assert.InDelta(t, 100.0, rank, 1e-9)

	values[44] = math.NaN()
	assert.Equal(t, NeutralRank, Rank(values, 44, 504))
}

func TestRankNoLookAhead(t *testing.T) {
	base := ascending(80)
	extended := append(append([]float64{}, base...), 1e6, -1e6, 42)

	for i := 35; i < len(base); i++ {
		assert.Equal(t, Rank(base, i, 50), Rank(extended, i, 50),
			"rank at index %d changed when future data was appended", i)
	}
}
