// Package percentile computes point-in-time percentile ranks against a
// value's own trailing history. The current observation is always excluded
// from its reference set so a rank at index i is reproducible no matter how
// much future data is later appended.
package percentile

import "math"

// MinSamples is the minimum number of historical observations required for
// a meaningful rank. Below it Rank returns NeutralRank instead of erroring.
const MinSamples = 30

// NeutralRank is the fallback rank during warm-up.
const NeutralRank = 50.0

// Rank returns the percentile rank (0-100) of values[index] among the
// trailing window values[max(0,index-window):index]. The observation at
// index itself is never part of the reference set. NaN entries in the
// window are skipped; a NaN at index, or fewer than MinSamples valid
// reference points, yields NeutralRank.
func Rank(values []float64, index, window int) float64 {
	if index < 0 || index >= len(values) || window <= 0 {
		return NeutralRank
	}
	v := values[index]
	if math.IsNaN(v) {
		return NeutralRank
	}

	start := index - window
	if start < 0 {
		start = 0
	}

	below, n := 0, 0
	for i := start; i < index; i++ {
		ref := values[i]
		if math.IsNaN(ref) {
			continue
		}
		if ref < v {
			below++
		}
		n++
	}
	if n < MinSamples {
		return NeutralRank
	}
	return float64(below) / float64(n) * 100.0
}
