package classifier

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tectoniq/seismograph/internal/domain/series"
)

func syntheticSeries(t *testing.T, n int, seed int64) *series.Series {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	bars := make([]series.Bar, n)
	price := 100.0
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price *= 1 + rng.NormFloat64()*0.02
		if price < 1 {
			price = 1
		}
		bars[i] = series.Bar{Date: start.AddDate(0, 0, i), Close: price}
	}
	s, err := series.New("SYN", bars)
	require.NoError(t, err)
	return s
}

// fabricated frame with exactly controlled derived columns, for scenario
// tests that pin sub-scores without hunting for a price path that produces
// them.
func scenarioFrame(volCurrent, devCurrent float64) (*series.Series, *frame, int) {
	n := 101
	bars := make([]series.Bar, n)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = series.Bar{Date: start.AddDate(0, 0, i), Close: 100}
	}
	s, _ := series.New("SCN", bars)

	f := &frame{
		closes: make([]float64, n),
		vol:    make([]float64, n),
		sma:    make([]float64, n),
		devPct: make([]float64, n),
		absDev: make([]float64, n),
	}
	for i := 0; i < n-1; i++ {
		f.vol[i] = float64(i + 1)    // vol reference set 1..100
		f.absDev[i] = float64(i + 1) // extension reference set 1..100
		f.devPct[i] = 1
		f.closes[i] = 100
		f.sma[i] = 100
	}
	idx := n - 1
	f.vol[idx] = volCurrent
	f.devPct[idx] = devCurrent
	f.absDev[idx] = math.Abs(devCurrent)
	f.closes[idx] = 100
	f.sma[idx] = 100
	return s, f, idx
}

func TestRegimeThresholdDeterminism(t *testing.T) {
	tests := []struct {
		criticality float64
		want        Regime
	}{
		{0, RegimeGreen},
		{39, RegimeGreen},
		{39.9, RegimeGreen},
		{40, RegimeYellow},
		{55, RegimeYellow},
		{69.9, RegimeYellow},
		{70, RegimeRed},
		{100, RegimeRed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RegimeFor(tt.criticality, 40, 70), "criticality %.1f", tt.criticality)
	}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.WeightVol = 0.5
	p.WeightTrend = 0.4
	assert.Error(t, p.Validate(), "vol weight below dominance floor")

	p = DefaultParams()
	p.WeightVol = 0.9
	assert.Error(t, p.Validate(), "weights no longer sum to 1")

	p = DefaultParams()
	p.RedThreshold = 30
	assert.Error(t, p.Validate(), "red below yellow")
}

func TestCalmSingleAssetScenario(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	// vol percentile 20, trend UP, extension percentile 50.
	s, f, idx := scenarioFrame(20.5, 50.5)
	state := c.classifyAt(s, f, idx)

	assert.InDelta(t, 20.0, state.VolatilityPercentile, 1e-9)
	assert.Equal(t, TrendUp, state.TrendState)
	assert.InDelta(t, 50.0, state.ExtensionPercentile, 1e-9)
	assert.Equal(t, 14, state.Criticality)
	assert.Equal(t, RegimeGreen, state.Regime)
	assert.Empty(t, state.ReasonCodes)
}

func TestStressedSingleAssetScenario(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	// vol percentile 95, deviation -15% -> trend risk 30.
	s, f, idx := scenarioFrame(95.5, -15)
	state := c.classifyAt(s, f, idx)

	assert.InDelta(t, 95.0, state.VolatilityPercentile, 1e-9)
	assert.Equal(t, TrendDown, state.TrendState)
	// 0.70*95 + 0.20*30 = 72.5, rounds up
	assert.Equal(t, 73, state.Criticality)
	assert.Equal(t, RegimeRed, state.Regime)
	assert.Contains(t, state.ReasonCodes, ReasonVolExtreme)
	assert.Contains(t, state.ReasonCodes, ReasonTrendDown)
	assert.LessOrEqual(t, len(state.ReasonCodes), 4)
}

func TestCriticalityMonotonicInVolatilityPercentile(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	prev := -1
	// Sweep the current volatility through the reference set while trend and
	// extension stay fixed; criticality must never decrease.
	for v := 0.5; v <= 100.5; v += 1.0 {
		s, f, idx := scenarioFrame(v, -5)
		state := c.classifyAt(s, f, idx)
		assert.GreaterOrEqual(t, state.Criticality, prev,
			"criticality decreased at current vol %.1f", v)
		prev = state.Criticality
	}
}

func TestWarmupStateIsNeutral(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	s := syntheticSeries(t, 10, 1)
	state, err := c.Classify(s, 5)
	require.NoError(t, err)

	assert.True(t, state.Warmup)
	assert.Equal(t, 50, state.Criticality)
	assert.Equal(t, RegimeYellow, state.Regime)
	assert.Equal(t, TrendNeutral, state.TrendState)
	assert.Equal(t, []string{ReasonInsufficientData}, state.ReasonCodes)
}

func TestClassifyNeverErrorsOnValidSeries(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	for _, n := range []int{1, 2, 31, 199, 600} {
		s := syntheticSeries(t, n, int64(n))
		for i := 0; i < s.Len(); i += 17 {
			state, err := c.Classify(s, i)
			require.NoError(t, err, "n=%d i=%d", n, i)
			assert.True(t, state.Criticality >= 0 && state.Criticality <= 100)
			assert.True(t, state.Regime.Valid())
		}
	}

	_, err = c.Classify(syntheticSeries(t, 5, 9), 5)
	assert.Error(t, err, "out-of-range index is a contract violation")
}

func TestNoLookAhead(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	full := syntheticSeries(t, 700, 42)
	cut := 550
	prefix, err := series.New(full.Symbol, full.Bars[:cut])
	require.NoError(t, err)

	prefixStates := c.ClassifyAll(prefix)
	fullStates := c.ClassifyAll(full)

	for i := 0; i < cut; i++ {
		assert.Equal(t, prefixStates[i].Criticality, fullStates[i].Criticality, "criticality drifted at %d", i)
		assert.Equal(t, prefixStates[i].Regime, fullStates[i].Regime, "regime drifted at %d", i)
		assert.Equal(t, prefixStates[i].TrendState, fullStates[i].TrendState, "trend drifted at %d", i)
		assert.InDelta(t, prefixStates[i].VolatilityPercentile, fullStates[i].VolatilityPercentile, 1e-12)
	}
}

func TestClassifyAllMatchesClassify(t *testing.T) {
	c, err := New(DefaultParams())
	require.NoError(t, err)

	s := syntheticSeries(t, 400, 7)
	all := c.ClassifyAll(s)
	require.Len(t, all, 400)

	for _, i := range []int{0, 29, 30, 199, 250, 399} {
		one, err := c.Classify(s, i)
		require.NoError(t, err)
		assert.Equal(t, one, all[i], "index %d", i)
	}
}
