package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

func asset(symbol string, weight float64, criticality int) AssetInput {
	return AssetInput{
		Symbol: symbol,
		Weight: weight,
		State: classifier.MarketState{
			Symbol:      symbol,
			Date:        time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			Criticality: criticality,
			Regime:      classifier.RegimeFor(float64(criticality), 40, 70),
		},
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"empty", Input{}},
		{"negative_weight", Input{Assets: []AssetInput{asset("A", -0.1, 50), asset("B", 1.1, 50)}}},
		{"sum_below_one", Input{Assets: []AssetInput{asset("A", 0.5, 50), asset("B", 0.4, 50)}}},
		{"sum_above_one", Input{Assets: []AssetInput{asset("A", 0.6, 50), asset("B", 0.6, 50)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPortfolio)
		})
	}
}

func TestValidateToleratesRoundingDrift(t *testing.T) {
	in := Input{Assets: []AssetInput{
		asset("A", 0.3333333, 10),
		asset("B", 0.3333333, 20),
		asset("C", 0.3333334, 30),
	}}
	assert.NoError(t, in.Validate())
}

func TestWeightedMean(t *testing.T) {
	agg := NewAggregator(classifier.DefaultParams())
	state, err := agg.Aggregate(Input{Assets: []AssetInput{
		asset("A", 0.5, 20),
		asset("B", 0.5, 80),
	}})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, state.PortfolioCriticality, 1e-9)
	assert.Equal(t, classifier.RegimeYellow, state.RawRegime)
}

func TestTwoAssetScenario(t *testing.T) {
	agg := NewAggregator(classifier.DefaultParams())
	state, err := agg.Aggregate(Input{Assets: []AssetInput{
		asset("SPY", 0.6, 75),
		asset("QQQ", 0.4, 80),
	}})
	require.NoError(t, err)

	assert.InDelta(t, 77.0, state.PortfolioCriticality, 1e-9)
	assert.Equal(t, classifier.RegimeRed, state.RawRegime)

	require.NotEmpty(t, state.TopRiskContributors)
	top := state.TopRiskContributors[0]
	assert.Equal(t, "SPY", top.Symbol)
	assert.InDelta(t, 45.0, top.Contribution, 1e-9)
	assert.InDelta(t, 45.0/77.0*100, top.ContributionPct, 1e-6)
}

func TestSingleAssetReduction(t *testing.T) {
	tracker := NewTracker(classifier.DefaultParams(), 2)
	state, err := tracker.Observe(Input{Assets: []AssetInput{asset("SPY", 1.0, 83)}})
	require.NoError(t, err)

	assert.InDelta(t, 83.0, state.PortfolioCriticality, 1e-9)
	assert.Equal(t, classifier.RegimeRed, state.RawRegime)
	// First observation is accepted immediately, so the accepted regime
	// matches the asset's.
	assert.Equal(t, classifier.RegimeRed, state.PortfolioRegime)
}

func TestZeroCriticalityPortfolioIsGreen(t *testing.T) {
	agg := NewAggregator(classifier.DefaultParams())
	state, err := agg.Aggregate(Input{Assets: []AssetInput{
		asset("A", 0.7, 0),
		asset("B", 0.3, 0),
	}})
	require.NoError(t, err)
	assert.Zero(t, state.PortfolioCriticality)
	assert.Equal(t, classifier.RegimeGreen, state.RawRegime)
	for _, contrib := range state.TopRiskContributors {
		assert.Zero(t, contrib.ContributionPct)
	}
}

func TestAttributionRankingAndTruncation(t *testing.T) {
	agg := NewAggregator(classifier.DefaultParams())
	in := Input{Assets: []AssetInput{
		asset("A", 0.10, 90),
		asset("B", 0.25, 10),
		asset("C", 0.15, 60),
		asset("D", 0.20, 40),
		asset("E", 0.10, 20),
		asset("F", 0.15, 70),
		asset("G", 0.05, 5),
	}}
	state, err := agg.Aggregate(in)
	require.NoError(t, err)

	require.Len(t, state.TopRiskContributors, TopContributors)
	for i := 1; i < len(state.TopRiskContributors); i++ {
		assert.GreaterOrEqual(t,
			state.TopRiskContributors[i-1].Contribution,
			state.TopRiskContributors[i].Contribution,
			"contributors not sorted descending")
	}

	// Percentages are shares of the full portfolio criticality, so the
	// complete set sums to 100; the top-5 subset cannot exceed it.
	totalPct := 0.0
	for _, contrib := range state.TopRiskContributors {
		totalPct += contrib.ContributionPct
	}
	assert.LessOrEqual(t, totalPct, 100.0+1e-9)
	assert.Greater(t, totalPct, 90.0, "top 5 of 7 small assets should dominate")
}

func TestContributionPctSumsToHundredWithinTopFive(t *testing.T) {
	agg := NewAggregator(classifier.DefaultParams())
	state, err := agg.Aggregate(Input{Assets: []AssetInput{
		asset("A", 0.4, 50),
		asset("B", 0.35, 30),
		asset("C", 0.25, 80),
	}})
	require.NoError(t, err)

	totalPct := 0.0
	for _, contrib := range state.TopRiskContributors {
		totalPct += contrib.ContributionPct
	}
	assert.InDelta(t, 100.0, totalPct, 1e-6)
}

func TestTrackerHysteresisIsPortfolioScoped(t *testing.T) {
	tracker := NewTracker(classifier.DefaultParams(), 2)

	// Calm start, then a raw RED cross-section: the portfolio regime must
	// not jump straight to RED.
	_, err := tracker.Observe(Input{Assets: []AssetInput{asset("A", 1.0, 10)}})
	require.NoError(t, err)

	state, err := tracker.Observe(Input{Assets: []AssetInput{asset("A", 1.0, 90)}})
	require.NoError(t, err)
	assert.Equal(t, classifier.RegimeRed, state.RawRegime)
	assert.Equal(t, classifier.RegimeGreen, state.PortfolioRegime)
	// The asset's own state is untouched by portfolio smoothing.
	assert.Equal(t, classifier.RegimeRed, classifier.RegimeFor(90, 40, 70))
}
