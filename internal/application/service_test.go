package application

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tectoniq/seismograph/internal/backtest"
	"github.com/tectoniq/seismograph/internal/cache"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/domain/series"
)

type fakeProvider struct {
	histories map[string]*series.Series
	calls     int
}

func (f *fakeProvider) FetchDaily(_ context.Context, symbol string) (*series.Series, error) {
	f.calls++
	s, ok := f.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return s, nil
}

func randomWalk(t *testing.T, symbol string, n int, seed int64) *series.Series {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	bars := make([]series.Bar, n)
	for i := range bars {
		price *= 1 + rng.NormFloat64()*0.01
		bars[i] = series.Bar{Date: start.AddDate(0, 0, i), Close: price, Volume: 1000}
	}
	s, err := series.New(symbol, bars)
	require.NoError(t, err)
	return s
}

func newService(t *testing.T, provider *fakeProvider, store cache.Cache) *StateService {
	t.Helper()
	cls, err := classifier.New(classifier.DefaultParams())
	require.NoError(t, err)
	svc, err := NewStateService(provider, cls, 2, store, nil, backtest.DefaultConfig())
	require.NoError(t, err)
	return svc
}

func TestHistoryReplaysHysteresisFromFirstBar(t *testing.T) {
	provider := &fakeProvider{histories: map[string]*series.Series{
		"SPY": randomWalk(t, "SPY", 300, 7),
	}}
	svc := newService(t, provider, nil)

	views, err := svc.History(context.Background(), "SPY")
	require.NoError(t, err)
	require.Len(t, views, 300)

	// The first observation is accepted immediately, and every accepted
	// regime transition moves at most one tier.
	assert.Equal(t, views[0].Regime, views[0].AcceptedRegime)
	for i := 1; i < len(views); i++ {
		prev := views[i-1].AcceptedRegime.Tier()
		cur := views[i].AcceptedRegime.Tier()
		diff := prev - cur
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 1, "accepted regime jumped tiers at index %d", i)
	}
}

func TestStateReturnsLatestDayAndMemoizes(t *testing.T) {
	provider := &fakeProvider{histories: map[string]*series.Series{
		"SPY": randomWalk(t, "SPY", 300, 7),
	}}
	store := cache.NewMemory(time.Hour)
	svc := newService(t, provider, store)

	view, err := svc.State(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, provider.histories["SPY"].Bars[299].Date, view.Date)
	assert.True(t, view.Regime.Valid())

	cached, ok := svc.Cached(context.Background(), "SPY", view.Date)
	require.True(t, ok, "latest state should be memoized")
	assert.Equal(t, view.Criticality, cached.Criticality)
}

func TestStateServesRepeatReadsFromCache(t *testing.T) {
	provider := &fakeProvider{histories: map[string]*series.Series{
		"SPY": randomWalk(t, "SPY", 300, 7),
	}}
	store := cache.NewMemory(time.Hour)
	svc := newService(t, provider, store)

	day := time.Date(2024, 5, 6, 15, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return day }

	first, err := svc.State(context.Background(), "SPY")
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	second, err := svc.State(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls, "repeat read within the day must not touch the provider")
	assert.Equal(t, first.Criticality, second.Criticality)
	assert.Equal(t, first.Regime, second.Regime)
	assert.Equal(t, second.Regime, second.AcceptedRegime,
		"cached reads approximate the accepted regime by the raw one")

	// The next UTC day misses and refetches.
	svc.now = func() time.Time { return day.AddDate(0, 0, 1) }
	_, err = svc.State(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestStateErrorsOnUnknownSymbol(t *testing.T) {
	svc := newService(t, &fakeProvider{histories: map[string]*series.Series{}}, nil)
	_, err := svc.State(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestPortfolioAggregatesHoldings(t *testing.T) {
	provider := &fakeProvider{histories: map[string]*series.Series{
		"SPY": randomWalk(t, "SPY", 300, 7),
		"QQQ": randomWalk(t, "QQQ", 300, 11),
	}}
	svc := newService(t, provider, nil)

	state, err := svc.Portfolio(context.Background(), []string{"SPY", "QQQ"}, []float64{0.6, 0.4})
	require.NoError(t, err)
	assert.True(t, state.PortfolioRegime.Valid())
	assert.Len(t, state.TopRiskContributors, 2)
	assert.GreaterOrEqual(t, state.PortfolioCriticality, 0.0)
	assert.LessOrEqual(t, state.PortfolioCriticality, 100.0)
}

func TestPortfolioRejectsMismatchedInput(t *testing.T) {
	svc := newService(t, &fakeProvider{}, nil)
	_, err := svc.Portfolio(context.Background(), []string{"SPY"}, []float64{0.5, 0.5})
	assert.Error(t, err)
	_, err = svc.Portfolio(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestSimulateRunsWithModeOverride(t *testing.T) {
	provider := &fakeProvider{histories: map[string]*series.Series{
		"SPY": randomWalk(t, "SPY", 300, 7),
	}}
	svc := newService(t, provider, nil)

	id, result, err := svc.Simulate(context.Background(), "SPY", backtest.ModeAggressive)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, backtest.ModeAggressive, result.Mode)
	assert.False(t, math.IsNaN(result.Strategy.FinalValue))
	assert.Equal(t, 300, result.TotalDays)
}

func TestNewStateServiceRejectsBadConfirmations(t *testing.T) {
	cls, err := classifier.New(classifier.DefaultParams())
	require.NoError(t, err)
	_, err = NewStateService(&fakeProvider{}, cls, 0, nil, nil, backtest.DefaultConfig())
	assert.Error(t, err)
}
