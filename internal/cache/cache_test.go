package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

func TestKeyBindsConfigFingerprint(t *testing.T) {
	asOf := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	a := Key("SPY", asOf, classifier.DefaultParams())
	b := Key("SPY", asOf, classifier.DefaultParams())
	assert.Equal(t, a, b, "same inputs, same key")

	tweaked := classifier.DefaultParams()
	tweaked.PercentileLookback = 252
	c := Key("SPY", asOf, tweaked)
	assert.NotEqual(t, a, c, "parameter change must invalidate the key")

	d := Key("QQQ", asOf, classifier.DefaultParams())
	assert.NotEqual(t, a, d)

	e := Key("SPY", asOf.AddDate(0, 0, 1), classifier.DefaultParams())
	assert.NotEqual(t, a, e)
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	state := classifier.MarketState{Symbol: "SPY", Criticality: 42, Regime: classifier.RegimeYellow}
	key := Key("SPY", time.Now(), classifier.DefaultParams())

	_, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, key, state))
	got, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, got)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	key := "state:SPY:2024-01-01:deadbeef"
	require.NoError(t, m.Set(ctx, key, classifier.MarketState{Symbol: "SPY"}))

	_, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok, err = m.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entry past its TTL must miss")
	assert.Zero(t, m.Len(), "expired entry is evicted on read")
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	m.now = func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, m.Set(ctx, "k", classifier.MarketState{Symbol: "X"}))
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
