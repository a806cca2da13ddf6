package hysteresis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

const (
	green  = classifier.RegimeGreen
	yellow = classifier.RegimeYellow
	red    = classifier.RegimeRed
)

func feed(c *Controller, raw []classifier.Regime) []classifier.Regime {
	out := make([]classifier.Regime, len(raw))
	for i, r := range raw {
		out[i] = c.Apply(r)
	}
	return out
}

func TestFirstObservationAcceptedImmediately(t *testing.T) {
	c := NewController(2)
	assert.Equal(t, red, c.Apply(red))
	assert.Equal(t, red, c.Accepted())
}

func TestFlickerRejectionScenario(t *testing.T) {
	// Oscillation must not move the accepted regime until the new reading
	// repeats without interruption.
	c := NewController(2)
	got := feed(c, []classifier.Regime{green, yellow, green, yellow, yellow})
	assert.Equal(t, []classifier.Regime{green, green, green, green, yellow}, got)
}

func TestSameRegimeResetsPending(t *testing.T) {
	c := NewController(3)
	feed(c, []classifier.Regime{green, yellow, yellow})
	mem := c.Memory()
	assert.True(t, mem.HasPending)
	assert.Equal(t, 2, mem.ConfirmationCount)

	c.Apply(green)
	mem = c.Memory()
	assert.False(t, mem.HasPending)
	assert.Equal(t, 0, mem.ConfirmationCount)
	assert.Equal(t, green, mem.AcceptedRegime)
}

func TestDirectJumpPassesThroughMiddleTier(t *testing.T) {
	c := NewController(2)
	got := feed(c, []classifier.Regime{green, red, red, red, red})
	// RED is confirmed twice: first confirmation surfaces YELLOW, the
	// second finishes the climb.
	assert.Equal(t, []classifier.Regime{green, green, yellow, yellow, red}, got)
}

func TestDescentAlsoAdjacent(t *testing.T) {
	c := NewController(2)
	got := feed(c, []classifier.Regime{red, green, green, green, green})
	assert.Equal(t, []classifier.Regime{red, red, yellow, yellow, green}, got)
}

func TestSingleConfirmationController(t *testing.T) {
	c := NewController(1)
	got := feed(c, []classifier.Regime{green, yellow, red})
	assert.Equal(t, []classifier.Regime{green, yellow, red}, got)

	// Even with a single required confirmation a GREEN->RED jump surfaces
	// YELLOW first.
	c = NewController(1)
	got = feed(c, []classifier.Regime{green, red, red})
	assert.Equal(t, []classifier.Regime{green, yellow, red}, got)
}

func TestAdjacencyPropertyOverRandomSequences(t *testing.T) {
	regimes := []classifier.Regime{green, yellow, red}
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 50; trial++ {
		c := NewController(2)
		prev := c.Apply(regimes[rng.Intn(3)])
		for step := 0; step < 500; step++ {
			cur := c.Apply(regimes[rng.Intn(3)])
			diff := cur.Tier() - prev.Tier()
			if diff < 0 {
				diff = -diff
			}
			require.LessOrEqual(t, diff, 1,
				"trial %d step %d: accepted regime jumped %s -> %s", trial, step, prev, cur)
			prev = cur
		}
	}
}

func TestReset(t *testing.T) {
	c := NewController(2)
	feed(c, []classifier.Regime{red, yellow, yellow})
	c.Reset()
	assert.Equal(t, green, c.Apply(green), "post-reset first observation accepted immediately")
}
