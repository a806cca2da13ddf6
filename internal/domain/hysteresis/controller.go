// Package hysteresis debounces regime transitions. A raw classification must
// repeat before it is accepted, and the accepted sequence only ever moves
// between adjacent tiers, so a single noisy reading cannot flip a series
// from GREEN to RED.
package hysteresis

import (
	"sync"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

// DefaultConfirmations is the number of consecutive raw readings required
// before a pending regime is accepted.
const DefaultConfirmations = 2

// Memory is a read-only snapshot of a controller's internal state.
type Memory struct {
	AcceptedRegime    classifier.Regime `json:"accepted_regime"`
	PendingRegime     classifier.Regime `json:"pending_regime,omitempty"`
	HasPending        bool              `json:"has_pending"`
	ConfirmationCount int               `json:"confirmation_count"`
}

// Controller is the per-series anti-flicker state machine. One instance per
// tracked series (one asset, or one portfolio); the mutex serializes the
// at-most-daily updates so instances may be shared if a caller wants to.
type Controller struct {
	mu          sync.Mutex
	required    int
	initialized bool
	accepted    classifier.Regime
	pending     classifier.Regime
	hasPending  bool
	count       int
}

// NewController creates a controller. requiredConfirmations below 1 falls
// back to DefaultConfirmations.
func NewController(requiredConfirmations int) *Controller {
	if requiredConfirmations < 1 {
		requiredConfirmations = DefaultConfirmations
	}
	return &Controller{required: requiredConfirmations}
}

// Apply feeds one raw classification and returns the accepted regime after
// the transition rules run. The first-ever observation is accepted
// immediately so there is no undefined bootstrap state.
func (c *Controller) Apply(raw classifier.Regime) classifier.Regime {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		c.initialized = true
		c.accepted = raw
		return c.accepted
	}

	switch {
	case raw == c.accepted:
		c.clearPending()

	case c.hasPending && raw == c.pending:
		c.count++
		if c.count >= c.required {
			c.confirm(raw)
		}

	default:
		c.pending = raw
		c.hasPending = true
		c.count = 1
		if c.count >= c.required {
			c.confirm(raw)
		}
	}
	return c.accepted
}

// confirm advances the accepted regime one tier toward target. A confirmed
// non-adjacent target (raw GREEN->RED) therefore surfaces the intermediate
// tier first and must be re-confirmed before the next step.
func (c *Controller) confirm(target classifier.Regime) {
	c.accepted = stepToward(c.accepted, target)
	if c.accepted == target {
		c.clearPending()
		return
	}
	c.count = 0
}

func (c *Controller) clearPending() {
	c.pending = ""
	c.hasPending = false
	c.count = 0
}

// Accepted returns the currently accepted regime. Before the first Apply it
// returns the zero value.
func (c *Controller) Accepted() classifier.Regime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

// Memory returns a snapshot of the controller state for persistence or
// reporting.
func (c *Controller) Memory() Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Memory{
		AcceptedRegime:    c.accepted,
		PendingRegime:     c.pending,
		HasPending:        c.hasPending,
		ConfirmationCount: c.count,
	}
}

// Reset returns the controller to its uninitialized state. Lifecycle is
// per-series: reset only at series start.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	c.accepted = ""
	c.clearPending()
}

func stepToward(from, to classifier.Regime) classifier.Regime {
	ladder := [...]classifier.Regime{classifier.RegimeGreen, classifier.RegimeYellow, classifier.RegimeRed}
	fromTier, toTier := from.Tier(), to.Tier()
	switch {
	case toTier > fromTier:
		return ladder[fromTier+1]
	case toTier < fromTier:
		return ladder[fromTier-1]
	default:
		return from
	}
}
