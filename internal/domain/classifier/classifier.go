// Package classifier turns a trailing price window into a 0-100 criticality
// score and a GREEN/YELLOW/RED regime. Every value at index i is a function
// of bars [0..i] only, so recomputing a past state after appending future
// bars never changes it.
package classifier

import (
	"fmt"
	"math"

	"github.com/tectoniq/seismograph/internal/domain/percentile"
	"github.com/tectoniq/seismograph/internal/domain/series"
)

// Params is the full configuration surface of the classifier. Zero hidden
// constants: everything a caller might tune lives here.
type Params struct {
	VolWindow          int     `yaml:"vol_window" json:"vol_window"`                     // rolling std of returns
	TrendWindow        int     `yaml:"trend_window" json:"trend_window"`                 // long SMA
	PercentileLookback int     `yaml:"percentile_lookback" json:"percentile_lookback"`   // trailing rank window
	WeightVol          float64 `yaml:"weight_vol" json:"weight_vol"`                     // volatility percentile weight
	WeightTrend        float64 `yaml:"weight_trend" json:"weight_trend"`                 // trend penalty weight
	WeightExtension    float64 `yaml:"weight_extension" json:"weight_extension"`         // extension penalty weight
	TrendPenaltySlope  float64 `yaml:"trend_penalty_slope" json:"trend_penalty_slope"`   // risk per % below the MA
	ExtensionGain      float64 `yaml:"extension_gain" json:"extension_gain"`             // risk per rank point above 50
	YellowThreshold    int     `yaml:"yellow_threshold" json:"yellow_threshold"`         // criticality >= this -> YELLOW
	RedThreshold       int     `yaml:"red_threshold" json:"red_threshold"`               // criticality >= this -> RED
}

// DefaultParams returns the production parameter set: volatility dominates
// the blend and thresholds sit at 40/70.
func DefaultParams() Params {
	return Params{
		VolWindow:          30,
		TrendWindow:        200,
		PercentileLookback: 504,
		WeightVol:          0.70,
		WeightTrend:        0.20,
		WeightExtension:    0.10,
		TrendPenaltySlope:  2.0,
		ExtensionGain:      2.0,
		YellowThreshold:    40,
		RedThreshold:       70,
	}
}

// Validate checks the parameter set for internal consistency.
func (p Params) Validate() error {
	if p.VolWindow < 2 {
		return fmt.Errorf("vol_window must be >= 2, got %d", p.VolWindow)
	}
	if p.TrendWindow < 2 {
		return fmt.Errorf("trend_window must be >= 2, got %d", p.TrendWindow)
	}
	if p.PercentileLookback < percentile.MinSamples {
		return fmt.Errorf("percentile_lookback must be >= %d, got %d", percentile.MinSamples, p.PercentileLookback)
	}
	sum := p.WeightVol + p.WeightTrend + p.WeightExtension
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("classifier weights must sum to 1.0, got %.3f", sum)
	}
	if p.WeightVol < 0.6 {
		return fmt.Errorf("weight_vol must be >= 0.6 so volatility stays dominant, got %.2f", p.WeightVol)
	}
	if p.WeightTrend < 0 || p.WeightExtension < 0 {
		return fmt.Errorf("classifier weights cannot be negative")
	}
	if p.YellowThreshold <= 0 || p.RedThreshold <= p.YellowThreshold || p.RedThreshold > 100 {
		return fmt.Errorf("regime thresholds must satisfy 0 < yellow < red <= 100, got (%d, %d)",
			p.YellowThreshold, p.RedThreshold)
	}
	return nil
}

// RegimeFor maps a criticality score to a tier. Asset and portfolio levels
// share this exact function for comparability.
func RegimeFor(criticality float64, yellowThreshold, redThreshold int) Regime {
	switch {
	case criticality < float64(yellowThreshold):
		return RegimeGreen
	case criticality < float64(redThreshold):
		return RegimeYellow
	default:
		return RegimeRed
	}
}

// Classifier computes MarketState snapshots. It is stateless and safe to
// share across goroutines.
type Classifier struct {
	params Params
}

// New creates a classifier after validating its parameters.
func New(params Params) (*Classifier, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier params: %w", err)
	}
	return &Classifier{params: params}, nil
}

// Params returns the parameter set the classifier was built with.
func (c *Classifier) Params() Params { return c.params }

// frame holds per-index derived columns. Each column value at index i is a
// trailing-window computation over [0..i], which is what makes reading the
// frame at any index causal.
type frame struct {
	closes []float64
	vol    []float64
	sma    []float64
	devPct []float64
	absDev []float64
}

func (c *Classifier) buildFrame(s *series.Series) *frame {
	closes := s.Closes()
	returns := series.Returns(closes)
	f := &frame{
		closes: closes,
		vol:    series.RollingStd(returns, c.params.VolWindow),
		sma:    series.SMA(closes, c.params.TrendWindow),
	}
	f.devPct = make([]float64, len(closes))
	f.absDev = make([]float64, len(closes))
	for i := range closes {
		if math.IsNaN(f.sma[i]) || f.sma[i] == 0 || math.IsNaN(closes[i]) {
			f.devPct[i] = math.NaN()
			f.absDev[i] = math.NaN()
			continue
		}
		f.devPct[i] = (closes[i] - f.sma[i]) / f.sma[i] * 100
		f.absDev[i] = math.Abs(f.devPct[i])
	}
	return f
}

// Classify computes the MarketState at index. The only error condition is a
// contract violation (index out of range); short history is answered with a
// neutral warm-up state, never an error.
func (c *Classifier) Classify(s *series.Series, index int) (MarketState, error) {
	if index < 0 || index >= s.Len() {
		return MarketState{}, fmt.Errorf("index %d out of range [0,%d)", index, s.Len())
	}
	return c.classifyAt(s, c.buildFrame(s), index), nil
}

// ClassifyAll computes MarketStates for every index in one pass. The derived
// columns are shared, so this is the cheap way to walk a full history; each
// element is identical to the corresponding Classify call.
func (c *Classifier) ClassifyAll(s *series.Series) []MarketState {
	f := c.buildFrame(s)
	out := make([]MarketState, s.Len())
	for i := range out {
		out[i] = c.classifyAt(s, f, i)
	}
	return out
}

func (c *Classifier) classifyAt(s *series.Series, f *frame, i int) MarketState {
	bar := s.Bars[i]
	state := MarketState{
		Symbol: s.Symbol,
		Date:   bar.Date,
		Close:  bar.Close,
	}

	vol := f.vol[i]
	if math.IsNaN(vol) {
		// Not enough history for the volatility window: documented neutral
		// state instead of an error.
		state.Volatility = 0
		state.VolatilityPercentile = percentile.NeutralRank
		state.TrendState = TrendNeutral
		state.ExtensionPercentile = percentile.NeutralRank
		state.Criticality = 50
		state.Regime = RegimeFor(50, c.params.YellowThreshold, c.params.RedThreshold)
		state.ReasonCodes = []string{ReasonInsufficientData}
		state.Warmup = true
		return state
	}

	state.Volatility = vol
	state.VolatilityPercentile = percentile.Rank(f.vol, i, c.params.PercentileLookback)

	var trendRisk, extRisk float64
	dev := f.devPct[i]
	switch {
	case math.IsNaN(dev):
		// Long MA still warming up: trend contributes nothing either way.
		state.TrendState = TrendNeutral
		state.ExtensionPercentile = percentile.NeutralRank
	case dev < 0:
		state.TrendState = TrendDown
		state.PriceDeviationPct = dev
		state.ExtensionPercentile = percentile.Rank(f.absDev, i, c.params.PercentileLookback)
		trendRisk = math.Min(100, math.Abs(dev)*c.params.TrendPenaltySlope)
	default:
		state.TrendState = TrendUp
		state.PriceDeviationPct = dev
		state.ExtensionPercentile = percentile.Rank(f.absDev, i, c.params.PercentileLookback)
		extRisk = math.Max(0, (state.ExtensionPercentile-50)*c.params.ExtensionGain)
		if extRisk > 100 {
			extRisk = 100
		}
	}

	score := c.params.WeightVol*state.VolatilityPercentile +
		c.params.WeightTrend*trendRisk +
		c.params.WeightExtension*extRisk
	state.Criticality = clampScore(score)
	state.Regime = RegimeFor(float64(state.Criticality), c.params.YellowThreshold, c.params.RedThreshold)
	state.ReasonCodes = buildReasonCodes(state.VolatilityPercentile, trendRisk, state.TrendState, state.ExtensionPercentile, extRisk)
	return state
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func buildReasonCodes(volPct, trendRisk float64, trend TrendState, extPct, extRisk float64) []string {
	codes := make([]string, 0, maxReasonCodes)
	switch {
	case volPct >= 95:
		codes = append(codes, ReasonVolExtreme)
	case volPct >= 80:
		codes = append(codes, ReasonVolHigh)
	}
	if trend == TrendDown && trendRisk > 0 {
		codes = append(codes, ReasonTrendDown)
	}
	if extRisk > 0 && extPct >= 80 {
		codes = append(codes, ReasonExtensionHigh)
	}
	if len(codes) > maxReasonCodes {
		codes = codes[:maxReasonCodes]
	}
	return codes
}
