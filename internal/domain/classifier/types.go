package classifier

import "time"

// Regime is the discretized instability tier derived from criticality.
type Regime string

const (
	RegimeGreen  Regime = "GREEN"
	RegimeYellow Regime = "YELLOW"
	RegimeRed    Regime = "RED"
)

// Tier returns the regime's position on the GREEN(0) → RED(2) ladder.
func (r Regime) Tier() int {
	switch r {
	case RegimeGreen:
		return 0
	case RegimeYellow:
		return 1
	case RegimeRed:
		return 2
	default:
		return 1
	}
}

// Valid reports whether r is one of the three known tiers.
func (r Regime) Valid() bool {
	return r == RegimeGreen || r == RegimeYellow || r == RegimeRed
}

// TrendState is the price position relative to the long moving average.
type TrendState string

const (
	TrendUp      TrendState = "UP"
	TrendDown    TrendState = "DOWN"
	TrendNeutral TrendState = "NEUTRAL" // long MA undefined during warm-up
)

// Reason codes are mechanistic tags explaining which sub-scores are
// elevated. Severity adjectives are deliberately absent.
const (
	ReasonVolExtreme       = "VOL_EXTREME"
	ReasonVolHigh          = "VOL_HIGH"
	ReasonTrendDown        = "TREND_DOWN"
	ReasonExtensionHigh    = "EXTENSION_HIGH"
	ReasonInsufficientData = "INSUFFICIENT_DATA"
)

// maxReasonCodes caps the tag list on a MarketState.
const maxReasonCodes = 4

// MarketState is the immutable per-asset, per-date classification output.
type MarketState struct {
	Symbol               string     `json:"symbol"`
	Date                 time.Time  `json:"date"`
	Close                float64    `json:"close"`
	Volatility           float64    `json:"volatility"`
	VolatilityPercentile float64    `json:"volatility_percentile"`
	TrendState           TrendState `json:"trend_state"`
	PriceDeviationPct    float64    `json:"price_deviation_pct"`
	ExtensionPercentile  float64    `json:"extension_percentile"`
	Criticality          int        `json:"criticality"`
	Regime               Regime     `json:"regime"`
	ReasonCodes          []string   `json:"reason_codes"`
	Warmup               bool       `json:"warmup"`
}
