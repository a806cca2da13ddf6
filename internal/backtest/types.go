package backtest

import (
	"fmt"
	"time"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

// StrategyMode selects the exposure table applied to classifier output.
type StrategyMode string

const (
	// ModeDefensive cuts exposure early and deep.
	ModeDefensive StrategyMode = "defensive"
	// ModeAggressive rides elevated stress longer and only halves at extremes.
	ModeAggressive StrategyMode = "aggressive"
)

// ParseStrategyMode maps user input to a StrategyMode.
func ParseStrategyMode(s string) (StrategyMode, error) {
	switch StrategyMode(s) {
	case ModeDefensive:
		return ModeDefensive, nil
	case ModeAggressive:
		return ModeAggressive, nil
	default:
		return "", fmt.Errorf("unknown strategy mode %q (want %s or %s)", s, ModeDefensive, ModeAggressive)
	}
}

// Config is the simulator configuration surface.
type Config struct {
	Mode                StrategyMode      `yaml:"mode" json:"mode"`
	InitialCapital      float64           `yaml:"initial_capital" json:"initial_capital"`
	TradingFeePct       float64           `yaml:"trading_fee_pct" json:"trading_fee_pct"`                 // fraction per traded volume, e.g. 0.001
	AnnualInterestRate  float64           `yaml:"annual_interest_rate" json:"annual_interest_rate"`       // earned on the cash fraction
	AnnualFinancingRate float64           `yaml:"annual_financing_rate" json:"annual_financing_rate"`     // paid on exposure above 1.0
	Classifier          classifier.Params `yaml:"classifier" json:"classifier"`
}

// DefaultConfig mirrors the production defaults: 10k starting capital,
// 0.1% per trade, 4% cash yield, defensive table.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeDefensive,
		InitialCapital:      10_000,
		TradingFeePct:       0.001,
		AnnualInterestRate:  0.04,
		AnnualFinancingRate: 0.04,
		Classifier:          classifier.DefaultParams(),
	}
}

// Validate checks the simulator configuration.
func (c Config) Validate() error {
	if _, err := ParseStrategyMode(string(c.Mode)); err != nil {
		return err
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %f", c.InitialCapital)
	}
	if c.TradingFeePct < 0 || c.TradingFeePct >= 1 {
		return fmt.Errorf("trading_fee_pct must be in [0,1), got %f", c.TradingFeePct)
	}
	if c.AnnualInterestRate < 0 || c.AnnualFinancingRate < 0 {
		return fmt.Errorf("interest and financing rates cannot be negative")
	}
	return c.Classifier.Validate()
}

// ExposureTable maps (trend, criticality) to a target exposure fraction for
// one strategy mode. Both modes exit to cash on a downtrend.
type ExposureTable struct {
	HighThreshold   int     // criticality >= this -> HighStress exposure
	MediumThreshold int     // criticality >= this -> MediumStress exposure
	HighStress      float64 // exposure at high stress
	MediumStress    float64 // exposure at medium stress
	Calm            float64 // exposure below MediumThreshold
	Bear            float64 // exposure on trend DOWN, regardless of stress
}

// TableFor returns the exposure table for a strategy mode.
func TableFor(mode StrategyMode) ExposureTable {
	table := ExposureTable{
		HighThreshold:   80,
		MediumThreshold: 60,
		HighStress:      0.20,
		MediumStress:    0.50,
		Calm:            1.00,
		Bear:            0.00,
	}
	if mode == ModeAggressive {
		table.HighStress = 0.50
		table.MediumStress = 1.00
	}
	return table
}

// TargetExposure applies the table to a classifier state. This is the single
// exposure rule shared by the simulator and the current-state query.
func (t ExposureTable) TargetExposure(state classifier.MarketState) float64 {
	if state.Warmup {
		return 1.0 // warm-up days participate fully and are flagged
	}
	if state.TrendState == classifier.TrendDown {
		return t.Bear
	}
	switch {
	case state.Criticality >= t.HighThreshold:
		return t.HighStress
	case state.Criticality >= t.MediumThreshold:
		return t.MediumStress
	default:
		return t.Calm
	}
}

// EquityPoint is one day on the simulated equity curve.
type EquityPoint struct {
	Date        time.Time         `json:"date"`
	Equity      float64           `json:"equity"`
	ExposurePct float64           `json:"exposure_pct"`
	Regime      classifier.Regime `json:"regime"`
	Criticality int               `json:"criticality"`
	Warmup      bool              `json:"warmup,omitempty"`
	Gap         bool              `json:"gap,omitempty"`
}

// StrategySummary is the per-strategy statistics block.
type StrategySummary struct {
	FinalValue       float64 `json:"final_value"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"` // negative or zero
	AnnualizedVolPct float64 `json:"annualized_vol_pct"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// Result is the complete simulation output. Immutable once Run returns.
type Result struct {
	Symbol    string       `json:"symbol"`
	Mode      StrategyMode `json:"mode"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	TotalDays int          `json:"total_days"`

	Curve []EquityPoint `json:"curve"`

	Strategy StrategySummary `json:"strategy"`
	BuyHold  StrategySummary `json:"buy_hold"`

	OutperformancePct     float64 `json:"outperformance_pct"`
	DrawdownProtectionPct float64 `json:"drawdown_protection_pct"` // positive = shallower drawdown than buy & hold

	FeesPaid       float64 `json:"fees_paid"`
	InterestEarned float64 `json:"interest_earned"`
	FinancingCost  float64 `json:"financing_cost"`
	NetFriction    float64 `json:"net_friction"` // interest earned minus fees and financing
	TradeCount     int     `json:"trade_count"`

	AvgExposurePct   float64 `json:"avg_exposure_pct"`
	DaysFullInvested int     `json:"days_full_invested"`
	DaysPartial      int     `json:"days_partial"`
	DaysCash         int     `json:"days_cash"`
	WarmupDays       int     `json:"warmup_days"`
	DataGaps         int     `json:"data_gaps"`

	FinalState classifier.MarketState `json:"final_state"`
}
