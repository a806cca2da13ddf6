// Package backtest walks a price history day by day, re-deriving the
// classifier state at each step with strict causality, and applies a
// strategy's exposure table to produce an equity curve with friction costs.
package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/domain/series"
)

// daysPerYear converts annual rates to daily accrual, calendar convention
// as in the original ruleset.
const daysPerYear = 365.0

// tradeEpsilon filters float jitter from being booked as a trade.
const tradeEpsilon = 1e-3

// tradingDaysPerYear annualizes daily volatility.
const tradingDaysPerYear = 252.0

// Simulator runs exposure backtests. Safe for concurrent use across
// different series; each Run is independent.
type Simulator struct {
	config     Config
	classifier *classifier.Classifier
	table      ExposureTable
}

// NewSimulator validates the config and builds the shared classifier.
func NewSimulator(config Config) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}
	clf, err := classifier.New(config.Classifier)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		config:     config,
		classifier: clf,
		table:      TableFor(config.Mode),
	}, nil
}

// Run simulates the configured strategy over the full series. The series
// must be long enough for at least one non-degenerate volatility window.
func (s *Simulator) Run(input *series.Series) (*Result, error) {
	if input.Len() <= s.config.Classifier.VolWindow {
		return nil, fmt.Errorf("series %s too short to simulate: %d bars, need > %d",
			input.Symbol, input.Len(), s.config.Classifier.VolWindow)
	}

	states := s.classifier.ClassifyAll(input)
	closes := input.Closes()
	returns := series.Returns(closes)

	dailyInterest := s.config.AnnualInterestRate / daysPerYear
	dailyFinancing := s.config.AnnualFinancingRate / daysPerYear

	result := &Result{
		Symbol:    input.Symbol,
		Mode:      s.config.Mode,
		StartDate: input.Bars[0].Date,
		EndDate:   input.Bars[input.Len()-1].Date,
		TotalDays: input.Len(),
		Curve:     make([]EquityPoint, 0, input.Len()),
	}

	equity := s.config.InitialCapital
	buyHold := s.config.InitialCapital
	prevExposure := 1.0 // start fully invested, as the warm-up period is

	var (
		stratStats   drawdownTracker
		buyHoldStats drawdownTracker
		stratRets    []float64
		buyHoldRets  []float64
		exposureSum  float64
	)

	for i := 0; i < input.Len(); i++ {
		bar := input.Bars[i]
		state := states[i]

		if bar.IsGap() {
			// Missing bar mid-series: hold the prior allocation, book no
			// return, record the day.
			result.DataGaps++
			result.Curve = append(result.Curve, EquityPoint{
				Date:        bar.Date,
				Equity:      equity,
				ExposurePct: prevExposure * 100,
				Regime:      state.Regime,
				Criticality: state.Criticality,
				Warmup:      state.Warmup,
				Gap:         true,
			})
			exposureSum += prevExposure
			continue
		}

		ret := returns[i]
		if math.IsNaN(ret) {
			ret = 0
		}

		exposure := s.table.TargetExposure(state)

		// Trade into the new exposure before the day's return accrues.
		change := math.Abs(exposure - prevExposure)
		if change > tradeEpsilon {
			fee := change * equity * s.config.TradingFeePct
			equity -= fee
			result.FeesPaid += fee
			result.TradeCount++
		}

		invested := equity * exposure
		cash := equity * (1 - exposure)
		invested *= 1 + ret

		if cash > 0 {
			interest := cash * dailyInterest
			cash += interest
			result.InterestEarned += interest
		} else if cash < 0 {
			// Leveraged: the borrowed fraction pays financing.
			financing := -cash * dailyFinancing
			cash -= financing
			result.FinancingCost += financing
		}
		equity = invested + cash

		buyHold *= 1 + ret

		point := EquityPoint{
			Date:        bar.Date,
			Equity:      equity,
			ExposurePct: exposure * 100,
			Regime:      state.Regime,
			Criticality: state.Criticality,
			Warmup:      state.Warmup,
		}
		result.Curve = append(result.Curve, point)
		exposureSum += exposure

		if state.Warmup {
			result.WarmupDays++
		} else {
			// Warm-up days are flagged and excluded from drawdown and
			// volatility statistics.
			stratStats.observe(equity)
			buyHoldStats.observe(buyHold)
			if prev := stratStats.previous(); prev > 0 {
				stratRets = append(stratRets, equity/prev-1)
			}
			if prev := buyHoldStats.previous(); prev > 0 {
				buyHoldRets = append(buyHoldRets, buyHold/prev-1)
			}
			switch {
			case exposure >= 1:
				result.DaysFullInvested++
			case exposure <= 0:
				result.DaysCash++
			default:
				result.DaysPartial++
			}
		}
		stratStats.commit(equity)
		buyHoldStats.commit(buyHold)

		prevExposure = exposure
	}

	result.Strategy = summarize(s.config.InitialCapital, equity, stratStats.maxDrawdownPct, stratRets)
	result.BuyHold = summarize(s.config.InitialCapital, buyHold, buyHoldStats.maxDrawdownPct, buyHoldRets)
	result.OutperformancePct = result.Strategy.TotalReturnPct - result.BuyHold.TotalReturnPct
	result.DrawdownProtectionPct = result.Strategy.MaxDrawdownPct - result.BuyHold.MaxDrawdownPct
	result.NetFriction = result.InterestEarned - result.FeesPaid - result.FinancingCost
	result.AvgExposurePct = exposureSum / float64(input.Len()) * 100
	result.FinalState = states[len(states)-1]

	log.Debug().
		Str("symbol", input.Symbol).
		Str("mode", string(s.config.Mode)).
		Int("days", result.TotalDays).
		Int("trades", result.TradeCount).
		Float64("final_equity", equity).
		Msg("simulation complete")

	return result, nil
}

// CurrentExposure applies the simulator's table to an independently computed
// state. The last curve point of Run over the same series matches this
// exactly; that equivalence is the system's consistency invariant.
func (s *Simulator) CurrentExposure(state classifier.MarketState) float64 {
	return s.table.TargetExposure(state) * 100
}

// drawdownTracker maintains a running peak and worst drawdown, and remembers
// the previous observed equity so daily strategy returns can be derived from
// the curve itself.
type drawdownTracker struct {
	peak           float64
	prev           float64
	committed      float64
	maxDrawdownPct float64
}

func (d *drawdownTracker) observe(equity float64) {
	d.prev = d.committed
	if equity > d.peak {
		d.peak = equity
	}
	if d.peak > 0 {
		dd := (equity - d.peak) / d.peak * 100
		if dd < d.maxDrawdownPct {
			d.maxDrawdownPct = dd
		}
	}
}

func (d *drawdownTracker) previous() float64 { return d.prev }

func (d *drawdownTracker) commit(equity float64) { d.committed = equity }

func summarize(initial, final, maxDrawdownPct float64, dailyReturns []float64) StrategySummary {
	summary := StrategySummary{
		FinalValue:     final,
		TotalReturnPct: (final - initial) / initial * 100,
		MaxDrawdownPct: maxDrawdownPct,
	}
	if vol := annualizedVolPct(dailyReturns); vol > 0 {
		summary.AnnualizedVolPct = vol
		summary.SharpeRatio = summary.TotalReturnPct / vol
	}
	return summary
}

func annualizedVolPct(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	return std * math.Sqrt(tradingDaysPerYear) * 100
}
