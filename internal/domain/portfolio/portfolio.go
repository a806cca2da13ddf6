// Package portfolio aggregates per-asset market states into a single
// portfolio-level criticality, regime, and risk-attribution table.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/domain/hysteresis"
)

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 1e-6

// TopContributors caps the risk-attribution table.
const TopContributors = 5

// ErrInvalidPortfolio tags all input-contract violations. Invalid input is
// rejected up front; there is no silent correction.
var ErrInvalidPortfolio = errors.New("invalid portfolio input")

// AssetInput is one asset's weight and its already-computed market state.
type AssetInput struct {
	Symbol string                 `json:"symbol"`
	Weight float64                `json:"weight"`
	State  classifier.MarketState `json:"state"`
}

// Input is the cross-sectional portfolio snapshot to aggregate.
type Input struct {
	Assets []AssetInput `json:"assets"`
}

// Validate enforces the caller contract: non-empty, no negative weights,
// weights summing to 1 within WeightTolerance.
func (in Input) Validate() error {
	if len(in.Assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidPortfolio)
	}
	total := 0.0
	for _, a := range in.Assets {
		if a.Weight < 0 {
			return fmt.Errorf("%w: asset %s has negative weight %f", ErrInvalidPortfolio, a.Symbol, a.Weight)
		}
		total += a.Weight
	}
	if math.Abs(total-1.0) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", ErrInvalidPortfolio, total)
	}
	return nil
}

// RiskContributor is one asset's share of the portfolio criticality.
type RiskContributor struct {
	Symbol          string  `json:"symbol"`
	Weight          float64 `json:"weight"`
	Criticality     int     `json:"criticality"`
	Contribution    float64 `json:"contribution"`
	ContributionPct float64 `json:"contribution_pct"`
}

// State is the portfolio risk state at a single point in time.
type State struct {
	Date                 time.Time         `json:"date"`
	PortfolioCriticality float64           `json:"portfolio_criticality"`
	RawRegime            classifier.Regime `json:"raw_regime"`
	PortfolioRegime      classifier.Regime `json:"portfolio_regime"`
	TopRiskContributors  []RiskContributor `json:"top_risk_contributors"`
}

// Aggregator combines asset states using the same thresholds as the asset
// classifier so the two levels stay comparable. It is stateless; temporal
// smoothing lives in Tracker.
type Aggregator struct {
	yellowThreshold int
	redThreshold    int
}

// NewAggregator builds an aggregator sharing the classifier's thresholds.
func NewAggregator(params classifier.Params) *Aggregator {
	return &Aggregator{
		yellowThreshold: params.YellowThreshold,
		redThreshold:    params.RedThreshold,
	}
}

// Aggregate computes the weighted-mean criticality, the raw regime, and the
// attribution table. The returned state carries RawRegime in
// PortfolioRegime as well; Tracker overwrites it with the accepted regime.
func (a *Aggregator) Aggregate(in Input) (State, error) {
	if err := in.Validate(); err != nil {
		return State{}, err
	}

	criticality := 0.0
	for _, asset := range in.Assets {
		criticality += asset.Weight * float64(asset.State.Criticality)
	}
	// Plain weighted mean: no nonlinear transform, no smoothing.
	if criticality < 0 {
		criticality = 0
	} else if criticality > 100 {
		criticality = 100
	}

	raw := classifier.RegimeFor(criticality, a.yellowThreshold, a.redThreshold)

	return State{
		Date:                 in.Assets[0].State.Date,
		PortfolioCriticality: criticality,
		RawRegime:            raw,
		PortfolioRegime:      raw,
		TopRiskContributors:  attribution(in, criticality),
	}, nil
}

func attribution(in Input, totalCriticality float64) []RiskContributor {
	contributors := make([]RiskContributor, 0, len(in.Assets))
	for _, asset := range in.Assets {
		contribution := asset.Weight * float64(asset.State.Criticality)
		pct := 0.0
		if totalCriticality > 0 {
			pct = contribution / totalCriticality * 100
		}
		contributors = append(contributors, RiskContributor{
			Symbol:          asset.Symbol,
			Weight:          asset.Weight,
			Criticality:     asset.State.Criticality,
			Contribution:    contribution,
			ContributionPct: pct,
		})
	}
	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Contribution > contributors[j].Contribution
	})
	if len(contributors) > TopContributors {
		contributors = contributors[:TopContributors]
	}
	return contributors
}

// Tracker maintains a portfolio-scoped hysteresis controller across
// successive aggregations. Asset-level controllers are never touched by it,
// so portfolio smoothing cannot mutate asset regimes.
type Tracker struct {
	aggregator *Aggregator
	controller *hysteresis.Controller
}

// NewTracker creates a tracker with its own controller instance.
func NewTracker(params classifier.Params, requiredConfirmations int) *Tracker {
	return &Tracker{
		aggregator: NewAggregator(params),
		controller: hysteresis.NewController(requiredConfirmations),
	}
}

// Observe aggregates one cross-section and runs the raw regime through the
// portfolio's hysteresis controller.
func (t *Tracker) Observe(in Input) (State, error) {
	state, err := t.aggregator.Aggregate(in)
	if err != nil {
		return State{}, err
	}
	state.PortfolioRegime = t.controller.Apply(state.RawRegime)
	return state, nil
}

// Memory exposes the tracker's hysteresis snapshot.
func (t *Tracker) Memory() hysteresis.Memory {
	return t.controller.Memory()
}
