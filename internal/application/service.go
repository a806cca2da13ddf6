// Package application orchestrates the classification pipeline: providers
// feed price series, the classifier scores them, the hysteresis controller
// smooths regime transitions, and results flow to the cache and the
// repositories. Domain packages stay pure; all side effects live here.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tectoniq/seismograph/internal/backtest"
	"github.com/tectoniq/seismograph/internal/cache"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/domain/hysteresis"
	"github.com/tectoniq/seismograph/internal/domain/portfolio"
	"github.com/tectoniq/seismograph/internal/persistence"
	"github.com/tectoniq/seismograph/internal/providers"
)

// StateView is a classified day plus the regime the hysteresis controller
// had accepted on that day.
type StateView struct {
	classifier.MarketState
	AcceptedRegime classifier.Regime `json:"accepted_regime"`
}

// StateService answers state, portfolio, and simulation queries. Safe for
// concurrent use: every call builds its own hysteresis replay, so no request
// observes another request's smoothing state.
type StateService struct {
	provider   providers.Provider
	classifier *classifier.Classifier
	required   int
	cache      cache.Cache
	repo       *persistence.Repository
	simConfig  backtest.Config
	now        func() time.Time // injectable for testing
}

// NewStateService wires the pipeline. cache and repo may be nil; both are
// optional accelerators, not correctness requirements.
func NewStateService(provider providers.Provider, cls *classifier.Classifier,
	requiredConfirmations int, store cache.Cache, repo *persistence.Repository,
	simConfig backtest.Config) (*StateService, error) {
	if requiredConfirmations < 1 {
		return nil, fmt.Errorf("required confirmations must be >= 1, got %d", requiredConfirmations)
	}
	return &StateService{
		provider:   provider,
		classifier: cls,
		required:   requiredConfirmations,
		cache:      store,
		repo:       repo,
		simConfig:  simConfig,
		now:        time.Now,
	}, nil
}

// State returns the latest classified day for a symbol. The cache is
// consulted first under the current UTC day, so within one day a hit skips
// the provider entirely. The cache stores raw states: the accepted regime
// is recomputed from history on a miss and approximated by the raw regime
// on a hit.
func (s *StateService) State(ctx context.Context, symbol string) (StateView, error) {
	asOf := s.today()
	if state, ok := s.Cached(ctx, symbol, asOf); ok {
		return StateView{MarketState: state, AcceptedRegime: state.Regime}, nil
	}

	history, err := s.History(ctx, symbol)
	if err != nil {
		return StateView{}, err
	}
	last := history[len(history)-1]
	s.memoize(ctx, symbol, asOf, last.MarketState)
	return last, nil
}

func (s *StateService) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// History fetches, classifies, and smooths the full daily history for a
// symbol, oldest first. The hysteresis controller is replayed from the
// first bar so the accepted regime at every index is deterministic.
func (s *StateService) History(ctx context.Context, symbol string) ([]StateView, error) {
	series, err := s.provider.FetchDaily(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("state service: %w", err)
	}

	states := s.classifier.ClassifyAll(series)
	if len(states) == 0 {
		return nil, fmt.Errorf("state service: %s produced no states", symbol)
	}

	controller := hysteresis.NewController(s.required)
	views := make([]StateView, len(states))
	for i, state := range states {
		views[i] = StateView{
			MarketState:    state,
			AcceptedRegime: controller.Apply(state.Regime),
		}
	}

	last := views[len(views)-1]
	log.Info().Str("symbol", symbol).
		Time("as_of", last.Date).
		Int("criticality", last.Criticality).
		Str("regime", string(last.AcceptedRegime)).
		Msg("classified history")

	s.memoize(ctx, symbol, last.Date, last.MarketState)
	s.persistStates(ctx, views)
	return views, nil
}

// Cached returns the memoized raw state for a symbol as of a date, if any.
func (s *StateService) Cached(ctx context.Context, symbol string, asOf time.Time) (classifier.MarketState, bool) {
	if s.cache == nil {
		return classifier.MarketState{}, false
	}
	state, ok, err := s.cache.Get(ctx, cache.Key(symbol, asOf, s.classifier.Params()))
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("cache read failed")
		return classifier.MarketState{}, false
	}
	return state, ok
}

// Portfolio classifies every holding and aggregates them into one
// portfolio-level view.
func (s *StateService) Portfolio(ctx context.Context, symbols []string, weights []float64) (portfolio.State, error) {
	if len(symbols) == 0 || len(symbols) != len(weights) {
		return portfolio.State{}, fmt.Errorf("state service: need matching symbols and weights, got %d/%d",
			len(symbols), len(weights))
	}

	input := portfolio.Input{Assets: make([]portfolio.AssetInput, len(symbols))}
	for i, symbol := range symbols {
		view, err := s.State(ctx, symbol)
		if err != nil {
			return portfolio.State{}, err
		}
		input.Assets[i] = portfolio.AssetInput{
			Symbol: symbol,
			Weight: weights[i],
			State:  view.MarketState,
		}
	}

	tracker := portfolio.NewTracker(s.classifier.Params(), s.required)
	return tracker.Observe(input)
}

// Simulate runs a backtest for a symbol with the service's simulator
// defaults, records the run when a repository is attached, and returns the
// run id with the result.
func (s *StateService) Simulate(ctx context.Context, symbol string, mode backtest.StrategyMode) (uuid.UUID, *backtest.Result, error) {
	series, err := s.provider.FetchDaily(ctx, symbol)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("state service: %w", err)
	}

	config := s.simConfig
	config.Mode = mode
	sim, err := backtest.NewSimulator(config)
	if err != nil {
		return uuid.Nil, nil, err
	}
	result, err := sim.Run(series)
	if err != nil {
		return uuid.Nil, nil, err
	}

	id := uuid.New()
	log.Info().Str("symbol", symbol).Str("mode", string(mode)).
		Str("run_id", id.String()).
		Float64("return_pct", result.Strategy.TotalReturnPct).
		Msg("simulation complete")

	s.persistRun(ctx, id, symbol, config, result)
	return id, result, nil
}

func (s *StateService) memoize(ctx context.Context, symbol string, asOf time.Time, state classifier.MarketState) {
	if s.cache == nil {
		return
	}
	key := cache.Key(symbol, asOf, s.classifier.Params())
	if err := s.cache.Set(ctx, key, state); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
}

func (s *StateService) persistStates(ctx context.Context, views []StateView) {
	if s.repo == nil || s.repo.States == nil {
		return
	}
	records := make([]persistence.StateRecord, len(views))
	for i, view := range views {
		records[i] = recordFromView(view)
	}
	if err := s.repo.States.UpsertBatch(ctx, records); err != nil {
		log.Warn().Err(err).Str("symbol", views[0].Symbol).Msg("state persistence failed")
	}
}

func (s *StateService) persistRun(ctx context.Context, id uuid.UUID, symbol string,
	config backtest.Config, result *backtest.Result) {
	if s.repo == nil || s.repo.Simulations == nil {
		return
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		log.Warn().Err(err).Msg("run config marshal failed")
		return
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Msg("run result marshal failed")
		return
	}

	run := persistence.SimulationRun{
		ID:             id,
		Symbol:         symbol,
		Mode:           string(config.Mode),
		Config:         configJSON,
		Result:         resultJSON,
		FinalEquity:    result.Strategy.FinalValue,
		ReturnPct:      result.Strategy.TotalReturnPct,
		MaxDrawdownPct: result.Strategy.MaxDrawdownPct,
		TradeCount:     result.TradeCount,
	}
	if err := s.repo.Simulations.Insert(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", id.String()).Msg("run persistence failed")
	}
}

func recordFromView(view StateView) persistence.StateRecord {
	return persistence.StateRecord{
		Symbol:               view.Symbol,
		Date:                 view.Date,
		Close:                view.Close,
		Volatility:           view.Volatility,
		VolatilityPercentile: view.VolatilityPercentile,
		TrendState:           string(view.TrendState),
		PriceDeviationPct:    view.PriceDeviationPct,
		ExtensionPercentile:  view.ExtensionPercentile,
		Criticality:          view.Criticality,
		RawRegime:            string(view.Regime),
		AcceptedRegime:       string(view.AcceptedRegime),
		ReasonCodes:          view.ReasonCodes,
		Warmup:               view.Warmup,
	}
}
