// Package persistence defines the storage contracts for classified market
// states and simulation runs. Implementations live in subpackages; callers
// depend only on these interfaces.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TimeRange bounds a history query, inclusive on both ends.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// StateRecord is one persisted classification: the full indicator set for a
// symbol on a trading day, plus the smoothed regime that was in force.
type StateRecord struct {
	Symbol               string    `json:"symbol" db:"symbol"`
	Date                 time.Time `json:"date" db:"date"`
	Close                float64   `json:"close" db:"close"`
	Volatility           float64   `json:"volatility" db:"volatility"`
	VolatilityPercentile float64   `json:"volatility_percentile" db:"volatility_percentile"`
	TrendState           string    `json:"trend_state" db:"trend_state"`
	PriceDeviationPct    float64   `json:"price_deviation_pct" db:"price_deviation_pct"`
	ExtensionPercentile  float64   `json:"extension_percentile" db:"extension_percentile"`
	Criticality          int       `json:"criticality" db:"criticality"`
	RawRegime            string    `json:"raw_regime" db:"raw_regime"`
	AcceptedRegime       string    `json:"accepted_regime" db:"accepted_regime"`
	ReasonCodes          []string  `json:"reason_codes" db:"reason_codes"`
	Warmup               bool      `json:"warmup" db:"warmup"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// SimulationRun is one completed backtest with its inputs and the serialized
// result. Summary columns are denormalized for listing without decoding the
// result payload.
type SimulationRun struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Mode           string    `json:"mode" db:"mode"`
	Config         []byte    `json:"config" db:"config"`
	Result         []byte    `json:"result" db:"result"`
	FinalEquity    float64   `json:"final_equity" db:"final_equity"`
	ReturnPct      float64   `json:"return_pct" db:"return_pct"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct" db:"max_drawdown_pct"`
	TradeCount     int       `json:"trade_count" db:"trade_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// StateRepo stores daily market states, keyed by (symbol, date).
type StateRepo interface {
	// Upsert inserts or replaces the state for a symbol and date.
	Upsert(ctx context.Context, record StateRecord) error

	// UpsertBatch writes a full history in one transaction.
	UpsertBatch(ctx context.Context, records []StateRecord) error

	// Get returns the state for a symbol on a date, or nil when absent.
	Get(ctx context.Context, symbol string, date time.Time) (*StateRecord, error)

	// Latest returns the most recent state for a symbol, or nil when the
	// symbol has never been classified.
	Latest(ctx context.Context, symbol string) (*StateRecord, error)

	// ListRange returns a symbol's states inside the range, oldest first.
	ListRange(ctx context.Context, symbol string, tr TimeRange) ([]StateRecord, error)

	// RegimeStats counts days per accepted regime for a symbol in the range.
	RegimeStats(ctx context.Context, symbol string, tr TimeRange) (map[string]int64, error)
}

// SimulationRepo stores completed backtest runs.
type SimulationRepo interface {
	// Insert records a finished run.
	Insert(ctx context.Context, run SimulationRun) error

	// GetByID returns a run with its full result payload, or nil.
	GetByID(ctx context.Context, id uuid.UUID) (*SimulationRun, error)

	// ListBySymbol returns the newest runs for a symbol, result payload
	// omitted.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]SimulationRun, error)

	// Latest returns the newest runs across all symbols, result payload
	// omitted.
	Latest(ctx context.Context, limit int) ([]SimulationRun, error)
}

// Repository aggregates the storage interfaces handed to the application
// layer.
type Repository struct {
	States      StateRepo
	Simulations SimulationRepo
}

// HealthCheck reports storage health for the health endpoint.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth exposes liveness checks for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
