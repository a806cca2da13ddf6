package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tectoniq/seismograph/internal/persistence"
)

// stateRepo implements persistence.StateRepo for PostgreSQL.
type stateRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStateRepo creates a PostgreSQL market-state repository.
func NewStateRepo(db *sqlx.DB, timeout time.Duration) persistence.StateRepo {
	return &stateRepo{db: db, timeout: timeout}
}

const stateColumns = `symbol, date, close, volatility, volatility_percentile,
	trend_state, price_deviation_pct, extension_percentile, criticality,
	raw_regime, accepted_regime, reason_codes, warmup, created_at`

const stateUpsert = `
	INSERT INTO market_states
	(symbol, date, close, volatility, volatility_percentile, trend_state,
	 price_deviation_pct, extension_percentile, criticality, raw_regime,
	 accepted_regime, reason_codes, warmup)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (symbol, date) DO UPDATE SET
		close = EXCLUDED.close,
		volatility = EXCLUDED.volatility,
		volatility_percentile = EXCLUDED.volatility_percentile,
		trend_state = EXCLUDED.trend_state,
		price_deviation_pct = EXCLUDED.price_deviation_pct,
		extension_percentile = EXCLUDED.extension_percentile,
		criticality = EXCLUDED.criticality,
		raw_regime = EXCLUDED.raw_regime,
		accepted_regime = EXCLUDED.accepted_regime,
		reason_codes = EXCLUDED.reason_codes,
		warmup = EXCLUDED.warmup`

func (r *stateRepo) Upsert(ctx context.Context, record persistence.StateRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args, err := stateArgs(record)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stateUpsert, args...); err != nil {
		return fmt.Errorf("failed to upsert state %s@%s: %w",
			record.Symbol, record.Date.Format("2006-01-02"), err)
	}
	return nil
}

func (r *stateRepo) UpsertBatch(ctx context.Context, records []persistence.StateRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, stateUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		args, err := stateArgs(record)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert state %s@%s: %w",
				record.Symbol, record.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (r *stateRepo) Get(ctx context.Context, symbol string, date time.Time) (*persistence.StateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + stateColumns + ` FROM market_states WHERE symbol = $1 AND date = $2`
	record, err := scanState(r.db.QueryRowxContext(ctx, query, symbol, date))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return record, nil
}

func (r *stateRepo) Latest(ctx context.Context, symbol string) (*persistence.StateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + stateColumns + ` FROM market_states
		WHERE symbol = $1 ORDER BY date DESC LIMIT 1`
	record, err := scanState(r.db.QueryRowxContext(ctx, query, symbol))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest state: %w", err)
	}
	return record, nil
}

func (r *stateRepo) ListRange(ctx context.Context, symbol string, tr persistence.TimeRange) ([]persistence.StateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + stateColumns + ` FROM market_states
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`
	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query state range: %w", err)
	}
	defer rows.Close()

	var records []persistence.StateRecord
	for rows.Next() {
		record, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating states: %w", err)
	}
	return records, nil
}

func (r *stateRepo) RegimeStats(ctx context.Context, symbol string, tr persistence.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT accepted_regime, COUNT(*)
		FROM market_states
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		GROUP BY accepted_regime`
	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var regime string
		var count int64
		if err := rows.Scan(&regime, &count); err != nil {
			return nil, fmt.Errorf("failed to scan regime stats: %w", err)
		}
		stats[regime] = count
	}
	return stats, rows.Err()
}

func stateArgs(record persistence.StateRecord) ([]interface{}, error) {
	reasonsJSON, err := json.Marshal(record.ReasonCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reason codes: %w", err)
	}
	return []interface{}{
		record.Symbol, record.Date, record.Close, record.Volatility,
		record.VolatilityPercentile, record.TrendState,
		record.PriceDeviationPct, record.ExtensionPercentile,
		record.Criticality, record.RawRegime, record.AcceptedRegime,
		reasonsJSON, record.Warmup,
	}, nil
}

// rowScanner covers both sqlx.Row and sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*persistence.StateRecord, error) {
	var record persistence.StateRecord
	var reasonsJSON []byte

	err := row.Scan(
		&record.Symbol, &record.Date, &record.Close, &record.Volatility,
		&record.VolatilityPercentile, &record.TrendState,
		&record.PriceDeviationPct, &record.ExtensionPercentile,
		&record.Criticality, &record.RawRegime, &record.AcceptedRegime,
		&reasonsJSON, &record.Warmup, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &record.ReasonCodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reason codes: %w", err)
		}
	}
	return &record, nil
}
