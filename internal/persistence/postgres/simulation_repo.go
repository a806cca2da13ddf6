package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tectoniq/seismograph/internal/persistence"
)

// simulationRepo implements persistence.SimulationRepo for PostgreSQL.
type simulationRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSimulationRepo creates a PostgreSQL simulation-run repository.
func NewSimulationRepo(db *sqlx.DB, timeout time.Duration) persistence.SimulationRepo {
	return &simulationRepo{db: db, timeout: timeout}
}

const runSummaryColumns = `id, symbol, mode, final_equity, return_pct,
	max_drawdown_pct, trade_count, created_at`

func (r *simulationRepo) Insert(ctx context.Context, run persistence.SimulationRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if run.ID == uuid.Nil {
		return fmt.Errorf("simulation run requires an id")
	}

	query := `
		INSERT INTO simulation_runs
		(id, symbol, mode, config, result, final_equity, return_pct,
		 max_drawdown_pct, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Symbol, run.Mode, run.Config, run.Result,
		run.FinalEquity, run.ReturnPct, run.MaxDrawdownPct, run.TradeCount)
	if err != nil {
		return fmt.Errorf("failed to insert simulation run %s: %w", run.ID, err)
	}
	return nil
}

func (r *simulationRepo) GetByID(ctx context.Context, id uuid.UUID) (*persistence.SimulationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, mode, config, result, final_equity, return_pct,
		       max_drawdown_pct, trade_count, created_at
		FROM simulation_runs
		WHERE id = $1`

	var run persistence.SimulationRun
	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&run.ID, &run.Symbol, &run.Mode, &run.Config, &run.Result,
		&run.FinalEquity, &run.ReturnPct, &run.MaxDrawdownPct,
		&run.TradeCount, &run.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get simulation run: %w", err)
	}
	return &run, nil
}

func (r *simulationRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]persistence.SimulationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + runSummaryColumns + ` FROM simulation_runs
		WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryxContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs by symbol: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

func (r *simulationRepo) Latest(ctx context.Context, limit int) ([]persistence.SimulationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + runSummaryColumns + ` FROM simulation_runs
		ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

func scanRunSummaries(rows *sqlx.Rows) ([]persistence.SimulationRun, error) {
	var runs []persistence.SimulationRun
	for rows.Next() {
		var run persistence.SimulationRun
		err := rows.Scan(
			&run.ID, &run.Symbol, &run.Mode, &run.FinalEquity,
			&run.ReturnPct, &run.MaxDrawdownPct, &run.TradeCount,
			&run.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
