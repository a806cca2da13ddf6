// Package db manages the PostgreSQL connection pool and hands out
// repository instances. Persistence is optional: with an empty DSN the
// manager runs disabled and callers get nil repositories.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tectoniq/seismograph/internal/persistence"
	"github.com/tectoniq/seismograph/internal/persistence/postgres"
)

// Config holds connection pool settings.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns pool defaults; the empty DSN leaves persistence off.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Manager owns the pool and the repository collection built on it.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager opens the pool, verifies connectivity, and applies the schema.
// An empty DSN yields a disabled manager, not an error.
func NewManager(ctx context.Context, config Config) (*Manager, error) {
	if config.DSN == "" {
		return &Manager{
			config: config,
			health: &healthChecker{enabled: false},
		}, nil
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.EnsureSchema(ctx, db, config.QueryTimeout); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{
		db:     db,
		config: config,
		repos: &persistence.Repository{
			States:      postgres.NewStateRepo(db, config.QueryTimeout),
			Simulations: postgres.NewSimulationRepo(db, config.QueryTimeout),
		},
		health: &healthChecker{enabled: true, db: db, timeout: config.QueryTimeout},
	}, nil
}

// Repository returns the repository collection, nil when disabled.
func (m *Manager) Repository() *persistence.Repository { return m.repos }

// Health returns the health checker.
func (m *Manager) Health() persistence.RepositoryHealth { return m.health }

// Enabled reports whether a database is connected.
func (m *Manager) Enabled() bool { return m.db != nil }

// Close releases the pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:   true,
			Errors:    []string{"persistence disabled"},
			LastCheck: time.Now(),
		}
	}

	start := time.Now()
	check := persistence.HealthCheck{Healthy: true, LastCheck: start}

	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.db.PingContext(pingCtx); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, fmt.Sprintf("ping failed: %v", err))
	}

	stats := h.db.Stats()
	check.ConnectionPool = map[string]int{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
	}
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	return check
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}
