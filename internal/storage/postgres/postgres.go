// Package postgres persists the simulation journal to PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hexbeat/internal/config"
)

// ApplicationName tags journal connections in pg_stat_activity.
const ApplicationName = "hexbeat-journal"

// ErrSchemaMissing is returned by CheckSchema when a journal table is absent.
var ErrSchemaMissing = errors.New("journal schema missing; run cmd/migrate up")

// journalTables are the tables BeginRun and WriteEvents depend on.
var journalTables = []string{"journal_runs", "journal_events"}

// Pool is the journal's connection pool. The recorder writes one COPY batch at
// a time, so the pool stays small and idle connections are checked often.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the journal database.
//
// Precondition: cfg must pass config.ValidateDatabase.
// Postcondition: Returns a pinged Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.NewPool: pinging %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// CheckSchema verifies that the journal tables exist.
//
// Postcondition: Returns an error wrapping ErrSchemaMissing naming the first
// absent table, or nil.
func (p *Pool) CheckSchema(ctx context.Context) error {
	for _, table := range journalTables {
		var present bool
		if err := p.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&present); err != nil {
			return fmt.Errorf("postgres.CheckSchema: %s: %w", table, err)
		}
		if !present {
			return fmt.Errorf("postgres.CheckSchema: %s: %w", table, ErrSchemaMissing)
		}
	}
	return nil
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
