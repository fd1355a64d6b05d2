package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/config"
)

// ledgerApplicationName tags ledger sessions in pg_stat_activity unless the DSN sets its own.
const ledgerApplicationName = "gap-pos-ledger"

// ErrLedgerDisabled is returned by Ping when no POSTGRES_DSN was configured.
var ErrLedgerDisabled = errors.New("policy ledger is not configured")

// Postgres owns the connection pool of the policy ledger. The ledger is optional:
// without a DSN the zero value is returned and Enabled reports false.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the ledger and verifies the connection.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; policy records will not be persisted")
		return &Postgres{}, nil
	}

	poolCfg, err := ledgerPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open policy ledger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping policy ledger: %w", err)
	}

	logger.Info("policy ledger connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &Postgres{pool: pool}, nil
}

// ledgerPoolConfig parses the DSN and applies the pool limits of cfg. Zero limits keep pgx defaults.
func ledgerPoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	if poolCfg.ConnConfig.RuntimeParams["application_name"] == "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = ledgerApplicationName
	}
	return poolCfg, nil
}

func (p *Postgres) Enabled() bool {
	return p != nil && p.pool != nil
}

// Pool returns the pgx pool, nil when the ledger is disabled.
func (p *Postgres) Pool() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Ping backs the health endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return ErrLedgerDisabled
	}
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.Enabled() {
		p.pool.Close()
	}
}
