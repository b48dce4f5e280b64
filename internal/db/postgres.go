package db

import (
	"context"
	"time"

	"github.com/carmarket/backend/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName        = "carmarket-credit"
	defaultMaxConnLifetime = 30 * time.Minute
	healthCheckPeriod      = 30 * time.Second
)

// NewPostgresPool opens the pool and fails fast when the database is not
// reachable within ctx.
func NewPostgresPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func poolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = connLifetime(cfg.DBMaxConnLifetime)
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	if _, set := poolCfg.ConnConfig.RuntimeParams["application_name"]; !set {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}

func connLifetime(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultMaxConnLifetime
	}
	return d
}
