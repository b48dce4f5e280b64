package db

import (
	"context"
	"testing"
	"time"

	"github.com/carmarket/backend/internal/config"
)

func TestConnLifetime(t *testing.T) {
	cases := map[string]time.Duration{
		"10m":   10 * time.Minute,
		"":      defaultMaxConnLifetime,
		"bogus": defaultMaxConnLifetime,
		"-1s":   defaultMaxConnLifetime,
	}
	for raw, want := range cases {
		if got := connLifetime(raw); got != want {
			t.Errorf("connLifetime(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewPostgresPoolRejectsBadURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), config.Config{DatabaseURL: "://nope"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPoolConfigDefaults(t *testing.T) {
	cfg := config.Config{
		DatabaseURL:       "postgres://u:p@localhost:5432/credit",
		DBMaxConns:        7,
		DBMinConns:        1,
		DBMaxConnLifetime: "5m",
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if poolCfg.MaxConns != 7 || poolCfg.MinConns != 1 {
		t.Fatalf("unexpected conns: max=%d min=%d", poolCfg.MaxConns, poolCfg.MinConns)
	}
	if poolCfg.MaxConnLifetime != 5*time.Minute || poolCfg.HealthCheckPeriod != healthCheckPeriod {
		t.Fatalf("unexpected timings: %s %s", poolCfg.MaxConnLifetime, poolCfg.HealthCheckPeriod)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Fatalf("expected default application_name, got %q", got)
	}

	cfg.DatabaseURL += "?application_name=migrator"
	poolCfg, err = poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "migrator" {
		t.Fatalf("explicit application_name must win, got %q", got)
	}
}
