package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/cache"
	"github.com/carmarket/backend/internal/config"
	"github.com/carmarket/backend/internal/db"
	applicationdomain "github.com/carmarket/backend/internal/domain/application"
	partnerdomain "github.com/carmarket/backend/internal/domain/partner"
	"github.com/carmarket/backend/internal/http/handlers"
	"github.com/carmarket/backend/internal/observability"
	postgresrepo "github.com/carmarket/backend/internal/repository/postgres"
	"github.com/carmarket/backend/internal/server"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	healthChecks := map[string]handlers.Pinger{"database": pool}

	var partnerSource partnerdomain.Source = postgresrepo.NewPartnerRepository(pool)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		partnerSource = cache.NewPartnerSource(partnerSource, rdb, cfg.PartnerCacheTTL, logger)
		healthChecks["cache"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	minDownPayment, err := decimal.NewFromString(cfg.MinDownPaymentRatio)
	if err != nil || minDownPayment.IsNegative() || minDownPayment.GreaterThan(decimal.NewFromInt(1)) {
		logger.Error("invalid MIN_DOWN_PAYMENT_RATIO", "value", cfg.MinDownPaymentRatio)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditRepo := postgresrepo.NewAuditRepository(pool)
	applicationService := applicationdomain.NewService(
		postgresrepo.NewApplicationRepository(pool),
		auditRepo,
		partnerdomain.NewCatalog(partnerSource),
		postgresrepo.NewVehicleRepository(pool),
		auth.RoleGate{},
		applicationdomain.WithLogger(logger),
		applicationdomain.WithMetrics(metrics),
		applicationdomain.WithStrictVisibility(cfg.StrictVisibility),
		applicationdomain.WithMinDownPaymentRatio(minDownPayment),
	)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		HealthChecks:       healthChecks,
		ApplicationHandler: handlers.NewApplicationHandler(applicationService, auditRepo),
		QuoteHandler:       handlers.NewQuoteHandler(applicationService),
		JWTManager:         auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey),
		Metrics:            metrics,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr(), "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
