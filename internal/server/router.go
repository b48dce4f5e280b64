package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/config"
	"github.com/carmarket/backend/internal/http/handlers"
	"github.com/carmarket/backend/internal/http/middleware"
	"github.com/carmarket/backend/internal/observability"
	"github.com/carmarket/backend/internal/version"
	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	HealthChecks       map[string]handlers.Pinger
	ApplicationHandler *handlers.ApplicationHandler
	QuoteHandler       *handlers.QuoteHandler
	JWTManager         *auth.JWTManager
	Metrics            *observability.Metrics
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", "err", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "err", c.Errors.String())
			logger.Error("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	})
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.Use(middleware.RequestBodyLimit(cfg.MaxRequestBodyBytes))

	health := handlers.NewHealthHandler(deps.HealthChecks)
	meta := handlers.NewMetaHandler(handlers.Meta{
		Env:                 cfg.Env,
		Version:             version.Version,
		Commit:              version.Commit,
		MinDownPaymentRatio: cfg.MinDownPaymentRatio,
	})

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.QuoteHandler != nil {
		limiter := middleware.NewRateLimiter(cfg.PublicRateLimitRPS, int(cfg.PublicRateLimitBurst))
		public := r.Group("/v1")
		public.Use(limiter.Handler())
		public.POST("/quotes", deps.QuoteHandler.Quote)
		public.GET("/partners", deps.QuoteHandler.Partners)
	}

	if deps.ApplicationHandler != nil && deps.JWTManager != nil {
		apps := r.Group("/v1/applications")
		apps.Use(middleware.RequireAuth(deps.JWTManager, cfg.AuthEnableBearer))
		apps.POST("", deps.ApplicationHandler.Submit)
		apps.GET("", deps.ApplicationHandler.List)
		apps.GET("/:applicationId", deps.ApplicationHandler.Get)
		apps.POST("/:applicationId/transitions", deps.ApplicationHandler.Transition)
		apps.POST("/:applicationId/documents", deps.ApplicationHandler.AppendDocument)
		apps.GET("/:applicationId/schedule", deps.ApplicationHandler.Schedule)
		apps.GET("/:applicationId/audit",
			middleware.RequireReviewer(auth.RoleGate{}),
			deps.ApplicationHandler.AuditTrail,
		)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
