package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports liveness and, for readiness, pings every named
// dependency. A nil pinger is reported as not ready.
type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "carmarket-credit",
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ready"}
	if len(h.checks) == 0 {
		status = http.StatusServiceUnavailable
		body["status"] = "not_ready"
	}
	for name, p := range h.checks {
		if p == nil || p.Ping(ctx) != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
			body[name] = "error"
			continue
		}
		body[name] = "ok"
	}
	c.JSON(status, body)
}
