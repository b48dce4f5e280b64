package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/carmarket/backend/internal/domain/application"
	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/gin-gonic/gin"
)

type QuoteService interface {
	Quote(ctx context.Context, in application.QuoteInput) (*application.QuoteResult, error)
	EligiblePartners(ctx context.Context, vehicleYear *int, listingID string) ([]partner.Entity, error)
}

// QuoteHandler serves the public financing simulator. Nothing here needs an
// identity.
type QuoteHandler struct {
	service QuoteService
}

func NewQuoteHandler(service QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

func (h *QuoteHandler) Quote(c *gin.Context) {
	var req application.QuoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	res, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *QuoteHandler) Partners(c *gin.Context) {
	var year *int
	if raw := strings.TrimSpace(c.Query("vehicle_year")); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1900 || y > 9999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_vehicle_year"})
			return
		}
		year = &y
	}
	items, err := h.service.EligiblePartners(c.Request.Context(), year, c.Query("listing_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
