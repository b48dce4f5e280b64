package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/carmarket/backend/internal/domain/amortization"
	"github.com/carmarket/backend/internal/domain/application"
	"github.com/carmarket/backend/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

type ApplicationService interface {
	Submit(ctx context.Context, applicantID string, in application.SubmitInput) (*application.Entity, error)
	Get(ctx context.Context, applicationID string, identity application.Identity) (*application.Entity, error)
	List(ctx context.Context, identity application.Identity, f application.ListFilter) ([]application.Entity, error)
	Transition(ctx context.Context, applicationID string, identity application.Identity, action application.Action, payload application.TransitionPayload) (*application.Entity, error)
	AppendDocument(ctx context.Context, applicationID string, identity application.Identity, in application.DocumentInput) (*application.Entity, error)
	Schedule(ctx context.Context, applicationID string, identity application.Identity) ([]amortization.Installment, error)
}

type AuditTrailReader interface {
	ListByTarget(ctx context.Context, targetType, targetID string) ([]application.AuditEntry, error)
}

type ApplicationHandler struct {
	service ApplicationService
	audit   AuditTrailReader
}

func NewApplicationHandler(service ApplicationService, audit AuditTrailReader) *ApplicationHandler {
	return &ApplicationHandler{service: service, audit: audit}
}

func identityFrom(c *gin.Context) application.Identity {
	return application.Identity{
		ID:   c.GetString(middleware.ContextUserID),
		Role: c.GetString(middleware.ContextUserRole),
	}
}

func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req application.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	app, err := h.service.Submit(c.Request.Context(), identityFrom(c).ID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newApplicationView(app))
}

func (h *ApplicationHandler) List(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)

	status := application.Status(strings.TrimSpace(c.Query("status")))
	if status != "" && statusLabels[status] == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}
	f := application.ListFilter{
		ApplicantID:      strings.TrimSpace(c.Query("applicant_id")),
		Status:           status,
		VehicleListingID: strings.TrimSpace(c.Query("vehicle_listing_id")),
		Limit:            int32(limit),
		Offset:           int32(offset),
	}
	if taxID := strings.TrimSpace(c.Query("tax_id")); taxID != "" {
		f.TaxIDHash = application.HashTaxID(taxID)
	}

	items, err := h.service.List(c.Request.Context(), identityFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]applicationView, 0, len(items))
	for i := range items {
		views = append(views, newApplicationView(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), strings.TrimSpace(c.Param("applicationId")), identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newApplicationView(app))
}

type transitionRequest struct {
	Action application.Action `json:"action"`
	application.TransitionPayload
}

func (h *ApplicationHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	app, err := h.service.Transition(
		c.Request.Context(),
		strings.TrimSpace(c.Param("applicationId")),
		identityFrom(c),
		application.Action(strings.TrimSpace(string(req.Action))),
		req.TransitionPayload,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newApplicationView(app))
}

func (h *ApplicationHandler) AppendDocument(c *gin.Context) {
	var req application.DocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	app, err := h.service.AppendDocument(c.Request.Context(), strings.TrimSpace(c.Param("applicationId")), identityFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newApplicationView(app))
}

func (h *ApplicationHandler) Schedule(c *gin.Context) {
	rows, err := h.service.Schedule(c.Request.Context(), strings.TrimSpace(c.Param("applicationId")), identityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// AuditTrail is mounted behind the reviewer role check.
func (h *ApplicationHandler) AuditTrail(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	applicationID := strings.TrimSpace(c.Param("applicationId"))
	if _, err := h.service.Get(c.Request.Context(), applicationID, identityFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.audit.ListByTarget(c.Request.Context(), application.AuditTargetType, applicationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit_trail_failed"})
		return
	}
	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, gin.H{
			"actorId":   e.ActorID,
			"action":    e.Action,
			"payload":   json.RawMessage(e.Payload),
			"createdAt": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
