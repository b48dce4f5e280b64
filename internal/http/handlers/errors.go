package handlers

import (
	"errors"
	"net/http"

	"github.com/carmarket/backend/internal/domain/application"
	"github.com/gin-gonic/gin"
)

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged by the caller's recovery path and reported as a bare 500.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *application.ValidationError
		notFoundErr   *application.NotFoundError
		forbiddenErr  *application.ForbiddenError
		illegalErr    *application.IllegalTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "violations": validationErr.Violations})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Resource + "_not_found"})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.As(err, &illegalErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "illegal_transition",
			"from":   illegalErr.From,
			"action": illegalErr.Action,
		})
	case errors.Is(err, application.ErrNotApproved):
		c.JSON(http.StatusConflict, gin.H{"error": "application_not_approved"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
