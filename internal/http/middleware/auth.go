package middleware

import (
	"net/http"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/domain/application"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

func RequireAuth(jwt *auth.JWTManager, allowBearer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.AccessToken(c.Request, allowBearer)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(raw)
		if err != nil || claims.Type != auth.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// ReviewerGate is the slice of the application gate the route guard needs.
type ReviewerGate interface {
	CanReview(identity application.Identity) bool
}

// RequireReviewer must run after RequireAuth.
func RequireReviewer(gate ReviewerGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := application.Identity{
			ID:   c.GetString(ContextUserID),
			Role: c.GetString(ContextUserRole),
		}
		if identity.ID == "" || !gate.CanReview(identity) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
