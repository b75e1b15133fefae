package middleware

import (
	"net/http"                        // HTTP status codes
	"payment_gateway/internal/domain" // Domain models

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware lets only administrators through. It must run after
// JWTAuthMiddleware, which loads the role from the database.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, exists := CurrentPrincipal(c) // Get principal from context
		// Check if principal exists in context
		if !exists {
			abort(c, http.StatusUnauthorized, domain.KindAuth, "Unauthorized")
			return
		}
		// Check if user role is admin
		if !p.Admin {
			abort(c, http.StatusForbidden, domain.KindAuth, "Admin access required")
			return
		}
		c.Next() // If admin, proceed to the next handler
	}
}
