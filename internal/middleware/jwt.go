package middleware

import (
	"net/http"                        // HTTP status codes
	"payment_gateway/internal/domain" // Domain models
	"payment_gateway/internal/utils"  // JWT utility functions
	"strings"                         // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// Context keys set by JWTAuthMiddleware
const (
	UserKey      = "user"      // *domain.User
	PrincipalKey = "principal" // domain.Principal
)

// abort stops the chain with the same error body the handlers use
func abort(c *gin.Context, status int, kind domain.Kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}

// JWTAuthMiddleware validates JWT tokens and loads the calling user.
// The role is read from the database, never trusted from the token.
func JWTAuthMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, domain.KindAuth, "Missing or invalid Authorization header")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string and parse it
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			abort(c, http.StatusUnauthorized, domain.KindAuth, "Invalid or expired token")
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			abort(c, http.StatusUnauthorized, domain.KindAuth, "Invalid or expired token")
			return
		}
		// Deactivated accounts keep their token but lose access
		if !user.IsActive {
			abort(c, http.StatusForbidden, domain.KindAuth, "Account is deactivated")
			return
		}
		c.Set("userID", user.ID)              // Store userID in context
		c.Set(UserKey, &user)                 // Store the loaded user
		c.Set(PrincipalKey, user.Principal()) // Store the identity the services expect
		c.Next()                              // Proceed to the next handler
	}
}

// CurrentUser returns the user loaded by JWTAuthMiddleware
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

// CurrentPrincipal returns the principal set by JWTAuthMiddleware
func CurrentPrincipal(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
