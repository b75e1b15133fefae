package api

import (
	"errors"                              // Error unwrapping
	"net/http"                            // HTTP status codes
	"payment_gateway/internal/domain"     // Error kinds
	"payment_gateway/internal/middleware" // Request context helpers
	"strconv"                             // Path parameter parsing

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps an error kind to its HTTP status
var statusFor = map[domain.Kind]int{
	domain.KindValidation: http.StatusBadRequest,
	domain.KindNotFound:   http.StatusNotFound,
	domain.KindConflict:   http.StatusConflict,
	domain.KindAuth:       http.StatusForbidden,
}

// respondError writes err as {"error", "kind"}. Unclassified errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status, ok := statusFor[kind]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("requestID"), // Correlate with the access log
			"path":       c.FullPath(),             // Route pattern
			"error":      err.Error(),              // Error message
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "kind": domain.KindInternal})
		return
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message // Drop the kind prefix
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

// badRequest rejects a malformed body or parameter
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": domain.KindValidation})
}

// principal fetches the caller identity, answering 401 when it is missing
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": domain.KindAuth})
	}
	return p, ok
}

// idParam parses a numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// maxPage bounds the page query parameter so offsets stay in range
const maxPage = 1_000_000

// pagination reads page and page_size the way every paginated listing does
func pagination(c *gin.Context) (page, pageSize int) {
	page = 1      // Default page number
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = min(v, maxPage) // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}
