package api

import (
	"net/http"                            // HTTP status codes
	"payment_gateway/internal/cards"      // Card registry
	"payment_gateway/internal/export"     // Export service
	"payment_gateway/internal/gateway"    // Gateway simulator
	"payment_gateway/internal/ledger"     // Transaction ledger
	"payment_gateway/internal/middleware" // Auth and request id middleware
	"payment_gateway/internal/stats"      // Statistics engine

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// Deps are the services the HTTP layer exposes
type Deps struct {
	DB        *gorm.DB           // User accounts and health checks
	JWTSecret string             // HS256 signing key
	Cards     *cards.Registry    // Card registry
	Ledger    *ledger.Ledger     // Transaction ledger
	Gateway   *gateway.Simulator // Payment resolution
	Stats     *stats.Engine      // Admin statistics
	Export    *export.Service    // Admin exports
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestIDMiddleware())

	// Public routes
	r.GET("/health", HealthHandler(d.DB))
	r.GET("/gateway/test-cards", TestCardsHandler())
	r.POST("/auth/register", RegisterHandler(d.DB))
	r.POST("/auth/login", LoginHandler(d.DB, d.JWTSecret))

	// Authenticated routes
	auth := r.Group("/")
	auth.Use(middleware.JWTAuthMiddleware(d.DB, d.JWTSecret))
	auth.GET("/auth/profile", ProfileHandler())
	auth.POST("/cards", AddCardHandler(d.Cards))
	auth.GET("/cards", ListCardsHandler(d.Cards))
	auth.GET("/cards/:id", GetCardHandler(d.Cards))
	auth.DELETE("/cards/:id", DeleteCardHandler(d.Cards))
	auth.POST("/transactions", CreateTransactionHandler(d.Ledger))
	auth.GET("/transactions", ListTransactionsHandler(d.Ledger))
	auth.GET("/transactions/:id", GetTransactionHandler(d.Ledger))
	auth.POST("/payments/process", ProcessPaymentHandler(d.Ledger, d.Gateway))

	// Admin routes (protected, admin only)
	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnlyMiddleware())
	admin.GET("/dashboard", DashboardHandler(d.Stats))
	admin.GET("/daily-summary", DailySummaryHandler(d.Stats))
	admin.GET("/transactions", AdminTransactionsHandler(d.Ledger))
	admin.GET("/export", ExportHandler(d.Export))
	admin.GET("/cards", AdminCardsHandler(d.Cards))
	admin.GET("/users", ListUsersHandler(d.DB))
	admin.GET("/users/:id", UserDetailsHandler(d.DB, d.Cards, d.Ledger))
	admin.PATCH("/users/:id/toggle-status", ToggleUserStatusHandler(d.DB))

	return r
}

// HealthHandler reports whether the database answers
func HealthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
