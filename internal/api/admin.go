package api

import (
	"errors"                          // Error inspection
	"net/http"                        // HTTP status codes
	"payment_gateway/internal/cards"  // Card registry
	"payment_gateway/internal/domain" // Domain models
	"payment_gateway/internal/export" // CSV / XLSX export
	"payment_gateway/internal/ledger" // Transaction ledger
	"payment_gateway/internal/stats"  // Dashboard and summaries
	"strconv"                         // Header formatting
	"time"                            // Current instant

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// DashboardHandler returns the admin overview
func DashboardHandler(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		d, err := engine.DashboardStats(c.Request.Context(), p, time.Now().UTC())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dashboard": d})
	}
}

// DailySummaryHandler summarizes ?date=YYYY-MM-DD, today (UTC) by default
func DailySummaryHandler(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		date := time.Now().UTC() // Default to today
		if s := c.Query("date"); s != "" {
			d, err := ledger.ParseDate(s)
			if err != nil {
				respondError(c, err)
				return
			}
			date = d
		}
		s, err := engine.DailySummary(c.Request.Context(), p, date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": s})
	}
}

// AdminTransactionsHandler lists every user's transactions with optional
// filters (status, date_from, date_to, min_amount, max_amount, user_id),
// paginated with page and page_size.
func AdminTransactionsHandler(led *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		f, err := ledger.ParseFilter(c.Query)
		if err != nil {
			respondError(c, err)
			return
		}
		if f.UserID == nil {
			f.AllUsers = true // Every owner unless narrowed to one
		}
		txs, err := led.List(c.Request.Context(), p, f)
		if err != nil {
			respondError(c, err)
			return
		}
		page, pageSize := pagination(c)
		total := len(txs)
		start := min((page-1)*pageSize, total)
		end := min(start+pageSize, total)
		totalPages := (total + pageSize - 1) / pageSize
		c.JSON(http.StatusOK, gin.H{
			"transactions": txs[start:end], // Page of transactions
			"page":         page,           // Current page
			"page_size":    pageSize,       // Page size
			"total":        total,          // Total number of transactions
			"total_pages":  totalPages,     // Total pages
		})
	}
}

// ExportHandler downloads the filtered transactions as CSV or XLSX (?format=)
func ExportHandler(svc *export.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			respondError(c, err)
			return
		}
		f, err := ledger.ParseFilter(c.Query)
		if err != nil {
			respondError(c, err)
			return
		}
		file, err := svc.Export(c.Request.Context(), p, f, format)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
		c.Header("X-Export-Rows", strconv.Itoa(file.Rows))
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}

// AdminCardsHandler lists every linked card
func AdminCardsHandler(reg *cards.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		list, err := reg.ListAllCards(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": list, "count": len(list)})
	}
}

// ListUsersHandler returns users, newest first, paginated
func ListUsersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pagination(c)
		offset := (page - 1) * pageSize // Calculate offset for pagination
		var total int64                 // Total user count
		ctx := c.Request.Context()
		if err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		var users []domain.User // Slice to hold users
		if err := db.WithContext(ctx).Order("created_at desc").Order("id desc").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			respondError(c, err)
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		c.JSON(http.StatusOK, gin.H{
			"users":       users,      // List of users
			"page":        page,       // Current page
			"page_size":   pageSize,   // Page size
			"total":       total,      // Total number of users
			"total_pages": totalPages, // Total pages
		})
	}
}

// loadUser fetches the user named by the :id path parameter
func loadUser(c *gin.Context, db *gorm.DB) (*domain.User, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var user domain.User
	err := db.WithContext(c.Request.Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, domain.NotFound("User not found"))
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &user, true
}

// UserDetailsHandler returns a user with their cards, transactions and totals
func UserDetailsHandler(db *gorm.DB, reg *cards.Registry, led *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		user, ok := loadUser(c, db)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		userCards, err := reg.ListCards(ctx, user.Principal()) // Cards as the owner sees them
		if err != nil {
			respondError(c, err)
			return
		}
		txs, err := led.List(ctx, p, ledger.Filter{UserID: &user.ID})
		if err != nil {
			respondError(c, err)
			return
		}
		totals := stats.UserStats(txs)
		c.JSON(http.StatusOK, gin.H{
			"user":         user,
			"cards":        userCards,
			"transactions": txs,
			"stats": gin.H{
				"total_cards":        len(userCards),
				"total_transactions": totals.TotalTransactions,
				"total_spent":        totals.TotalSpent,
			},
		})
	}
}

// ToggleUserStatusHandler activates or deactivates a user
func ToggleUserStatusHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		user, ok := loadUser(c, db)
		if !ok {
			return
		}
		// Admins cannot toggle their own account
		if user.ID == p.UserID {
			respondError(c, domain.Validation("You cannot change your own status"))
			return
		}
		user.IsActive = !user.IsActive
		if err := db.WithContext(c.Request.Context()).Model(user).Update("is_active", user.IsActive).Error; err != nil {
			respondError(c, err)
			return
		}
		verb := "deactivated"
		if user.IsActive {
			verb = "activated"
		}
		logrus.WithFields(logrus.Fields{
			"admin_id":  p.UserID,      // Acting admin
			"user_id":   user.ID,       // Target user
			"is_active": user.IsActive, // New status
		}).Info("User status toggled")
		c.JSON(http.StatusOK, gin.H{"message": "User " + verb + " successfully", "user": user})
	}
}
