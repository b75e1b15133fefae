package api

import (
	"net/http"                         // HTTP status codes
	"payment_gateway/internal/gateway" // Gateway simulator
	"payment_gateway/internal/ledger"  // Transaction ledger

	"github.com/gin-gonic/gin" // Gin web framework
)

// IdempotencyHeader lets clients retry transaction creation safely
const IdempotencyHeader = "Idempotency-Key"

// CreateTransactionHandler records a PENDING payment intent
func CreateTransactionHandler(led *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req ledger.CreateInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "card_id and a numeric amount are required")
			return
		}
		req.IdempotencyKey = c.GetHeader(IdempotencyHeader) // Optional retry key
		tx, replayed, err := led.Create(c.Request.Context(), p, req)
		if err != nil {
			respondError(c, err)
			return
		}
		// A replay answers with the first transaction
		if replayed {
			c.Header("Idempotent-Replayed", "true")
			c.JSON(http.StatusOK, gin.H{"message": "Transaction already created", "transaction": tx})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Transaction created successfully", "transaction": tx})
	}
}

// ListTransactionsHandler returns the caller's transactions, newest first,
// narrowed by the status, date_from, date_to, min_amount and max_amount query
// parameters.
func ListTransactionsHandler(led *ledger.Ledger) gin.HandlerFunc {
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
		txs, err := led.List(c.Request.Context(), p, f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
	}
}

// GetTransactionHandler returns one of the caller's transactions
func GetTransactionHandler(led *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		tx, err := led.Get(c.Request.Context(), p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transaction": tx})
	}
}

// ProcessPaymentRequest is the body of POST /payments/process
type ProcessPaymentRequest struct {
	TransactionID uint `json:"transaction_id" binding:"required"` // PENDING transaction to resolve
}

// ProcessPaymentHandler runs the gateway on one of the caller's transactions
func ProcessPaymentHandler(led *ledger.Ledger, sim *gateway.Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req ProcessPaymentRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "transaction_id is required")
			return
		}
		// Ownership check; other users' transactions look absent
		if _, err := led.Get(c.Request.Context(), p, req.TransactionID); err != nil {
			respondError(c, err)
			return
		}
		res, err := sim.ProcessPayment(c.Request.Context(), req.TransactionID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// TestCardsHandler lists sample cards and the outcome each one produces
func TestCardsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list := gateway.TestCards()
		c.JSON(http.StatusOK, gin.H{
			"cards": list,
			"rule":  "last four digits 0000-4999 succeed, 5000-9999 fail",
		})
	}
}
