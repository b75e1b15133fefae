package api

import (
	"net/http"                       // HTTP status codes
	"payment_gateway/internal/cards" // Card registry

	"github.com/gin-gonic/gin" // Gin web framework
)

// AddCardHandler links a new card to the caller
func AddCardHandler(reg *cards.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req cards.CardInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "card_number, cvv, card_holder_name, expiry_month and expiry_year are required")
			return
		}
		card, err := reg.AddCard(c.Request.Context(), p, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Card added successfully", "card": card})
	}
}

// ListCardsHandler returns the caller's cards, oldest first
func ListCardsHandler(reg *cards.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		list, err := reg.ListCards(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": list, "count": len(list)})
	}
}

// GetCardHandler returns one of the caller's cards
func GetCardHandler(reg *cards.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		card, err := reg.GetCard(c.Request.Context(), p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"card": card})
	}
}

// DeleteCardHandler removes one of the caller's cards
func DeleteCardHandler(reg *cards.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := reg.DeleteCard(c.Request.Context(), p, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
	}
}
