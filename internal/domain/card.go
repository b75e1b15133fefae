package domain

import (
	"time"

	"gorm.io/gorm"
)

// Card networks recognised by the registry
const (
	CardVisa       = "VISA"
	CardMastercard = "MASTERCARD"
	CardAmex       = "AMEX"
	CardDiscover   = "DISCOVER"
	CardUnknown    = "UNKNOWN"
)

// Card Model. The full number and CVV are never persisted.
type Card struct {
	ID             uint           `gorm:"primaryKey" json:"id"`                  // Primary key
	UserID         uint           `gorm:"index;not null" json:"user_id"`         // Owning user
	CardType       string         `gorm:"size:20;not null" json:"card_type"`     // Detected network
	MaskedNumber   string         `gorm:"size:19;not null" json:"masked_number"` // **** **** **** 1234
	LastFour       string         `gorm:"size:4;not null" json:"last_four_digits"`
	CardHolderName string         `gorm:"size:100;not null" json:"card_holder_name"`
	ExpiryMonth    string         `gorm:"size:2;not null" json:"expiry_month"` // 01..12
	ExpiryYear     string         `gorm:"size:4;not null" json:"expiry_year"`  // Four digits
	CreatedAt      time.Time      `json:"created_at"`                          // Link time
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                      // Soft delete marker
}

// Summary is the short form shown next to a transaction, e.g. "VISA - 4242"
func (c Card) Summary() string {
	return c.CardType + " - " + c.LastFour
}
