package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Transaction Model. Rows are append-only; only Resolve touches status,
// message and resolved_at, and only once.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`                                            // Primary key
	UserID         uint            `gorm:"index;not null;uniqueIndex:idx_tx_idempotency,priority:1" json:"user_id"` // Owning user
	CardID         uint            `gorm:"index;not null" json:"card_id"`                                   // Card charged
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`                       // Positive amount
	Currency       string          `gorm:"size:3;not null;default:USD" json:"currency"`                     // ISO currency code
	Description    string          `gorm:"type:text" json:"description"`                                    // Optional free text
	PaymentMethod  string          `gorm:"size:50" json:"payment_method"`                                   // Card summary at creation
	Status         string          `gorm:"size:20;not null;default:PENDING;index" json:"status"`            // PENDING, SUCCESS or FAILED
	Message        string          `gorm:"size:255" json:"message,omitempty"`                               // Gateway message
	IdempotencyKey *string         `gorm:"size:64;uniqueIndex:idx_tx_idempotency,priority:2" json:"-"`     // Client retry key
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`                                         // Creation time (UTC)
	ResolvedAt     *time.Time      `json:"resolved_at"`                                                     // Set once, on resolution

	Card *Card `gorm:"foreignKey:CardID" json:"card_details,omitempty"` // Card, including soft-deleted ones
	User *User `gorm:"foreignKey:UserID" json:"-"`                      // Owner
}

// IsTerminal reports whether the status can no longer change
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

// IsValidStatus reports whether status is one of the three known statuses
func IsValidStatus(status string) bool {
	return status == StatusPending || IsTerminal(status)
}

// Currencies accepted by the ledger
var Currencies = map[string]bool{
	"USD": true, // US Dollar
	"EUR": true, // Euro
	"GBP": true, // British Pound
	"INR": true, // Indian Rupee
}
