// Package ledger records payment intents and their one-time resolution.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment_gateway/internal/db"
	"payment_gateway/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxAmount is the largest amount a single transaction may carry.
var MaxAmount = decimal.NewFromInt(100000)

// maxKeyLen matches the idempotency_key column size
const maxKeyLen = 64

// CardSource resolves a card owned by the caller.
type CardSource interface {
	GetCard(ctx context.Context, owner domain.Principal, id uint) (*domain.Card, error)
}

// CreateInput is a payment intent.
type CreateInput struct {
	CardID         uint            `json:"card_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"-"`
}

// Outcome is the terminal result written by Resolve.
type Outcome struct {
	Status  string
	Message string
}

// Snapshot is a consistent view of the ledger plus the counts the dashboard needs.
type Snapshot struct {
	Transactions []domain.Transaction
	TotalUsers   int64
	TotalCards   int64
}

// Ledger owns transaction rows.
type Ledger struct {
	db    *gorm.DB
	cards CardSource
	now   func() time.Time
}

// New creates a ledger backed by db.
func New(db *gorm.DB, cards CardSource) *Ledger {
	return &Ledger{db: db, cards: cards, now: time.Now}
}

// SetClock overrides the clock stamping created_at and resolved_at.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// withRelations preloads the card (deleted or not) and owner.
func withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Card", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).Preload("User")
}

func validateCreate(in *CreateInput) error {
	if !in.Amount.IsPositive() {
		return domain.Validation("amount must be greater than 0")
	}
	if in.Amount.GreaterThan(MaxAmount) {
		return domain.Validation("amount cannot exceed %s", MaxAmount.String())
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return domain.Validation("amount cannot have more than 2 decimal places")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if !domain.Currencies[in.Currency] {
		return domain.Validation("unsupported currency %q", in.Currency)
	}
	if len(in.IdempotencyKey) > maxKeyLen {
		return domain.Validation("idempotency key longer than %d characters", maxKeyLen)
	}
	// CSV readers fold \r\n inside a quoted field to \n
	in.Description = strings.ReplaceAll(in.Description, "\r\n", "\n")
	return nil
}

// sameIntent reports whether a repeated idempotency key carries the
// payment it was first used for.
func sameIntent(existing *domain.Transaction, in CreateInput) bool {
	return existing.CardID == in.CardID &&
		existing.Amount.Equal(in.Amount) &&
		existing.Currency == in.Currency
}

func replay(existing *domain.Transaction, in CreateInput) (*domain.Transaction, bool, error) {
	if !sameIntent(existing, in) {
		return nil, false, domain.Conflict("idempotency key %q was already used for a different payment", in.IdempotencyKey)
	}
	return existing, true, nil
}

// Create records a PENDING transaction. It never resolves it. When
// in.IdempotencyKey repeats a key the owner already used, the first
// transaction is returned and replayed is true. A repeated key naming a
// different card, amount or currency is a conflict.
func (l *Ledger) Create(ctx context.Context, owner domain.Principal, in CreateInput) (*domain.Transaction, bool, error) {
	if err := validateCreate(&in); err != nil {
		return nil, false, err
	}
	card, err := l.cards.GetCard(ctx, owner, in.CardID)
	if err != nil {
		return nil, false, err
	}

	var key *string
	if in.IdempotencyKey != "" {
		key = &in.IdempotencyKey
		if existing, err := l.findByKey(ctx, owner.UserID, in.IdempotencyKey); err != nil {
			return nil, false, err
		} else if existing != nil {
			return replay(existing, in)
		}
	}

	row := domain.Transaction{
		UserID:         owner.UserID,
		CardID:         card.ID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Description:    in.Description,
		PaymentMethod:  card.Summary(),
		Status:         domain.StatusPending,
		IdempotencyKey: key,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		if key != nil {
			// lost a race against a concurrent request with the same key
			if existing, ferr := l.findByKey(ctx, owner.UserID, *key); ferr == nil && existing != nil {
				return replay(existing, in)
			}
		}
		return nil, false, fmt.Errorf("create transaction: %w", err)
	}
	row.Card = card

	logrus.WithFields(logrus.Fields{
		"transaction_id": row.ID,
		"user_id":        owner.UserID,
		"card_id":        card.ID,
		"amount":         row.Amount.StringFixed(2),
		"currency":       row.Currency,
	}).Info("Transaction created")
	return &row, false, nil
}

func (l *Ledger) findByKey(ctx context.Context, userID uint, key string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := withRelations(l.db.WithContext(ctx)).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by idempotency key: %w", err)
	}
	return &tx, nil
}

// Get returns transaction id. Non-admins only see their own.
func (l *Ledger) Get(ctx context.Context, p domain.Principal, id uint) (*domain.Transaction, error) {
	q := withRelations(l.db.WithContext(ctx)).Where("id = ?", id)
	if !p.Admin {
		q = q.Where("user_id = ?", p.UserID)
	}
	var tx domain.Transaction
	err := q.First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

// List returns the transactions matching f, newest first. Without AllUsers
// or UserID the listing is restricted to the caller's own rows.
func (l *Ledger) List(ctx context.Context, p domain.Principal, f Filter) ([]domain.Transaction, error) {
	if (f.AllUsers || f.UserID != nil) && !p.Admin {
		return nil, domain.Auth("admin access required")
	}
	q := f.apply(withRelations(l.db.WithContext(ctx).Model(&domain.Transaction{})))
	if !f.AllUsers && f.UserID == nil {
		q = q.Where("user_id = ?", p.UserID)
	}
	var txs []domain.Transaction
	if err := q.Order("created_at desc").Order("id desc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Resolve moves a PENDING transaction to a terminal status. The update is a
// compare-and-set on status, so at most one caller ever succeeds; the rest
// get a conflict and the row is left untouched.
func (l *Ledger) Resolve(ctx context.Context, id uint, out Outcome) (*domain.Transaction, error) {
	if !domain.IsTerminal(out.Status) {
		return nil, domain.Validation("cannot resolve to status %q", out.Status)
	}
	resolvedAt := l.now().UTC()
	res := l.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":      out.Status,
			"message":     out.Message,
			"resolved_at": resolvedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("resolve transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := l.db.WithContext(ctx).Model(&domain.Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("resolve transaction: %w", err)
		}
		if count == 0 {
			return nil, domain.NotFound("transaction not found")
		}
		return nil, domain.Conflict("transaction %d already processed", id)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": id,
		"status":         out.Status,
		"resolved_at":    resolvedAt.Format(time.RFC3339),
	}).Info("Transaction resolved")
	return l.Get(ctx, domain.Principal{Admin: true}, id)
}

// Snapshot reads the transactions matching f (all owners unless f.UserID is
// set) together with user and card totals inside one read-only transaction.
func (l *Ledger) Snapshot(ctx context.Context, f Filter) (*Snapshot, error) {
	var snap Snapshot
	gdb := l.db.WithContext(ctx)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := f.apply(withRelations(tx.Model(&domain.Transaction{}))).
			Order("created_at desc").Order("id desc").
			Find(&snap.Transactions).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.User{}).Count(&snap.TotalUsers).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Card{}).Count(&snap.TotalCards).Error
	}, db.SnapshotOptions(gdb))
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	return &snap, nil
}
