// Package cards owns card records: validation, masking and per-owner access.
package cards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cacheTTL bounds how long a cached card list may live
const cacheTTL = 60 * time.Second

// CardInput is what a link-card request carries.
type CardInput struct {
	CardNumber     string `json:"card_number" binding:"required"`
	CVV            string `json:"cvv" binding:"required"`
	CardHolderName string `json:"card_holder_name" binding:"required"`
	ExpiryMonth    string `json:"expiry_month" binding:"required"`
	ExpiryYear     string `json:"expiry_year" binding:"required"`
}

// Registry stores cards, partitioned by owner.
type Registry struct {
	db    *gorm.DB
	cache *utils.Cache
	now   func() time.Time
}

// NewRegistry creates a registry; cache may be nil.
func NewRegistry(db *gorm.DB, cache *utils.Cache) *Registry {
	return &Registry{db: db, cache: cache, now: time.Now}
}

// SetClock overrides the clock used for expiry checks.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func cacheKey(userID uint) string {
	return "cards:user:" + strconv.FormatUint(uint64(userID), 10)
}

// AddCard validates in and stores a masked card for owner.
func (r *Registry) AddCard(ctx context.Context, owner domain.Principal, in CardInput) (*domain.Card, error) {
	number, err := NormalizeNumber(in.CardNumber)
	if err != nil {
		return nil, err
	}
	if err := validateCVV(in.CVV); err != nil {
		return nil, err
	}
	holder, err := validateHolder(in.CardHolderName)
	if err != nil {
		return nil, err
	}
	month, year, err := validateExpiry(in.ExpiryMonth, in.ExpiryYear, r.now().UTC())
	if err != nil {
		return nil, err
	}

	card := domain.Card{
		UserID:         owner.UserID,
		CardType:       DetectType(number),
		MaskedNumber:   Mask(number),
		LastFour:       number[len(number)-4:],
		CardHolderName: holder,
		ExpiryMonth:    month,
		ExpiryYear:     year,
	}
	if err := r.db.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	_ = r.cache.Delete(ctx, cacheKey(owner.UserID))

	logrus.WithFields(logrus.Fields{
		"user_id":   owner.UserID,
		"card_id":   card.ID,
		"card_type": card.CardType,
		"last_four": card.LastFour,
	}).Info("Card linked")
	return &card, nil
}

// ListCards returns owner's cards in insertion order.
func (r *Registry) ListCards(ctx context.Context, owner domain.Principal) ([]domain.Card, error) {
	key := cacheKey(owner.UserID)
	var cards []domain.Card
	if found, err := r.cache.Get(ctx, key, &cards); err == nil && found {
		return cards, nil
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", owner.UserID).Order("id asc").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	_ = r.cache.Set(ctx, key, cards, cacheTTL)
	return cards, nil
}

// ListAllCards returns every linked card across users. Admin only.
func (r *Registry) ListAllCards(ctx context.Context, p domain.Principal) ([]domain.Card, error) {
	if !p.Admin {
		return nil, domain.Auth("admin access required")
	}
	var cards []domain.Card
	if err := r.db.WithContext(ctx).Order("id asc").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list all cards: %w", err)
	}
	return cards, nil
}

// GetCard returns a live card owned by owner.
func (r *Registry) GetCard(ctx context.Context, owner domain.Principal, id uint) (*domain.Card, error) {
	var card domain.Card
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner.UserID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("card not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return &card, nil
}

// Lookup returns a card by id regardless of owner or deletion. Used by the
// gateway, which needs the card a historical transaction was created with.
func (r *Registry) Lookup(ctx context.Context, id uint) (*domain.Card, error) {
	var card domain.Card
	err := r.db.WithContext(ctx).Unscoped().First(&card, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("card not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup card: %w", err)
	}
	return &card, nil
}

// DeleteCard soft-deletes owner's card. Transactions keep pointing at it.
func (r *Registry) DeleteCard(ctx context.Context, owner domain.Principal, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner.UserID).Delete(&domain.Card{})
	if res.Error != nil {
		return fmt.Errorf("delete card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("card not found")
	}
	_ = r.cache.Delete(ctx, cacheKey(owner.UserID))

	logrus.WithFields(logrus.Fields{
		"user_id": owner.UserID,
		"card_id": id,
	}).Info("Card deleted")
	return nil
}
