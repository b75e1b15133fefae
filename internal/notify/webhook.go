// Package notify delivers payment resolution events to an outbound webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"payment_gateway/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// Event is the JSON body posted to the webhook.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       PaymentData `json:"data"`
}

// PaymentData describes the resolved transaction.
type PaymentData struct {
	TransactionID uint   `json:"transaction_id"`
	UserID        uint   `json:"user_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Webhook posts events to a single URL.
type Webhook struct {
	url    string
	client *resty.Client
}

// NewWebhook creates a notifier for url. Each delivery gets timeout and is
// tried once.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "payment-gateway-webhook/1")
	return &Webhook{url: url, client: client}
}

// EventFor builds the event announcing tx's resolution.
func EventFor(tx domain.Transaction) Event {
	typ := EventPaymentFailed
	if tx.Status == domain.StatusSuccess {
		typ = EventPaymentSucceeded
	}
	occurred := tx.CreatedAt.UTC()
	if tx.ResolvedAt != nil {
		occurred = tx.ResolvedAt.UTC()
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: occurred,
		Data: PaymentData{
			TransactionID: tx.ID,
			UserID:        tx.UserID,
			Amount:        tx.Amount.StringFixed(2),
			Currency:      tx.Currency,
			Status:        tx.Status,
			Message:       tx.Message,
		},
	}
}

// PaymentResolved posts the resolution of tx. Any non-2xx answer is an error.
func (w *Webhook) PaymentResolved(ctx context.Context, tx domain.Transaction) error {
	ev := EventFor(tx)
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Event-ID", ev.ID).
		SetBody(ev).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post %s: %w", ev.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post %s: webhook answered %d", ev.Type, resp.StatusCode())
	}

	logrus.WithFields(logrus.Fields{
		"event_id":       ev.ID,
		"event":          ev.Type,
		"transaction_id": tx.ID,
	}).Debug("Webhook delivered")
	return nil
}
