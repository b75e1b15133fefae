// Package gateway resolves pending transactions with a deterministic,
// card-driven simulation of a payment network.
package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/ledger"
	"payment_gateway/internal/utils"

	"github.com/sirupsen/logrus"
)

// Gateway messages written to Transaction.Message.
const (
	MsgApproved   = "Payment processed successfully"
	MsgDeclined   = "Insufficient funds or card declined"
	MsgUnreadable = "Card could not be read"
)

// declineFrom is the smallest last-four value that is declined
const declineFrom = 5000

// Ledger is the part of the transaction ledger the simulator needs.
type Ledger interface {
	Get(ctx context.Context, p domain.Principal, id uint) (*domain.Transaction, error)
	Resolve(ctx context.Context, id uint, out ledger.Outcome) (*domain.Transaction, error)
}

// CardLookup finds a card by id, including deleted cards.
type CardLookup interface {
	Lookup(ctx context.Context, id uint) (*domain.Card, error)
}

// Notifier is told about every resolution. Implementations must not block for long.
type Notifier interface {
	PaymentResolved(ctx context.Context, tx domain.Transaction) error
}

// Result is the outcome of one ProcessPayment call.
type Result struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Transaction *domain.Transaction `json:"transaction"`
}

// Simulator is the gateway.
type Simulator struct {
	ledger   Ledger
	cards    CardLookup
	locks    utils.Locker
	delay    time.Duration
	notifier Notifier
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDelay adds an artificial processing delay before each payment.
func WithDelay(d time.Duration) Option {
	return func(s *Simulator) { s.delay = d }
}

// WithNotifier registers n to hear about resolutions.
func WithNotifier(n Notifier) Option {
	return func(s *Simulator) { s.notifier = n }
}

// New creates a simulator. A nil locker falls back to an in-process one.
func New(l Ledger, cards CardLookup, locks utils.Locker, opts ...Option) *Simulator {
	if locks == nil {
		locks = utils.NewLocalLocker()
	}
	s := &Simulator{ledger: l, cards: cards, locks: locks}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide maps a card's last four digits to an outcome.
func Decide(lastFour string) ledger.Outcome {
	if len(lastFour) != 4 || strings.Trim(lastFour, "0123456789") != "" {
		return ledger.Outcome{Status: domain.StatusFailed, Message: MsgUnreadable}
	}
	n, _ := strconv.Atoi(lastFour)
	if n < declineFrom {
		return ledger.Outcome{Status: domain.StatusSuccess, Message: MsgApproved}
	}
	return ledger.Outcome{Status: domain.StatusFailed, Message: MsgDeclined}
}

func lockKey(id uint) string {
	return "lock:tx:" + strconv.FormatUint(uint64(id), 10)
}

// ProcessPayment resolves transaction id exactly once. A transaction that is
// already SUCCESS or FAILED yields a conflict error and is left unchanged.
func (s *Simulator) ProcessPayment(ctx context.Context, id uint) (*Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	unlock, err := s.locks.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock transaction %d: %w", id, err)
	}
	defer unlock()

	tx, err := s.ledger.Get(ctx, domain.Principal{Admin: true}, id)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(tx.Status) {
		return nil, domain.Conflict("transaction %d already processed", id)
	}
	card, err := s.cards.Lookup(ctx, tx.CardID)
	if err != nil {
		return nil, fmt.Errorf("load card for transaction %d: %w", id, err)
	}

	out := Decide(card.LastFour)
	resolved, err := s.ledger.Resolve(ctx, id, out) // CAS; a concurrent winner turns this into a conflict
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": id,
		"card":           card.Summary(),
		"status":         out.Status,
	}).Info("Payment processed")

	if s.notifier != nil {
		go func(tx domain.Transaction) {
			if err := s.notifier.PaymentResolved(context.Background(), tx); err != nil {
				logrus.WithError(err).WithField("transaction_id", tx.ID).Warn("Payment notification failed")
			}
		}(*resolved)
	}
	return &Result{Status: out.Status, Message: out.Message, Transaction: resolved}, nil
}

// TestCard is a sample card number with its deterministic outcome.
type TestCard struct {
	Number         string `json:"card_number"`
	CardType       string `json:"card_type"`
	ExpectedResult string `json:"expected_result"`
	Description    string `json:"description"`
}

// TestCards lists Luhn-valid numbers for trying the gateway.
func TestCards() []TestCard {
	return []TestCard{
		{"4000000000024242", domain.CardVisa, domain.StatusSuccess, "Visa ending 4242, approved"},
		{"4000000000074999", domain.CardVisa, domain.StatusSuccess, "Visa ending 4999, highest approved value"},
		{"5555555555554444", domain.CardMastercard, domain.StatusSuccess, "Mastercard ending 4444, approved"},
		{"4000000000015000", domain.CardVisa, domain.StatusFailed, "Visa ending 5000, lowest declined value"},
		{"4000000000005050", domain.CardVisa, domain.StatusFailed, "Visa ending 5050, declined"},
		{"4000000000069999", domain.CardVisa, domain.StatusFailed, "Visa ending 9999, declined"},
	}
}
