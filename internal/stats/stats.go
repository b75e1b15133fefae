// Package stats derives dashboard figures and daily summaries from a ledger
// snapshot. The functions here are pure: the same snapshot and instant always
// produce the same numbers.
package stats

import (
	"context"
	"time"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/ledger"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

// StatusBreakdown counts transactions per status.
type StatusBreakdown struct {
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

func (b *StatusBreakdown) add(status string) {
	switch status {
	case domain.StatusPending:
		b.Pending++
	case domain.StatusSuccess:
		b.Success++
	case domain.StatusFailed:
		b.Failed++
	}
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers        int64           `json:"total_users"`
	TotalCards        int64           `json:"total_cards"`
	TotalTransactions int             `json:"total_transactions"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`      // SUCCESS only
	TodayTransactions int             `json:"today_transactions"` // UTC calendar day of now
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	WeekTransactions  int             `json:"week_transactions"` // created at or after now - 7 days
	StatusBreakdown   StatusBreakdown `json:"status_breakdown"`
}

// Summary reports one UTC calendar day.
type Summary struct {
	Date              string          `json:"date"`
	TotalTransactions int             `json:"total_transactions"`
	Successful        int             `json:"successful"`
	Failed            int             `json:"failed"`
	Pending           int             `json:"pending"`
	TotalAmount       decimal.Decimal `json:"total_amount"`      // every status
	SuccessfulAmount  decimal.Decimal `json:"successful_amount"` // SUCCESS only
}

// UserTotals is the per-user figure shown in admin user details.
type UserTotals struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
}

// Dashboard computes the overview for snap as seen at instant at.
func Dashboard(snap *ledger.Snapshot, at time.Time) DashboardStats {
	at = at.UTC()
	dayStart := now.With(at).BeginningOfDay()
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekAgo := at.AddDate(0, 0, -7)

	d := DashboardStats{
		TotalUsers:        snap.TotalUsers,
		TotalCards:        snap.TotalCards,
		TotalTransactions: len(snap.Transactions),
		TotalRevenue:      decimal.Zero,
		TodayRevenue:      decimal.Zero,
	}
	for _, tx := range snap.Transactions {
		created := tx.CreatedAt.UTC()
		success := tx.Status == domain.StatusSuccess
		d.StatusBreakdown.add(tx.Status)
		if success {
			d.TotalRevenue = d.TotalRevenue.Add(tx.Amount)
		}
		if !created.Before(dayStart) && created.Before(dayEnd) {
			d.TodayTransactions++
			if success {
				d.TodayRevenue = d.TodayRevenue.Add(tx.Amount)
			}
		}
		if !created.Before(weekAgo) {
			d.WeekTransactions++
		}
	}
	return d
}

// DailySummary reports the transactions in snap created on date's UTC day.
func DailySummary(snap *ledger.Snapshot, date time.Time) Summary {
	day := now.With(date.UTC()).BeginningOfDay()
	f := ledger.Filter{DateFrom: &day, DateTo: &day}

	s := Summary{
		Date:             day.Format(ledger.DateLayout),
		TotalAmount:      decimal.Zero,
		SuccessfulAmount: decimal.Zero,
	}
	for _, tx := range snap.Transactions {
		if !f.Matches(tx) {
			continue
		}
		s.TotalTransactions++
		s.TotalAmount = s.TotalAmount.Add(tx.Amount)
		switch tx.Status {
		case domain.StatusSuccess:
			s.Successful++
			s.SuccessfulAmount = s.SuccessfulAmount.Add(tx.Amount)
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusPending:
			s.Pending++
		}
	}
	return s
}

// UserStats totals a single user's transactions.
func UserStats(txs []domain.Transaction) UserTotals {
	u := UserTotals{TotalTransactions: len(txs), TotalSpent: decimal.Zero}
	for _, tx := range txs {
		if tx.Status == domain.StatusSuccess {
			u.TotalSpent = u.TotalSpent.Add(tx.Amount)
		}
	}
	return u
}

// Snapshotter is satisfied by *ledger.Ledger.
type Snapshotter interface {
	Snapshot(ctx context.Context, f ledger.Filter) (*ledger.Snapshot, error)
}

// Engine answers admin statistics queries, one snapshot per query.
type Engine struct {
	src Snapshotter
}

func NewEngine(src Snapshotter) *Engine {
	return &Engine{src: src}
}

// DashboardStats takes a snapshot of the whole ledger and summarizes it at at.
func (e *Engine) DashboardStats(ctx context.Context, p domain.Principal, at time.Time) (*DashboardStats, error) {
	if !p.Admin {
		return nil, domain.Auth("admin access required")
	}
	snap, err := e.src.Snapshot(ctx, ledger.Filter{AllUsers: true})
	if err != nil {
		return nil, err
	}
	d := Dashboard(snap, at)
	return &d, nil
}

// DailySummary snapshots only date's transactions and summarizes them.
func (e *Engine) DailySummary(ctx context.Context, p domain.Principal, date time.Time) (*Summary, error) {
	if !p.Admin {
		return nil, domain.Auth("admin access required")
	}
	day := now.With(date.UTC()).BeginningOfDay()
	snap, err := e.src.Snapshot(ctx, ledger.Filter{AllUsers: true, DateFrom: &day, DateTo: &day})
	if err != nil {
		return nil, err
	}
	s := DailySummary(snap, day)
	return &s, nil
}
