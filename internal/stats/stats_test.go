package stats

import (
	"context"
	"testing"
	"time"

	"payment_gateway/internal/cards"
	"payment_gateway/internal/domain"
	"payment_gateway/internal/gateway"
	"payment_gateway/internal/ledger"
	"payment_gateway/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, time.October, 16, 15, 0, 0, 0, time.UTC)

func tx(status, amount string, created time.Time) domain.Transaction {
	return domain.Transaction{Status: status, Amount: decimal.RequireFromString(amount), CreatedAt: created}
}

func sampleSnapshot() *ledger.Snapshot {
	return &ledger.Snapshot{
		TotalUsers: 3,
		TotalCards: 4,
		Transactions: []domain.Transaction{
			tx(domain.StatusSuccess, "50.00", at.Add(-time.Hour)),
			tx(domain.StatusFailed, "10.00", at.Add(-2*time.Hour)),
			// today 00:00 and yesterday 23:59:59
			tx(domain.StatusPending, "7.25", at.Add(-15*time.Hour)),
			tx(domain.StatusSuccess, "20.10", at.Add(-15*time.Hour-time.Second)),
			// exactly a week ago, then just outside the week
			tx(domain.StatusSuccess, "100", at.AddDate(0, 0, -7)),
			tx(domain.StatusSuccess, "1.01", at.AddDate(0, 0, -7).Add(-time.Second)),
		},
	}
}

func TestDashboard(t *testing.T) {
	d := Dashboard(sampleSnapshot(), at)

	assert.Equal(t, int64(3), d.TotalUsers)
	assert.Equal(t, int64(4), d.TotalCards)
	assert.Equal(t, 6, d.TotalTransactions)
	assert.Equal(t, "171.11", d.TotalRevenue.StringFixed(2))
	assert.Equal(t, 3, d.TodayTransactions)
	assert.Equal(t, "50.00", d.TodayRevenue.StringFixed(2))
	assert.Equal(t, 5, d.WeekTransactions)
	assert.Equal(t, StatusBreakdown{Pending: 1, Success: 4, Failed: 1}, d.StatusBreakdown)
}

func TestDashboardConservation(t *testing.T) {
	snap := sampleSnapshot()
	d := Dashboard(snap, at)
	b := d.StatusBreakdown
	assert.Equal(t, d.TotalTransactions, b.Pending+b.Success+b.Failed)

	sum := decimal.Zero
	for _, tx := range snap.Transactions {
		if tx.Status == domain.StatusSuccess {
			sum = sum.Add(tx.Amount)
		}
	}
	assert.True(t, sum.Equal(d.TotalRevenue))
}

func TestDashboardDeterministic(t *testing.T) {
	snap := sampleSnapshot()
	assert.Equal(t, Dashboard(snap, at), Dashboard(snap, at))
	// The instant is taken as UTC whatever zone it arrives in
	assert.Equal(t, Dashboard(snap, at), Dashboard(snap, at.In(time.FixedZone("X", 5*3600))))
}

func TestDailySummary(t *testing.T) {
	snap := sampleSnapshot()

	s := DailySummary(snap, at)
	assert.Equal(t, "2026-10-16", s.Date)
	assert.Equal(t, 3, s.TotalTransactions)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, "67.25", s.TotalAmount.StringFixed(2))
	assert.Equal(t, "50.00", s.SuccessfulAmount.StringFixed(2))
	assert.Equal(t, s.TotalTransactions, s.Successful+s.Failed+s.Pending)

	y := DailySummary(snap, at.AddDate(0, 0, -1))
	assert.Equal(t, "2026-10-15", y.Date)
	assert.Equal(t, 1, y.TotalTransactions)
	assert.Equal(t, "20.10", y.SuccessfulAmount.StringFixed(2))

	empty := DailySummary(snap, at.AddDate(0, 0, 3))
	assert.Zero(t, empty.TotalTransactions)
	assert.True(t, empty.TotalAmount.IsZero())
}

func TestUserStats(t *testing.T) {
	u := UserStats(sampleSnapshot().Transactions)
	assert.Equal(t, 6, u.TotalTransactions)
	assert.Equal(t, "171.11", u.TotalSpent.StringFixed(2))

	none := UserStats(nil)
	assert.Zero(t, none.TotalTransactions)
	assert.True(t, none.TotalSpent.IsZero())
}

func TestEngineScenario(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	clock := func() time.Time { return at }

	reg := cards.NewRegistry(gdb, nil)
	reg.SetClock(clock)
	led := ledger.New(gdb, reg)
	led.SetClock(clock)
	sim := gateway.New(led, reg, nil)
	engine := NewEngine(led)

	user := testutil.CreateUser(t, gdb, "dave", domain.RoleUser)
	admin := testutil.CreateUser(t, gdb, "ops", domain.RoleAdmin)

	pay := func(number, amount string) {
		card, err := reg.AddCard(ctx, user.Principal(), cards.CardInput{
			CardNumber: number, CVV: "123", CardHolderName: "Dave", ExpiryMonth: "12", ExpiryYear: "2030",
		})
		require.NoError(t, err)
		created, _, err := led.Create(ctx, user.Principal(), ledger.CreateInput{CardID: card.ID, Amount: decimal.RequireFromString(amount)})
		require.NoError(t, err)
		_, err = sim.ProcessPayment(ctx, created.ID)
		require.NoError(t, err)
	}
	pay(testutil.Card4242, "50.00")
	pay(testutil.Card5050, "10.00")

	d, err := engine.DashboardStats(ctx, admin.Principal(), at)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalTransactions)
	assert.Equal(t, "50.00", d.TotalRevenue.StringFixed(2))
	assert.Equal(t, StatusBreakdown{Success: 1, Failed: 1}, d.StatusBreakdown)
	assert.Equal(t, int64(2), d.TotalUsers)
	assert.Equal(t, int64(2), d.TotalCards)

	s, err := engine.DailySummary(ctx, admin.Principal(), at)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalTransactions)
	assert.Equal(t, "60.00", s.TotalAmount.StringFixed(2))
	assert.Equal(t, "50.00", s.SuccessfulAmount.StringFixed(2))

	_, err = engine.DashboardStats(ctx, user.Principal(), at)
	assert.ErrorIs(t, err, domain.ErrAuth)
	_, err = engine.DailySummary(ctx, user.Principal(), at)
	assert.ErrorIs(t, err, domain.ErrAuth)
}
