package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"payment_gateway/internal/cards"
	"payment_gateway/internal/domain"
	"payment_gateway/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ledger *Ledger
	reg    *cards.Registry
	clock  time.Time
	alice  domain.User
	bob    domain.User
	admin  domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	f := &fixture{
		clock: time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC),
		alice: testutil.CreateUser(t, gdb, "alice", domain.RoleUser),
		bob:   testutil.CreateUser(t, gdb, "bob", domain.RoleUser),
		admin: testutil.CreateUser(t, gdb, "root", domain.RoleAdmin),
	}
	f.reg = cards.NewRegistry(gdb, nil)
	f.reg.SetClock(func() time.Time { return f.clock })
	f.ledger = New(gdb, f.reg)
	f.ledger.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) addCard(t *testing.T, owner domain.User, number string) *domain.Card {
	t.Helper()
	card, err := f.reg.AddCard(context.Background(), owner.Principal(), cards.CardInput{
		CardNumber:     number,
		CVV:            "123",
		CardHolderName: owner.Username,
		ExpiryMonth:    "12",
		ExpiryYear:     "2030",
	})
	require.NoError(t, err)
	return card
}

func (f *fixture) create(t *testing.T, owner domain.User, card *domain.Card, amount string) *domain.Transaction {
	t.Helper()
	tx, _, err := f.ledger.Create(context.Background(), owner.Principal(), CreateInput{
		CardID: card.ID,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return tx
}

func TestCreateRecordsPendingIntent(t *testing.T) {
	f := newFixture(t)
	card := f.addCard(t, f.alice, testutil.Card4242)

	tx, replayed, err := f.ledger.Create(context.Background(), f.alice.Principal(), CreateInput{
		CardID:      card.ID,
		Amount:      decimal.RequireFromString("50.00"),
		Description: "coffee beans",
	})
	require.NoError(t, err)

	assert.False(t, replayed)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.Equal(t, "USD", tx.Currency, "currency defaults to USD")
	assert.Equal(t, "VISA - 4242", tx.PaymentMethod)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, tx.ResolvedAt)
	assert.True(t, tx.CreatedAt.Equal(f.clock))
}

func TestCreateNormalizesLineEndings(t *testing.T) {
	f := newFixture(t)
	card := f.addCard(t, f.alice, testutil.Card4242)

	tx, _, err := f.ledger.Create(context.Background(), f.alice.Principal(), CreateInput{
		CardID: card.ID, Amount: decimal.NewFromInt(3), Description: "line one\r\nline two\rtail",
	})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\rtail", tx.Description)

	stored, err := f.ledger.Get(context.Background(), f.alice.Principal(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Description, stored.Description)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	card := f.addCard(t, f.alice, testutil.Card4242)
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   string
		currency string
	}{
		{name: "zero amount", amount: "0"},
		{name: "negative amount", amount: "-5"},
		{name: "above maximum", amount: "100000.01"},
		{name: "three decimals", amount: "1.005"},
		{name: "unknown currency", amount: "10", currency: "XYZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.ledger.Create(ctx, f.alice.Principal(), CreateInput{
				CardID:   card.ID,
				Amount:   decimal.RequireFromString(tt.amount),
				Currency: tt.currency,
			})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	all, err := f.ledger.List(ctx, f.admin.Principal(), Filter{AllUsers: true})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected requests leave no rows")
}

func TestCreateRequiresOwnedLiveCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceCard := f.addCard(t, f.alice, testutil.Card4242)

	_, _, err := f.ledger.Create(ctx, f.bob.Principal(), CreateInput{CardID: aliceCard.ID, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.reg.DeleteCard(ctx, f.alice.Principal(), aliceCard.ID))
	_, _, err = f.ledger.Create(ctx, f.alice.Principal(), CreateInput{CardID: aliceCard.ID, Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.alice, testutil.Card4242)
	in := CreateInput{CardID: card.ID, Amount: decimal.NewFromInt(20), IdempotencyKey: "order-17"}

	first, replayed, err := f.ledger.Create(ctx, f.alice.Principal(), in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.ledger.Create(ctx, f.alice.Principal(), in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	txs, err := f.ledger.List(ctx, f.alice.Principal(), Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	// Lowercase currency normalizes to the first request's USD
	again, replayed, err := f.ledger.Create(ctx, f.alice.Principal(), CreateInput{CardID: card.ID, Amount: decimal.RequireFromString("20.00"), Currency: "usd", IdempotencyKey: "order-17"})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	// Keys are scoped per owner
	bobCard := f.addCard(t, f.bob, testutil.Card4999)
	other, replayed, err := f.ledger.Create(ctx, f.bob.Principal(), CreateInput{CardID: bobCard.ID, Amount: decimal.NewFromInt(20), IdempotencyKey: "order-17"})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateIdempotencyKeyMismatchConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.alice, testutil.Card4242)
	other := f.addCard(t, f.alice, testutil.Card4999)
	_, _, err := f.ledger.Create(ctx, f.alice.Principal(), CreateInput{CardID: card.ID, Amount: decimal.NewFromInt(20), IdempotencyKey: "order-18"})
	require.NoError(t, err)

	for name, in := range map[string]CreateInput{
		"card":     {CardID: other.ID, Amount: decimal.NewFromInt(20)},
		"amount":   {CardID: card.ID, Amount: decimal.NewFromInt(21)},
		"currency": {CardID: card.ID, Amount: decimal.NewFromInt(20), Currency: "EUR"},
	} {
		in.IdempotencyKey = "order-18"
		tx, replayed, err := f.ledger.Create(ctx, f.alice.Principal(), in)
		assert.ErrorIs(t, err, domain.ErrConflict, name)
		assert.Nil(t, tx, name)
		assert.False(t, replayed, name)
	}

	txs, err := f.ledger.List(ctx, f.alice.Principal(), Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestGetOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, f.alice, f.addCard(t, f.alice, testutil.Card4242), "5")

	got, err := f.ledger.Get(ctx, f.alice.Principal(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	require.NotNil(t, got.Card)
	assert.Equal(t, "4242", got.Card.LastFour)

	_, err = f.ledger.Get(ctx, f.bob.Principal(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.Get(ctx, f.admin.Principal(), tx.ID)
	assert.NoError(t, err)

	_, err = f.ledger.Get(ctx, f.alice.Principal(), tx.ID+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListScopesAndAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.alice, f.addCard(t, f.alice, testutil.Card4242), "5")
	f.create(t, f.bob, f.addCard(t, f.bob, testutil.Card5050), "7")

	own, err := f.ledger.List(ctx, f.bob.Principal(), Filter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, f.bob.ID, own[0].UserID)

	_, err = f.ledger.List(ctx, f.bob.Principal(), Filter{AllUsers: true})
	assert.ErrorIs(t, err, domain.ErrAuth)

	uid := f.alice.ID
	_, err = f.ledger.List(ctx, f.bob.Principal(), Filter{UserID: &uid})
	assert.ErrorIs(t, err, domain.ErrAuth)

	all, err := f.ledger.List(ctx, f.admin.Principal(), Filter{AllUsers: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := f.ledger.List(ctx, f.admin.Principal(), Filter{UserID: &uid})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, f.alice.ID, one[0].UserID)
}

func TestListFilterCorrectness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.alice, testutil.Card4242)

	days := []time.Time{
		time.Date(2026, time.October, 14, 23, 59, 59, 0, time.UTC),
		time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.October, 15, 18, 30, 0, 0, time.UTC),
		time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC),
	}
	amounts := []string{"10.00", "25.50", "100", "0.99"}
	var created []*domain.Transaction
	for i, d := range days {
		f.clock = d
		created = append(created, f.create(t, f.alice, card, amounts[i]))
	}
	_, err := f.ledger.Resolve(ctx, created[1].ID, Outcome{Status: domain.StatusSuccess})
	require.NoError(t, err)
	_, err = f.ledger.Resolve(ctx, created[2].ID, Outcome{Status: domain.StatusFailed})
	require.NoError(t, err)

	// Reload so statuses reflect the resolutions
	all, err := f.ledger.List(ctx, f.alice.Principal(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "newest first")
	}

	day := func(s string) *time.Time { d, _ := ParseDate(s); return &d }
	amt := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	filters := []Filter{
		{},
		{Status: domain.StatusSuccess},
		{Status: domain.StatusPending},
		{DateFrom: day("2026-10-15")},
		{DateTo: day("2026-10-15")},
		{DateFrom: day("2026-10-15"), DateTo: day("2026-10-15")},
		{MinAmount: amt("10")},
		{MaxAmount: amt("25.50")},
		{MinAmount: amt("10"), MaxAmount: amt("25.5"), DateFrom: day("2026-10-15")},
		{Status: domain.StatusFailed, MaxAmount: amt("50")},
	}
	for _, flt := range filters {
		got, err := f.ledger.List(ctx, f.alice.Principal(), flt)
		require.NoError(t, err)

		var want []uint
		for _, tx := range all {
			if flt.Matches(tx) {
				want = append(want, tx.ID)
			}
		}
		var ids []uint
		for _, tx := range got {
			ids = append(ids, tx.ID)
		}
		assert.Equal(t, want, ids, "filter %+v", flt)
	}

	sameDay, err := f.ledger.List(ctx, f.alice.Principal(), Filter{DateFrom: day("2026-10-15"), DateTo: day("2026-10-15")})
	require.NoError(t, err)
	assert.Len(t, sameDay, 2, "both bounds are inclusive whole days")
}

func TestParseFilter(t *testing.T) {
	values := map[string]string{
		"status":     "success",
		"date_from":  "2026-10-01",
		"date_to":    "2026-10-31",
		"min_amount": "1.50",
		"max_amount": "99",
		"user_id":    "7",
	}
	flt, err := ParseFilter(func(k string) string { return values[k] })
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, flt.Status)
	assert.Equal(t, "2026-10-01", flt.DateFrom.Format(DateLayout))
	assert.Equal(t, "2026-10-31", flt.DateTo.Format(DateLayout))
	assert.Equal(t, "1.5", flt.MinAmount.String())
	assert.Equal(t, "99", flt.MaxAmount.String())
	require.NotNil(t, flt.UserID)
	assert.Equal(t, uint(7), *flt.UserID)

	for key, bad := range map[string]string{
		"status":     "DONE",
		"date_from":  "16/10/2026",
		"min_amount": "ten",
		"user_id":    "-1",
	} {
		_, err := ParseFilter(func(k string) string {
			if k == key {
				return bad
			}
			return ""
		})
		assert.ErrorIs(t, err, domain.ErrValidation, key)
	}
}

func TestResolveIsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, f.alice, f.addCard(t, f.alice, testutil.Card4242), "50")

	f.clock = f.clock.Add(time.Minute)
	resolved, err := f.ledger.Resolve(ctx, tx.ID, Outcome{Status: domain.StatusSuccess, Message: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	f.clock = f.clock.Add(time.Minute)
	_, err = f.ledger.Resolve(ctx, tx.ID, Outcome{Status: domain.StatusFailed, Message: "late"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	after, err := f.ledger.Get(ctx, f.alice.Principal(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, after.Status)
	assert.Equal(t, "ok", after.Message)
	assert.True(t, after.ResolvedAt.Equal(firstResolvedAt))

	_, err = f.ledger.Resolve(ctx, tx.ID+99, Outcome{Status: domain.StatusSuccess})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.Resolve(ctx, tx.ID, Outcome{Status: domain.StatusPending})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveConcurrentCallersSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, f.alice, f.addCard(t, f.alice, testutil.Card4242), "50")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := domain.StatusSuccess
			if i%2 == 1 {
				status = domain.StatusFailed
			}
			_, err := f.ledger.Resolve(ctx, tx.ID, Outcome{Status: status})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case domain.KindOf(err) == domain.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestSnapshotCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceCard := f.addCard(t, f.alice, testutil.Card4242)
	f.create(t, f.alice, aliceCard, "5")
	f.create(t, f.bob, f.addCard(t, f.bob, testutil.Card5050), "6")
	require.NoError(t, f.reg.DeleteCard(ctx, f.alice.Principal(), aliceCard.ID))

	snap, err := f.ledger.Snapshot(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 2)
	assert.Equal(t, int64(3), snap.TotalUsers)
	assert.Equal(t, int64(1), snap.TotalCards, "deleted cards are not counted")
	for _, tx := range snap.Transactions {
		require.NotNil(t, tx.Card, "deleted cards still preload for history")
		require.NotNil(t, tx.User)
	}
}
