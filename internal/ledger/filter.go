package ledger

import (
	"strconv"
	"strings"
	"time"

	"payment_gateway/internal/domain"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout is the calendar date format accepted in filters and summaries
const DateLayout = "2006-01-02"

// Filter narrows a transaction listing. Nil / zero fields impose no constraint;
// the rest are AND-combined. Date bounds are inclusive calendar days (UTC),
// amount bounds are inclusive.
type Filter struct {
	Status    string           // Exact status
	DateFrom  *time.Time       // Created on or after this day
	DateTo    *time.Time       // Created on or before this day
	MinAmount *decimal.Decimal // Amount >= MinAmount
	MaxAmount *decimal.Decimal // Amount <= MaxAmount
	UserID    *uint            // Single owner, admin only
	AllUsers  bool             // Every owner, admin only
}

// ParseDate parses a YYYY-MM-DD string into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, domain.Validation("invalid date %q, use YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseFilter builds a Filter from query-string style values. Unknown keys
// are ignored, malformed values are a validation error.
func ParseFilter(get func(key string) string) (Filter, error) {
	var f Filter
	if s := strings.ToUpper(strings.TrimSpace(get("status"))); s != "" {
		if !domain.IsValidStatus(s) {
			return f, domain.Validation("invalid status %q", s)
		}
		f.Status = s
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"date_from", &f.DateFrom}, {"date_to", &f.DateTo}} {
		if s := get(p.key); s != "" {
			d, err := ParseDate(s)
			if err != nil {
				return f, err
			}
			*p.dst = &d
		}
	}
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"min_amount", &f.MinAmount}, {"max_amount", &f.MaxAmount}} {
		if s := get(p.key); s != "" {
			d, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return f, domain.Validation("invalid %s %q", p.key, s)
			}
			*p.dst = &d
		}
	}
	if s := get("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return f, domain.Validation("invalid user_id %q", s)
		}
		uid := uint(id)
		f.UserID = &uid
	}
	return f, nil
}

// apply adds the filter predicates to q.
func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", now.With(f.DateFrom.UTC()).BeginningOfDay())
	}
	if f.DateTo != nil {
		// inclusive: everything before the start of the following day
		q = q.Where("created_at < ?", now.With(f.DateTo.UTC()).BeginningOfDay().AddDate(0, 0, 1))
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	return q
}

// Matches reports whether tx satisfies every present predicate. It mirrors
// apply for callers holding transactions in memory.
func (f Filter) Matches(tx domain.Transaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	created := tx.CreatedAt.UTC()
	if f.DateFrom != nil && created.Before(now.With(f.DateFrom.UTC()).BeginningOfDay()) {
		return false
	}
	if f.DateTo != nil && !created.Before(now.With(f.DateTo.UTC()).BeginningOfDay().AddDate(0, 0, 1)) {
		return false
	}
	if f.MinAmount != nil && tx.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && tx.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.UserID != nil && tx.UserID != *f.UserID {
		return false
	}
	return true
}
