package compliance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/models"
)

// DailyTotals maps YYYY-MM-DD to the deposits collected that day. Missing
// dates collected nothing.
type DailyTotals map[string]decimal.Decimal

// ActualByDate sums deposit amounts per calendar date as observed in loc.
// Entries of other types are ignored.
func ActualByDate(txs []models.Transaction, loc *time.Location) DailyTotals {
	totals := DailyTotals{}
	for _, tx := range txs {
		if tx.Type != models.TransactionDeposit {
			continue
		}
		key := calendar.Format(calendar.DateIn(tx.CreatedAt, loc))
		totals[key] = totals.On(key).Add(tx.Amount)
	}
	return totals
}

// On returns the total of one YYYY-MM-DD date.
func (t DailyTotals) On(key string) decimal.Decimal {
	if v, ok := t[key]; ok {
		return v
	}
	return decimal.Zero
}

// Day returns the total of a date.
func (t DailyTotals) Day(d time.Time) decimal.Decimal {
	return t.On(calendar.Format(d))
}

// Range sums every date in [from, to].
func (t DailyTotals) Range(from, to time.Time) decimal.Decimal {
	lo, hi := calendar.Format(from), calendar.Format(to)
	sum := decimal.Zero
	for k, v := range t {
		if k >= lo && k <= hi {
			sum = sum.Add(v)
		}
	}
	return sum
}

// PayersByDate counts distinct members with at least one deposit per date.
func PayersByDate(txs []models.Transaction, loc *time.Location) map[string]int {
	seen := map[string]map[uuid.UUID]struct{}{}
	for _, tx := range txs {
		if tx.Type != models.TransactionDeposit {
			continue
		}
		key := calendar.Format(calendar.DateIn(tx.CreatedAt, loc))
		if seen[key] == nil {
			seen[key] = map[uuid.UUID]struct{}{}
		}
		seen[key][tx.ProfileID] = struct{}{}
	}
	counts := make(map[string]int, len(seen))
	for k, v := range seen {
		counts[k] = len(v)
	}
	return counts
}
