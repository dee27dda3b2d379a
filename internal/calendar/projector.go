package calendar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/apperr"
)

// Projector computes what a class should collect.
type Projector struct {
	cal         *Calendar
	dailyAmount decimal.Decimal
}

// NewProjector binds a calendar to the per-member amount of one collection day.
func NewProjector(cal *Calendar, dailyAmount decimal.Decimal) *Projector {
	return &Projector{cal: cal, dailyAmount: dailyAmount}
}

// Calendar returns the underlying calendar.
func (p *Projector) Calendar() *Calendar { return p.cal }

// DailyAmount is the amount one member owes per collection day.
func (p *Projector) DailyAmount() decimal.Decimal { return p.dailyAmount }

// PerDay is the class-wide amount of one collection day.
func (p *Projector) PerDay(activeMembers int) decimal.Decimal {
	return p.dailyAmount.Mul(decimal.NewFromInt(int64(activeMembers)))
}

// ExpectedAmount is dailyAmount x activeMembers on collection days, zero otherwise.
func (p *Projector) ExpectedAmount(date time.Time, activeMembers int) (decimal.Decimal, error) {
	if activeMembers < 0 {
		return decimal.Zero, apperr.InvalidArgument("active member count %d is negative", activeMembers)
	}
	if !p.cal.Classify(date).IsCollectionDay() {
		return decimal.Zero, nil
	}
	return p.PerDay(activeMembers), nil
}

// ExpectedAmountOverRange sums ExpectedAmount over [from, to].
func (p *Projector) ExpectedAmountOverRange(from, to time.Time, activeMembers int) (decimal.Decimal, error) {
	if activeMembers < 0 {
		return decimal.Zero, apperr.InvalidArgument("active member count %d is negative", activeMembers)
	}
	if DateOf(to).Before(DateOf(from)) {
		return decimal.Zero, apperr.InvalidArgument("range end %s is before start %s", Format(to), Format(from))
	}
	days := p.cal.CollectionDaysInRange(from, to)
	return p.PerDay(activeMembers).Mul(decimal.NewFromInt(int64(days))), nil
}

// PerfectCompliance is what the class would hold had every active member paid
// on every collection day already passed in [from, to].
func (p *Projector) PerfectCompliance(from, to time.Time, activeMembers int) (decimal.Decimal, error) {
	if activeMembers < 0 {
		return decimal.Zero, apperr.InvalidArgument("active member count %d is negative", activeMembers)
	}
	days := p.cal.PastCollectionDaysInRange(from, to)
	return p.PerDay(activeMembers).Mul(decimal.NewFromInt(int64(days))), nil
}
