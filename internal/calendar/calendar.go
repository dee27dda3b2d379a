// Package calendar classifies class dates and projects expected collections.
//
// All dates handled here are date-only values: midnight UTC carrying the
// calendar day as observed in the class timezone. Use DateOf to truncate a
// timestamp before handing it to a Calendar.
package calendar

import (
	"context"
	"time"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/models"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Status is the classification of one calendar date.
type Status int

const (
	BeforeStart Status = iota
	NonCollectionDay
	NoClassException
	FutureCollectionDay
	PastCollectionDay
)

func (s Status) String() string {
	switch s {
	case BeforeStart:
		return "before_start"
	case NonCollectionDay:
		return "non_collection_day"
	case NoClassException:
		return "no_class"
	case FutureCollectionDay:
		return "future_collection_day"
	case PastCollectionDay:
		return "past_collection_day"
	default:
		return "unknown"
	}
}

// IsCollectionDay reports whether a date with this status expects a payment.
func (s Status) IsCollectionDay() bool {
	return s == FutureCollectionDay || s == PastCollectionDay
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateIn truncates t to its calendar day as observed in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return DateOf(t.In(loc))
}

// StartOfDay is the instant date begins in loc.
func StartOfDay(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("INVALID_DATE", err, "%q is not a valid date (expected YYYY-MM-DD)", s)
	}
	return d, nil
}

// Format renders a date as YYYY-MM-DD.
func Format(d time.Time) string {
	return d.Format(DateLayout)
}

// ISOWeekday converts Go's 0=Sunday numbering to ISO 1=Monday..7=Sunday.
func ISOWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ValidateCollectionDays checks a non-empty set of ISO weekdays.
func ValidateCollectionDays(days []int) error {
	if len(days) == 0 {
		return apperr.InvalidArgument("collection days must not be empty")
	}
	for _, d := range days {
		if d < 1 || d > 7 {
			return apperr.InvalidArgument("collection day %d is not an ISO weekday (1-7)", d)
		}
	}
	return nil
}

// Calendar classifies dates of one class as of a given today.
//
// A no-class exception wins over the future/past distinction: an excepted
// date is NoClassException whether or not it has happened yet.
type Calendar struct {
	days       [8]bool
	dayCount   int
	start      time.Time
	today      time.Time
	exceptions map[string]struct{}
	excepted   []time.Time
}

// New builds the calendar of class. exceptions holds YYYY-MM-DD strings and
// today is the evaluation date in the class timezone.
func New(class *models.Class, exceptions map[string]struct{}, today time.Time) (*Calendar, error) {
	if err := ValidateCollectionDays(class.CollectionDays); err != nil {
		return nil, err
	}
	c := &Calendar{
		start:      DateOf(class.DateInitiated),
		today:      DateOf(today),
		exceptions: exceptions,
	}
	if c.exceptions == nil {
		c.exceptions = map[string]struct{}{}
	}
	for _, d := range class.CollectionDays {
		if !c.days[d] {
			c.days[d] = true
			c.dayCount++
		}
	}
	for s := range c.exceptions {
		if d, err := time.Parse(DateLayout, s); err == nil {
			c.excepted = append(c.excepted, d)
		}
	}
	return c, nil
}

// Start is the first date collection logic applies to.
func (c *Calendar) Start() time.Time { return c.start }

// Today is the evaluation date.
func (c *Calendar) Today() time.Time { return c.today }

// IsException reports whether date is marked as no class.
func (c *Calendar) IsException(date time.Time) bool {
	_, ok := c.exceptions[Format(DateOf(date))]
	return ok
}

// Classify returns the status of date.
func (c *Calendar) Classify(date time.Time) Status {
	date = DateOf(date)
	switch {
	case date.Before(c.start):
		return BeforeStart
	case !c.days[ISOWeekday(date)]:
		return NonCollectionDay
	case c.IsException(date):
		return NoClassException
	case date.After(c.today):
		return FutureCollectionDay
	default:
		return PastCollectionDay
	}
}

// CollectionDaysInRange counts collection days in [from, to] without walking
// the range: weekdays are counted per whole week and excepted collection days
// are subtracted afterwards.
func (c *Calendar) CollectionDaysInRange(from, to time.Time) int {
	from, to = DateOf(from), DateOf(to)
	if from.Before(c.start) {
		from = c.start
	}
	if to.Before(from) {
		return 0
	}

	total := daysBetween(from, to) + 1
	n := (total / 7) * c.dayCount
	first := ISOWeekday(from)
	for i := 0; i < total%7; i++ {
		if c.days[(first-1+i)%7+1] {
			n++
		}
	}

	for _, d := range c.excepted {
		if d.Before(from) || d.After(to) {
			continue
		}
		if c.days[ISOWeekday(d)] {
			n--
		}
	}
	return n
}

// PastCollectionDaysInRange counts PastCollectionDay dates in [from, to].
func (c *Calendar) PastCollectionDaysInRange(from, to time.Time) int {
	to = DateOf(to)
	if to.After(c.today) {
		to = c.today
	}
	return c.CollectionDaysInRange(from, to)
}

// EachDay calls fn for every date in [from, to] in order, stopping early when
// ctx is cancelled or fn fails.
func EachDay(ctx context.Context, from, to time.Time, fn func(day time.Time) error) error {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return apperr.InvalidArgument("range end %s is before start %s", Format(to), Format(from))
	}
	i := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if i%31 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		i++
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
