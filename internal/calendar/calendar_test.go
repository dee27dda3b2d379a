package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/models"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func weekdayClass(t *testing.T) *models.Class {
	return &models.Class{
		DailyAmount:    decimal.NewFromInt(10),
		CollectionDays: []int{1, 2, 3, 4, 5},
		DateInitiated:  date(t, "2024-12-02"),
	}
}

func newCalendar(t *testing.T, class *models.Class, today string, exceptions ...string) *Calendar {
	t.Helper()
	set := map[string]struct{}{}
	for _, e := range exceptions {
		set[e] = struct{}{}
	}
	cal, err := New(class, set, date(t, today))
	require.NoError(t, err)
	return cal
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 1, ISOWeekday(date(t, "2024-12-02")))
	assert.Equal(t, 6, ISOWeekday(date(t, "2024-12-07")))
	assert.Equal(t, 7, ISOWeekday(date(t, "2024-12-08")))
}

func TestClassify(t *testing.T) {
	cal := newCalendar(t, weekdayClass(t), "2024-12-05", "2024-12-04", "2024-11-25", "2024-12-06")

	tests := []struct {
		date string
		want Status
	}{
		{"2024-11-25", BeforeStart}, // Monday and excepted, still before start
		{"2024-12-01", BeforeStart},
		{"2024-12-02", PastCollectionDay},
		{"2024-12-04", NoClassException},
		{"2024-12-05", PastCollectionDay}, // today counts as past
		{"2024-12-06", NoClassException},  // future but excepted
		{"2024-12-07", NonCollectionDay},
		{"2024-12-08", NonCollectionDay},
		{"2024-12-09", FutureCollectionDay},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Classify(date(t, tt.date)))
		})
	}
}

func TestClassifyBeforeStartDominates(t *testing.T) {
	class := weekdayClass(t)
	class.CollectionDays = []int{1, 2, 3, 4, 5, 6, 7}
	cal := newCalendar(t, class, "2025-01-01", "2024-11-20")

	for d := date(t, "2024-11-01"); d.Before(class.DateInitiated); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, BeforeStart, cal.Classify(d), Format(d))
	}
}

func TestClassifyTruncatesTime(t *testing.T) {
	cal := newCalendar(t, weekdayClass(t), "2024-12-10")
	ts := time.Date(2024, 12, 2, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, PastCollectionDay, cal.Classify(ts))
}

func TestNewRejectsBadCollectionDays(t *testing.T) {
	for _, days := range [][]int{nil, {0}, {1, 8}} {
		class := weekdayClass(t)
		class.CollectionDays = days
		_, err := New(class, nil, date(t, "2024-12-10"))
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument), "%v", days)
	}
}

func TestExpectedAmount(t *testing.T) {
	p := NewProjector(newCalendar(t, weekdayClass(t), "2024-12-03", "2024-12-04"), decimal.NewFromInt(10))

	got, err := p.ExpectedAmount(date(t, "2024-12-02"), 20)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(got))

	got, err = p.ExpectedAmount(date(t, "2024-12-09"), 20)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(got), "future collection days are expected too")

	for _, d := range []string{"2024-12-04", "2024-12-07", "2024-11-29"} {
		got, err = p.ExpectedAmount(date(t, d), 20)
		require.NoError(t, err)
		assert.True(t, got.IsZero(), d)
	}

	_, err = p.ExpectedAmount(date(t, "2024-12-02"), -1)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestExpectedAmountOverRangeScenarios(t *testing.T) {
	class := weekdayClass(t)

	// full working week
	p := NewProjector(newCalendar(t, class, "2024-12-02"), class.DailyAmount)
	got, err := p.ExpectedAmountOverRange(date(t, "2024-12-02"), date(t, "2024-12-08"), 20)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.String())

	// Wednesday marked as a holiday
	p = NewProjector(newCalendar(t, class, "2024-12-02", "2024-12-04"), class.DailyAmount)
	got, err = p.ExpectedAmountOverRange(date(t, "2024-12-02"), date(t, "2024-12-08"), 20)
	require.NoError(t, err)
	assert.Equal(t, "800", got.String())

	// exception on a weekend does not subtract anything
	p = NewProjector(newCalendar(t, class, "2024-12-02", "2024-12-07"), class.DailyAmount)
	got, err = p.ExpectedAmountOverRange(date(t, "2024-12-02"), date(t, "2024-12-08"), 20)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.String())

	_, err = p.ExpectedAmountOverRange(date(t, "2024-12-08"), date(t, "2024-12-02"), 20)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestExpectedAmountOverRangeMatchesDayWalk(t *testing.T) {
	class := &models.Class{
		DailyAmount:    decimal.RequireFromString("2.5"),
		CollectionDays: []int{1, 3, 6},
		DateInitiated:  date(t, "2024-09-04"),
	}
	cal := newCalendar(t, class, "2025-03-01", "2024-09-09", "2024-12-25", "2025-01-01", "2025-01-04", "2026-02-02")
	p := NewProjector(cal, class.DailyAmount)
	from := date(t, "2024-08-15")

	for _, to := range []string{"2024-08-20", "2024-09-04", "2024-09-10", "2024-12-31", "2025-01-04", "2026-06-30"} {
		want := decimal.Zero
		err := EachDay(context.Background(), from, date(t, to), func(d time.Time) error {
			amt, err := p.ExpectedAmount(d, 7)
			want = want.Add(amt)
			return err
		})
		require.NoError(t, err)

		got, err := p.ExpectedAmountOverRange(from, date(t, to), 7)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "to=%s want=%s got=%s", to, want, got)
	}
}

func TestExpectedAmountOverRangeMonotonic(t *testing.T) {
	class := weekdayClass(t)
	p := NewProjector(newCalendar(t, class, "2025-01-15", "2024-12-04", "2024-12-25"), class.DailyAmount)
	from := date(t, "2024-11-20")

	prev := decimal.Zero
	for to := from; to.Before(date(t, "2025-03-01")); to = to.AddDate(0, 0, 1) {
		got, err := p.ExpectedAmountOverRange(from, to, 20)
		require.NoError(t, err)
		assert.True(t, got.GreaterThanOrEqual(prev), Format(to))
		prev = got
	}
}

func TestPerfectCompliance(t *testing.T) {
	class := weekdayClass(t)
	p := NewProjector(newCalendar(t, class, "2024-12-04", "2024-12-03"), class.DailyAmount)

	// Mon and Wed have passed, Tue is excepted, Thu/Fri are still ahead
	got, err := p.PerfectCompliance(class.DateInitiated, date(t, "2024-12-08"), 20)
	require.NoError(t, err)
	assert.Equal(t, "400", got.String())
}

func TestEachDayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := EachDay(ctx, date(t, "2024-01-01"), date(t, "2026-01-01"), func(time.Time) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
