// Package compliance turns the class calendar and the deposit ledger into
// weekly, monthly and lifetime reports and monthly payer heatmaps.
package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/models"
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ReportInput is everything a report is computed from.
type ReportInput struct {
	Mode          models.ViewMode
	Projector     *calendar.Projector
	ActiveMembers int
	Actual        DailyTotals
	ReferenceDate time.Time
}

// BuildReport computes the compliance window of in.Mode around in.ReferenceDate.
func BuildReport(ctx context.Context, in ReportInput) (*models.Report, error) {
	if in.Projector == nil {
		return nil, apperr.InvalidArgument("report needs a projector")
	}
	if in.ActiveMembers < 0 {
		return nil, apperr.InvalidArgument("active member count %d is negative", in.ActiveMembers)
	}
	if in.Actual == nil {
		in.Actual = DailyTotals{}
	}
	ref := calendar.DateOf(in.ReferenceDate)

	var (
		buckets []models.Bucket
		err     error
	)
	switch in.Mode {
	case models.ViewWeekly:
		buckets, err = weeklyBuckets(ctx, in, ref)
	case models.ViewMonthly:
		buckets, err = monthlyBuckets(ctx, in, ref)
	case models.ViewOverall:
		buckets, err = overallBuckets(ctx, in, ref)
	default:
		return nil, apperr.InvalidArgument("unknown view mode %q", in.Mode)
	}
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		Mode:            in.Mode,
		ReferenceDate:   ref,
		Buckets:         buckets,
		SummaryActual:   decimal.Zero,
		SummaryExpected: decimal.Zero,
		MaxValue:        decimal.NewFromInt(1),
	}
	for _, b := range buckets {
		report.SummaryActual = report.SummaryActual.Add(b.Actual)
		report.SummaryExpected = report.SummaryExpected.Add(b.Expected)
		report.MaxValue = decimal.Max(report.MaxValue, b.Actual, b.Expected)
	}

	switch in.Mode {
	case models.ViewWeekly:
		monday := weekStart(ref)
		report.Comparison = in.Actual.Range(monday.AddDate(0, 0, -7), monday.AddDate(0, 0, -1))
	case models.ViewMonthly:
		report.Comparison = report.SummaryExpected
	case models.ViewOverall:
		report.Comparison = decimal.Zero
		if !ref.Before(in.Projector.Calendar().Start()) {
			report.Comparison, err = in.Projector.PerfectCompliance(in.Projector.Calendar().Start(), ref, in.ActiveMembers)
			if err != nil {
				return nil, err
			}
		}
	}

	report.CompletionPercent = CompletionPercent(report.SummaryActual, report.SummaryExpected)
	report.Tier = string(CompletionTierOf(report.CompletionPercent))
	return report, nil
}

// CompletionPercent is round(actual / expected * 100), or 0 when nothing was expected.
func CompletionPercent(actual, expected decimal.Decimal) int {
	if !expected.IsPositive() {
		return 0
	}
	return int(actual.Mul(decimal.NewFromInt(100)).Div(expected).Round(0).IntPart())
}

func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, 1-calendar.ISOWeekday(d))
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(d time.Time) time.Time {
	return monthStart(d).AddDate(0, 1, -1)
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// weeklyBuckets returns Mon..Sun of the ISO week containing ref.
func weeklyBuckets(ctx context.Context, in ReportInput, ref time.Time) ([]models.Bucket, error) {
	monday := weekStart(ref)
	buckets := make([]models.Bucket, 0, 7)
	err := calendar.EachDay(ctx, monday, monday.AddDate(0, 0, 6), func(day time.Time) error {
		expected, err := in.Projector.ExpectedAmount(day, in.ActiveMembers)
		if err != nil {
			return err
		}
		buckets = append(buckets, models.Bucket{
			Label:    weekdayLabels[calendar.ISOWeekday(day)-1],
			Start:    day,
			End:      day,
			Actual:   in.Actual.Day(day),
			Expected: expected,
		})
		return nil
	})
	return buckets, err
}

// monthlyBuckets splits the month of ref into 7-day spans starting on the 1st.
// The last span is clipped to the month end.
func monthlyBuckets(ctx context.Context, in ReportInput, ref time.Time) ([]models.Bucket, error) {
	first, last := monthStart(ref), monthEnd(ref)
	var buckets []models.Bucket
	for start, n := first, 1; !start.After(last); start, n = start.AddDate(0, 0, 7), n+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := minDate(start.AddDate(0, 0, 6), last)
		expected, err := in.Projector.ExpectedAmountOverRange(start, end, in.ActiveMembers)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, models.Bucket{
			Label:    fmt.Sprintf("W%d", n),
			Start:    start,
			End:      end,
			Actual:   in.Actual.Range(start, end),
			Expected: expected,
		})
	}
	return buckets, nil
}

// overallBuckets returns one bucket per month from the class start through
// ref, each clipped to [start, ref].
func overallBuckets(ctx context.Context, in ReportInput, ref time.Time) ([]models.Bucket, error) {
	start := in.Projector.Calendar().Start()
	if ref.Before(start) {
		return []models.Bucket{}, nil
	}
	var buckets []models.Bucket
	for m := monthStart(start); !m.After(ref); m = m.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		from := maxDate(m, start)
		to := minDate(monthEnd(m), ref)
		expected, err := in.Projector.ExpectedAmountOverRange(from, to, in.ActiveMembers)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, models.Bucket{
			Label:    m.Format("Jan 2006"),
			Start:    from,
			End:      to,
			Actual:   in.Actual.Range(from, to),
			Expected: expected,
		})
	}
	return buckets, nil
}
