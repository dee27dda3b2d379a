package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/compliance"
	"github.com/Dan9191/decembrrr/internal/models"
)

// Report builds the compliance window of mode around ref (YYYY-MM-DD). An
// empty ref means today in the class timezone.
func (s *Service) Report(ctx context.Context, classID uuid.UUID, mode models.ViewMode, ref string) (*models.Report, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	refDate := s.today(class)
	if ref != "" {
		if refDate, err = calendar.ParseDate(ref); err != nil {
			return nil, err
		}
	}

	var from, to time.Time
	switch mode {
	case models.ViewWeekly:
		// the previous week feeds the comparison baseline
		monday := refDate.AddDate(0, 0, 1-calendar.ISOWeekday(refDate))
		from, to = monday.AddDate(0, 0, -7), monday.AddDate(0, 0, 6)
	case models.ViewMonthly:
		from = time.Date(refDate.Year(), refDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, -1)
	case models.ViewOverall:
		from, to = calendar.DateOf(class.DateInitiated), refDate
		if to.Before(from) {
			to = from
		}
	default:
		return nil, apperr.InvalidArgument("unknown view mode %q", mode).
			WithHints("Use one of weekly, monthly, overall")
	}

	proj, _, err := s.loadProjector(ctx, class)
	if err != nil {
		return nil, err
	}
	members, err := s.store.QueryMembers(ctx, classID)
	if err != nil {
		return nil, err
	}
	actual, err := s.actualBetween(ctx, class, from, to)
	if err != nil {
		return nil, err
	}

	return compliance.BuildReport(ctx, compliance.ReportInput{
		Mode:          mode,
		Projector:     proj,
		ActiveMembers: models.CountActive(members),
		Actual:        actual,
		ReferenceDate: refDate,
	})
}

// Heatmap computes the payer percentage per day of a month. A zero year or
// month means the current one in the class timezone.
func (s *Service) Heatmap(ctx context.Context, classID uuid.UUID, year int, month time.Month) (*models.Heatmap, error) {
	if month < 0 || month > time.December {
		return nil, apperr.InvalidArgument("month %d is out of range", month)
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	today := s.today(class)
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = today.Month()
	}
	members, err := s.store.QueryMembers(ctx, classID)
	if err != nil {
		return nil, err
	}

	loc := s.location(class)
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	txs, err := s.store.QueryTransactions(ctx, models.TransactionFilter{
		ClassID: classID,
		Type:    models.TransactionDeposit,
		From:    calendar.StartOfDay(first, loc),
		To:      calendar.StartOfDay(first.AddDate(0, 1, 0), loc),
	})
	if err != nil {
		return nil, err
	}
	return compliance.MonthlyHeatmap(ctx, txs, year, month, models.CountActive(members), loc)
}

// ClassifyDate describes one date of the class calendar.
func (s *Service) ClassifyDate(ctx context.Context, classID uuid.UUID, date string) (*models.CalendarDay, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	proj, exceptions, err := s.loadProjector(ctx, class)
	if err != nil {
		return nil, err
	}
	members, err := s.store.QueryMembers(ctx, classID)
	if err != nil {
		return nil, err
	}
	expected, err := proj.ExpectedAmount(day, models.CountActive(members))
	if err != nil {
		return nil, err
	}

	status := proj.Calendar().Classify(day)
	out := &models.CalendarDay{
		Date:     calendar.Format(day),
		Status:   status.String(),
		Expected: expected,
	}
	if status == calendar.NoClassException {
		for _, e := range exceptions {
			if e.Date == out.Date {
				out.Reason = e.Reason
				break
			}
		}
	}
	return out, nil
}
