package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/models"
)

// ListNoClass lists the exceptions of a class ordered by date
func (s *Service) ListNoClass(ctx context.Context, classID uuid.UUID) ([]models.NoClassDate, error) {
	if _, err := s.store.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.store.ListNoClassDates(ctx, classID)
}

// MarkNoClass records a no-class date. When the date is today or earlier the
// deductions already posted for it are reversed and counted in the result; a
// future date only keeps the deduction job from charging it.
//
// Marking a date twice fails with a duplicate exception error and leaves the
// ledger untouched.
func (s *Service) MarkNoClass(ctx context.Context, classID uuid.UUID, req models.NewNoClassDate) (*models.MarkResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	day, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListNoClassDates(ctx, classID)
	if err != nil {
		return nil, err
	}
	if _, dup := models.ExceptionDates(existing)[calendar.Format(day)]; dup {
		return nil, apperr.DuplicateException(calendar.Format(day))
	}

	res, refunded, err := s.markDate(ctx, class, day, strings.TrimSpace(req.Reason))
	if err != nil {
		return nil, err
	}
	s.notifyNoClass(ctx, class, res, refunded)
	return res, nil
}

// markDate inserts the exception and reverses the deductions of day when it
// is not in the future. It returns the members whose deduction was reversed.
// When the reversal fails the exception is removed again so the mark can be
// retried.
func (s *Service) markDate(ctx context.Context, class *models.Class, day time.Time, reason string) (*models.MarkResult, map[uuid.UUID]bool, error) {
	e := &models.NoClassDate{
		ClassID: class.ID,
		Date:    calendar.Format(day),
		Reason:  reason,
	}
	past := !day.After(s.today(class))

	refunded := map[uuid.UUID]bool{}
	if past {
		loc := s.location(class)
		charged, err := s.store.QueryTransactions(ctx, models.TransactionFilter{
			ClassID: class.ID,
			Type:    models.TransactionDeduction,
			From:    calendar.StartOfDay(day, loc),
			To:      calendar.StartOfDay(day.AddDate(0, 0, 1), loc),
		})
		if err != nil {
			return nil, nil, err
		}
		for _, tx := range charged {
			refunded[tx.ProfileID] = true
		}
	}

	if err := s.store.InsertNoClassDate(ctx, e); err != nil {
		return nil, nil, err
	}
	res := &models.MarkResult{Exception: *e}

	if past {
		rb, err := s.store.RollbackNoClassDate(ctx, class.ID, e.Date)
		if err != nil {
			s.log.Errorf("Rollback of no-class %s for class %s failed: %v", e.Date, class.ID, err)
			if derr := s.store.DeleteNoClassDate(ctx, e.ID); derr != nil {
				s.log.Errorf("No-class %s of class %s left without rollback: %v", e.Date, class.ID, derr)
				return nil, nil, apperr.As(err).WithHints("Unmark the date and mark it again")
			}
			return nil, nil, apperr.As(err).WithHints("Try marking the date again")
		}
		res.RolledBackCount = rb.RolledBackCount
	}

	s.log.Infof("Marked no-class %s for class %s (%q), rolled back %d deductions",
		e.Date, class.ID, e.Reason, res.RolledBackCount)
	return res, refunded, nil
}

func (s *Service) notifyNoClass(ctx context.Context, class *models.Class, res *models.MarkResult, refunded map[uuid.UUID]bool) {
	if s.notifier == nil {
		return
	}
	members, err := s.store.QueryMembers(ctx, class.ID)
	if err != nil {
		s.log.Warnf("No-class notices for class %s not sent: %v", class.ID, err)
		return
	}
	for _, m := range members {
		if !m.IsActive || m.Email == "" {
			continue
		}
		if err := s.notifier.SendNoClassNotice(m.Email, m.Name, class.Name, res.Exception.Date, res.Exception.Reason, refunded[m.ID]); err != nil {
			s.log.Warnf("No-class notice to %s not sent: %v", m.ID, err)
		}
	}
}

// UnmarkNoClass deletes an exception. Deductions reversed when it was marked
// are not posted again.
func (s *Service) UnmarkNoClass(ctx context.Context, classID, exceptionID uuid.UUID) error {
	e, err := s.store.GetNoClassDate(ctx, exceptionID)
	if err != nil {
		return err
	}
	if e.ClassID != classID {
		return apperr.NotFound("EXCEPTION_NOT_FOUND", "no-class entry %s is not in this class", exceptionID)
	}
	if err := s.store.DeleteNoClassDate(ctx, exceptionID); err != nil {
		return err
	}
	s.log.Infof("Unmarked no-class %s for class %s", e.Date, classID)
	return nil
}

// ImportHolidays marks every day off of year that falls on a collection day.
// Dates already marked are reported as skipped. A zero year means the
// current one in the class timezone.
func (s *Service) ImportHolidays(ctx context.Context, classID uuid.UUID, year int) (*models.HolidayImport, error) {
	if s.holidays == nil {
		return nil, apperr.Configuration(nil, "holiday import is not configured").
			WithHints("Set HOLIDAY_FEED_URL")
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.today(class).Year()
	}
	if year < 1900 || year > 9999 {
		return nil, apperr.InvalidArgument("year %d is out of range", year)
	}
	days, err := s.holidays.GetHolidays(ctx, year)
	if err != nil {
		return nil, apperr.Unreachable(err)
	}
	proj, _, err := s.loadProjector(ctx, class)
	if err != nil {
		return nil, err
	}
	cal := proj.Calendar()

	out := &models.HolidayImport{Year: year, Marked: []models.NoClassDate{}, Skipped: []string{}}
	for _, h := range days {
		switch cal.Classify(h.Date) {
		case calendar.BeforeStart, calendar.NonCollectionDay:
			continue
		case calendar.NoClassException:
			out.Skipped = append(out.Skipped, calendar.Format(h.Date))
			continue
		}
		res, _, err := s.markDate(ctx, class, h.Date, h.Title)
		if err != nil {
			if errors.Is(err, apperr.ErrDuplicateException) {
				out.Skipped = append(out.Skipped, calendar.Format(h.Date))
				continue
			}
			return nil, err
		}
		out.Marked = append(out.Marked, res.Exception)
		out.RolledBackCount += res.RolledBackCount
	}

	s.log.Infof("Imported %d holidays of %d for class %s, skipped %d", len(out.Marked), year, classID, len(out.Skipped))
	return out, nil
}
