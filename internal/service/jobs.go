package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/models"
	"github.com/Dan9191/decembrrr/internal/utils"
)

// RunDailyDeduction charges every class for which date is a collection day.
// Re-running the same date posts nothing new.
func (s *Service) RunDailyDeduction(ctx context.Context, date string) (*models.DeductionRun, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = calendar.Format(day)

	n, err := s.store.RunDailyDeduction(ctx, date)
	if err != nil {
		s.log.Errorf("Daily deduction for %s failed: %v", date, err)
		return nil, err
	}
	s.log.Infof("Daily deduction for %s processed %d members", date, n)
	return &models.DeductionRun{Date: date, Processed: n}, nil
}

// RunDailyDeductionToday runs the deduction for today in the default timezone.
func (s *Service) RunDailyDeductionToday(ctx context.Context) (*models.DeductionRun, error) {
	today := calendar.DateIn(s.clock.Now(), s.config.Location())
	return s.RunDailyDeduction(ctx, calendar.Format(today))
}

// ScanStudent resolves a scanned student QR code for the president of
// classID. A student of another class is reported as found but not in the
// class, without profile details.
func (s *Service) ScanStudent(ctx context.Context, classID uuid.UUID, req models.ScanRequest) (*models.StudentLookup, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	studentID, err := utils.VerifyStudentToken(req.Token, s.config.QRSecret)
	if err != nil {
		s.log.Warnf("Rejected QR token: %v", err)
		return nil, apperr.Validation("INVALID_QR", err, "the scanned code is not a valid student code").
			WithHints("Ask the student to reopen their QR code")
	}

	res, err := s.store.LookupStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, apperr.NotFound("STUDENT_NOT_FOUND", "student %s not found", studentID)
	}
	if res.ClassID != classID {
		s.log.Infof("Scanned student %s is not in class %s", studentID, classID)
		return &models.StudentLookup{Found: true, StudentID: res.StudentID}, nil
	}
	res.InClass = true
	return res, nil
}
