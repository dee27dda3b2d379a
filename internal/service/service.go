package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/clock"
	"github.com/Dan9191/decembrrr/internal/config"
	"github.com/Dan9191/decembrrr/internal/integrations/holidays"
	"github.com/Dan9191/decembrrr/internal/models"
)

// Store is the backend the service reads and writes. The Postgres repository
// and the in-memory store both satisfy it.
type Store interface {
	GetClass(ctx context.Context, id uuid.UUID) (*models.Class, error)
	UpdateClass(ctx context.Context, c *models.Class) error

	QueryMembers(ctx context.Context, classID uuid.UUID) ([]models.Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	UpdateBalance(ctx context.Context, memberID uuid.UUID, balance decimal.Decimal) error

	QueryTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) error

	ListNoClassDates(ctx context.Context, classID uuid.UUID) ([]models.NoClassDate, error)
	GetNoClassDate(ctx context.Context, id uuid.UUID) (*models.NoClassDate, error)
	InsertNoClassDate(ctx context.Context, e *models.NoClassDate) error
	DeleteNoClassDate(ctx context.Context, id uuid.UUID) error

	RunDailyDeduction(ctx context.Context, date string) (int, error)
	RollbackNoClassDate(ctx context.Context, classID uuid.UUID, date string) (*models.RollbackResult, error)
	LookupStudent(ctx context.Context, studentID string) (*models.StudentLookup, error)
}

// Notifier delivers member notifications. Failures never fail the caller.
type Notifier interface {
	SendDepositReceipt(to, name, className string, amount, balance decimal.Decimal, at time.Time) error
	SendNoClassNotice(to, name, className, date, reason string, refunded bool) error
}

// HolidaySource lists the days off of a year.
type HolidaySource interface {
	GetHolidays(ctx context.Context, year int) ([]holidays.Holiday, error)
}

// Service handles business logic
type Service struct {
	store    Store
	log      *logrus.Logger
	config   *config.Config
	clock    clock.Clock
	notifier Notifier
	holidays HolidaySource
	validate *validator.Validate
}

// NewService initializes a new service
func NewService(store Store, log *logrus.Logger, cfg *config.Config, clk clock.Clock) *Service {
	return &Service{
		store:    store,
		log:      log,
		config:   cfg,
		clock:    clk,
		validate: validator.New(),
	}
}

// SetNotifier enables member notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetHolidaySource enables holiday imports.
func (s *Service) SetHolidaySource(h HolidaySource) { s.holidays = h }

// location is the class timezone, or the configured default when unset.
func (s *Service) location(class *models.Class) *time.Location {
	if class.Timezone == "" {
		return s.config.Location()
	}
	return class.Location()
}

// today is the current date in the class timezone.
func (s *Service) today(class *models.Class) time.Time {
	return calendar.DateIn(s.clock.Now(), s.location(class))
}

// validateRequest runs struct tags and turns failures into a VALIDATION error.
func (s *Service) validateRequest(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Validation("VALIDATION", err, "invalid request")
	}
	e := apperr.Validation("VALIDATION", err, "invalid request")
	for _, fe := range verrs {
		e.Hints = append(e.Hints, fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag()))
	}
	return e
}

// loadProjector builds the calendar of class as of today.
func (s *Service) loadProjector(ctx context.Context, class *models.Class) (*calendar.Projector, []models.NoClassDate, error) {
	exceptions, err := s.store.ListNoClassDates(ctx, class.ID)
	if err != nil {
		return nil, nil, err
	}
	cal, err := calendar.New(class, models.ExceptionDates(exceptions), s.today(class))
	if err != nil {
		return nil, nil, err
	}
	return calendar.NewProjector(cal, class.DailyAmount), exceptions, nil
}

// memberOf loads a member and checks it belongs to classID.
func (s *Service) memberOf(ctx context.Context, classID, memberID uuid.UUID) (*models.Member, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.ClassID != classID {
		return nil, apperr.NotFound("PROFILE_NOT_FOUND", "member %s is not in this class", memberID)
	}
	return m, nil
}

// GetClass retrieves a class
func (s *Service) GetClass(ctx context.Context, classID uuid.UUID) (*models.Class, error) {
	return s.store.GetClass(ctx, classID)
}

// UpdateClass applies the president's settings to a class
func (s *Service) UpdateClass(ctx context.Context, classID uuid.UUID, req models.UpdateClass) (*models.Class, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.DailyAmount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", nil, "daily amount must be greater than zero")
	}
	if req.FundGoal != nil && !req.FundGoal.IsPositive() {
		return nil, apperr.Validation("INVALID_GOAL", nil, "fund goal must be greater than zero")
	}
	if err := calendar.ValidateCollectionDays(req.CollectionDays); err != nil {
		return nil, err
	}
	start, err := calendar.ParseDate(req.DateInitiated)
	if err != nil {
		return nil, err
	}

	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	days := append([]int(nil), req.CollectionDays...)
	sort.Ints(days)

	class.Name = strings.TrimSpace(req.Name)
	class.DailyAmount = req.DailyAmount
	class.CollectionFrequency = req.CollectionFrequency
	class.CollectionDays = days
	class.DateInitiated = start
	class.FundGoal = req.FundGoal
	if req.Timezone != "" {
		class.Timezone = req.Timezone
	} else if class.Timezone == "" {
		class.Timezone = s.config.DefaultTimezone
	}

	if err := s.store.UpdateClass(ctx, class); err != nil {
		return nil, err
	}
	s.log.Infof("Class %s updated: amount %s, days %v, start %s", class.ID, class.DailyAmount, class.CollectionDays, req.DateInitiated)
	return class, nil
}

// ListMembers retrieves the members of a class
func (s *Service) ListMembers(ctx context.Context, classID uuid.UUID) ([]models.Member, error) {
	if _, err := s.store.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.store.QueryMembers(ctx, classID)
}

// FundSummary totals deposits and balances of a class
func (s *Service) FundSummary(ctx context.Context, classID uuid.UUID) (*models.FundSummary, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.QueryMembers(ctx, classID)
	if err != nil {
		return nil, err
	}
	deposits, err := s.store.QueryTransactions(ctx, models.TransactionFilter{ClassID: classID, Type: models.TransactionDeposit})
	if err != nil {
		return nil, err
	}

	sum := &models.FundSummary{
		ClassID:        classID,
		TotalDeposited: decimal.Zero,
		TotalBalance:   decimal.Zero,
		ActiveMembers:  models.CountActive(members),
		FundGoal:       class.FundGoal,
	}
	for _, tx := range deposits {
		sum.TotalDeposited = sum.TotalDeposited.Add(tx.Amount)
	}
	for _, m := range members {
		sum.TotalBalance = sum.TotalBalance.Add(m.Balance)
	}
	if class.FundGoal != nil && class.FundGoal.IsPositive() {
		pct := int(sum.TotalDeposited.Mul(decimal.NewFromInt(100)).Div(*class.FundGoal).Round(0).IntPart())
		sum.GoalPercent = &pct
	}
	return sum, nil
}
