package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/compliance"
	"github.com/Dan9191/decembrrr/internal/models"
)

// RecordDeposit records a cash payment handed to the president.
//
// The ledger entry is written before the balance. Neither step is retried and
// the two writes are not isolated from a concurrent deduction run.
func (s *Service) RecordDeposit(ctx context.Context, classID uuid.UUID, req models.NewDeposit) (*models.Transaction, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", nil, "amount must be greater than zero").
			WithHints("Enter the amount the student handed over")
	}

	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	member, err := s.memberOf(ctx, classID, req.MemberID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ClassID:       classID,
		ProfileID:     member.ID,
		Type:          models.TransactionDeposit,
		Amount:        req.Amount,
		BalanceBefore: member.Balance,
		BalanceAfter:  member.Balance.Add(req.Amount),
		Note:          req.Note,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		s.log.Errorf("Deposit for member %s rejected: %v", member.ID, err)
		return nil, err
	}
	if err := s.store.UpdateBalance(ctx, member.ID, tx.BalanceAfter); err != nil {
		s.log.Errorf("Deposit %s recorded but balance of %s not updated: %v", tx.ID, member.ID, err)
		return nil, err
	}

	s.log.Infof("Deposit recorded: class %s member %s amount %s balance %s -> %s",
		classID, member.ID, tx.Amount, tx.BalanceBefore, tx.BalanceAfter)

	if s.notifier != nil && member.Email != "" {
		if err := s.notifier.SendDepositReceipt(member.Email, member.Name, class.Name, tx.Amount, tx.BalanceAfter, tx.CreatedAt); err != nil {
			s.log.Warnf("Deposit receipt for %s not sent: %v", member.ID, err)
		}
	}
	return tx, nil
}

// MemberTransactions lists the ledger of one member, oldest first
func (s *Service) MemberTransactions(ctx context.Context, classID, memberID uuid.UUID) ([]models.Transaction, error) {
	if _, err := s.memberOf(ctx, classID, memberID); err != nil {
		return nil, err
	}
	return s.store.QueryTransactions(ctx, models.TransactionFilter{ClassID: classID, ProfileID: memberID})
}

// MemberStats compares a member's deposits with what the calendar expected so far
func (s *Service) MemberStats(ctx context.Context, classID, memberID uuid.UUID) (*models.MemberStats, error) {
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	member, err := s.memberOf(ctx, classID, memberID)
	if err != nil {
		return nil, err
	}
	proj, _, err := s.loadProjector(ctx, class)
	if err != nil {
		return nil, err
	}
	deposits, err := s.store.QueryTransactions(ctx, models.TransactionFilter{
		ClassID:   classID,
		ProfileID: memberID,
		Type:      models.TransactionDeposit,
	})
	if err != nil {
		return nil, err
	}

	cal := proj.Calendar()
	days := cal.PastCollectionDaysInRange(cal.Start(), cal.Today())
	stats := &models.MemberStats{
		MemberID:       member.ID,
		Name:           member.Name,
		Balance:        member.Balance,
		ExpectedDays:   days,
		ExpectedTotal:  class.DailyAmount.Mul(decimal.NewFromInt(int64(days))),
		DepositedTotal: decimal.Zero,
		DepositCount:   len(deposits),
	}
	for _, tx := range deposits {
		stats.DepositedTotal = stats.DepositedTotal.Add(tx.Amount)
	}
	stats.CompletionPct = compliance.CompletionPercent(stats.DepositedTotal, stats.ExpectedTotal)
	return stats, nil
}

// ActualAmountByDate sums the class deposits per date of [from, to] in the class timezone.
func (s *Service) ActualAmountByDate(ctx context.Context, classID uuid.UUID, from, to string) (compliance.DailyTotals, error) {
	fromDate, err := calendar.ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := calendar.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if toDate.Before(fromDate) {
		return nil, apperr.InvalidArgument("range end %s is before start %s", to, from)
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return s.actualBetween(ctx, class, fromDate, toDate)
}

func (s *Service) actualBetween(ctx context.Context, class *models.Class, from, to time.Time) (compliance.DailyTotals, error) {
	loc := s.location(class)
	txs, err := s.store.QueryTransactions(ctx, models.TransactionFilter{
		ClassID: class.ID,
		Type:    models.TransactionDeposit,
		From:    calendar.StartOfDay(from, loc),
		To:      calendar.StartOfDay(to.AddDate(0, 0, 1), loc),
	})
	if err != nil {
		return nil, err
	}
	return compliance.ActualByDate(txs, loc), nil
}
