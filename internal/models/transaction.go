package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger entry.
type TransactionType string

const (
	TransactionDeposit   TransactionType = "deposit"
	TransactionDeduction TransactionType = "deduction"
)

// Transaction is an append-only ledger entry. Amount is always positive; the
// type decides the sign applied to the member balance.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	ClassID       uuid.UUID       `json:"class_id"`
	ProfileID     uuid.UUID       `json:"profile_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Delta is the signed change the entry applies to a balance.
func (t Transaction) Delta() decimal.Decimal {
	if t.Type == TransactionDeduction {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionFilter narrows a ledger query. Zero values leave a field unfiltered.
// From is inclusive, To is exclusive.
type TransactionFilter struct {
	ClassID   uuid.UUID
	ProfileID uuid.UUID
	Type      TransactionType
	From      time.Time
	To        time.Time
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.ClassID != uuid.Nil && t.ClassID != f.ClassID {
		return false
	}
	if f.ProfileID != uuid.Nil && t.ProfileID != f.ProfileID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// NewDeposit records a deposit request from the president.
type NewDeposit struct {
	MemberID uuid.UUID       `json:"member_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note" validate:"max=280"`
}
