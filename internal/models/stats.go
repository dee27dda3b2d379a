package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberStats compares what a member should have paid so far with what they did.
type MemberStats struct {
	MemberID       uuid.UUID       `json:"member_id"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	ExpectedDays   int             `json:"expected_days"`
	ExpectedTotal  decimal.Decimal `json:"expected_total"`
	DepositedTotal decimal.Decimal `json:"deposited_total"`
	DepositCount   int             `json:"deposit_count"`
	CompletionPct  int             `json:"completion_percent"`
}

// DeductionRun is the outcome of one daily deduction invocation.
type DeductionRun struct {
	Date      string `json:"date"`
	Processed int    `json:"processed"`
}
