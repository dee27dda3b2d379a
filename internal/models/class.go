package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionFrequency describes how the daily amount is presented. It does not
// change which weekdays collect.
type CollectionFrequency string

const (
	FrequencyDaily  CollectionFrequency = "daily"
	FrequencyWeekly CollectionFrequency = "weekly"
)

// Class is the configuration of one class fund.
type Class struct {
	ID                  uuid.UUID           `json:"id"`
	Name                string              `json:"name"`
	PresidentID         uuid.UUID           `json:"president_id"`
	DailyAmount         decimal.Decimal     `json:"daily_amount"`
	CollectionFrequency CollectionFrequency `json:"collection_frequency"`
	CollectionDays      []int               `json:"collection_days"` // ISO weekdays, 1=Monday..7=Sunday
	DateInitiated       time.Time           `json:"date_initiated"`
	FundGoal            *decimal.Decimal    `json:"fund_goal,omitempty"`
	Timezone            string              `json:"timezone"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Location resolves the class timezone, falling back to UTC.
func (c *Class) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UpdateClass carries the president-editable class settings.
type UpdateClass struct {
	Name                string              `json:"name" validate:"required,max=120"`
	DailyAmount         decimal.Decimal     `json:"daily_amount"`
	CollectionFrequency CollectionFrequency `json:"collection_frequency" validate:"required,oneof=daily weekly"`
	CollectionDays      []int               `json:"collection_days" validate:"required,min=1,max=7,unique,dive,min=1,max=7"`
	DateInitiated       string              `json:"date_initiated" validate:"required,datetime=2006-01-02"`
	FundGoal            *decimal.Decimal    `json:"fund_goal"`
	Timezone            string              `json:"timezone" validate:"omitempty,timezone"`
}

// FundSummary is the headline view of a class fund.
type FundSummary struct {
	ClassID        uuid.UUID        `json:"class_id"`
	TotalDeposited decimal.Decimal  `json:"total_deposited"`
	TotalBalance   decimal.Decimal  `json:"total_balance"`
	ActiveMembers  int              `json:"active_members"`
	FundGoal       *decimal.Decimal `json:"fund_goal,omitempty"`
	GoalPercent    *int             `json:"goal_percent,omitempty"`
}
