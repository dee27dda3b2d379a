package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViewMode is a compliance window granularity.
type ViewMode string

const (
	ViewWeekly  ViewMode = "weekly"
	ViewMonthly ViewMode = "monthly"
	ViewOverall ViewMode = "overall"
)

// Bucket is one chart column: a day, a 7-day span or a month.
type Bucket struct {
	Label    string          `json:"label"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Actual   decimal.Decimal `json:"actual"`
	Expected decimal.Decimal `json:"expected"`
}

// Report is a compliance window with its summary and comparison baseline.
// Buckets are always in ascending chronological order.
type Report struct {
	Mode              ViewMode        `json:"mode"`
	ReferenceDate     time.Time       `json:"reference_date"`
	Buckets           []Bucket        `json:"buckets"`
	SummaryActual     decimal.Decimal `json:"summary_actual"`
	SummaryExpected   decimal.Decimal `json:"summary_expected"`
	Comparison        decimal.Decimal `json:"comparison"`
	MaxValue          decimal.Decimal `json:"max_value"`
	CompletionPercent int             `json:"completion_percent"`
	Tier              string          `json:"tier"`
}

// HeatmapDay is one rendered heatmap cell.
type HeatmapDay struct {
	Date    string `json:"date"`
	Percent int    `json:"percent"`
	Band    string `json:"band"`
}

// Heatmap is the per-day payer percentage of one month. Days without
// deposits are absent from Days.
type Heatmap struct {
	Year          int          `json:"year"`
	Month         int          `json:"month"`
	ActiveMembers int          `json:"active_members"`
	Days          []HeatmapDay `json:"days"`
}

// CalendarDay is the classification of a single date for a class.
type CalendarDay struct {
	Date     string          `json:"date"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Expected decimal.Decimal `json:"expected"`
}
