package models

import (
	"time"

	"github.com/google/uuid"
)

// NoClassDate is an exception suppressing collection on one date of a class.
// Date is a YYYY-MM-DD string, unique per class.
type NoClassDate struct {
	ID        uuid.UUID `json:"id"`
	ClassID   uuid.UUID `json:"class_id"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNoClassDate is the president's request to mark a date.
type NewNoClassDate struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=280"`
}

// MarkResult reports how many deductions were reversed by marking a date.
type MarkResult struct {
	Exception       NoClassDate `json:"exception"`
	RolledBackCount int         `json:"rolled_back_count"`
}

// RollbackResult is the reply of the rollback procedure.
type RollbackResult struct {
	Status          string `json:"status"`
	RolledBackCount int    `json:"rolled_back_count"`
}

// HolidayImport summarises a holiday calendar import.
type HolidayImport struct {
	Year            int           `json:"year"`
	Marked          []NoClassDate `json:"marked"`
	Skipped         []string      `json:"skipped"`
	RolledBackCount int           `json:"rolled_back_count"`
}

// ExceptionDates returns the set of dates in list.
func ExceptionDates(list []NoClassDate) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, e := range list {
		set[e.Date] = struct{}{}
	}
	return set
}
