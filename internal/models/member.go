package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is a participant profile within a class. Balance is negative when
// the member owes money.
type Member struct {
	ID        uuid.UUID       `json:"id"`
	ClassID   uuid.UUID       `json:"class_id"`
	StudentID string          `json:"student_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// CountActive returns how many members are active.
func CountActive(members []Member) int {
	n := 0
	for _, m := range members {
		if m.IsActive {
			n++
		}
	}
	return n
}
