package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StudentLookup is the reply of the student lookup procedure used by QR scanning.
type StudentLookup struct {
	Found     bool            `json:"found"`
	InClass   bool            `json:"in_class"`
	MemberID  uuid.UUID       `json:"member_id,omitempty"`
	ClassID   uuid.UUID       `json:"class_id,omitempty"`
	StudentID string          `json:"student_id"`
	Name      string          `json:"name,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
}

// ScanRequest carries a scanned QR payload.
type ScanRequest struct {
	Token string `json:"token" validate:"required"`
}
