package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeadEvent is an intake event that exhausted its delivery attempts. Rows are
// kept for manual inspection and replay.
type DeadEvent struct {
	ID         uint      `gorm:"primaryKey"`
	CreatedAt  time.Time // Automatically set by GORM
	BusinessID string    `gorm:"not null;index"`
	// SourceSubject is the subject the message was consumed from.
	SourceSubject string `gorm:"index;not null"`
	LastError     string
	// DeliveryCount is the final delivery count when the event was parked.
	DeliveryCount  int
	EventTimestamp time.Time      `gorm:"index"`
	Payload        datatypes.JSON `gorm:"type:jsonb;not null"`
	Resolved       bool           `gorm:"index;default:false"`
	ResolvedAt     *time.Time     `gorm:"index"`
	Notes          string         `gorm:"type:text"`
}

// TableName specifies the table name for GORM.
func (DeadEvent) TableName() string {
	return "dead_events"
}
