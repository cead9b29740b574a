package model

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded by the engine. One row per mutating operation,
// written in the same transaction as the mutation itself.
const (
	AuditActionCreate     = "create"
	AuditActionMerge      = "merge"
	AuditActionUpdate     = "update"
	AuditActionTransition = "transition"
	AuditActionConvert    = "convert"
	AuditActionClose      = "close"
	AuditActionSlaBreach  = "sla_breach"
	AuditActionOverdue    = "overdue"
	AuditActionComplete   = "complete"
	AuditActionCancel     = "cancel"
	AuditActionAttribute  = "attribute"
)

// AuditEvent is an immutable log row with before/after snapshots of a
// mutating operation. Append-only; the engine never updates or deletes rows.
type AuditEvent struct {
	ID         int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	BusinessID string `json:"business_id" gorm:"column:business_id;type:text;index" validate:"required"`
	// EntityType names the table of the mutated entity (e.g. "leads").
	EntityType string `json:"entity_type" gorm:"column:entity_type;index:idx_audit_entity" validate:"required"`
	EntityID   string `json:"entity_id" gorm:"column:entity_id;index:idx_audit_entity" validate:"required"`
	Action     string `json:"action" gorm:"column:action" validate:"required"`
	// Before and After are opaque JSON snapshots of the entity around the
	// mutation. Before is null on create.
	Before datatypes.JSON `json:"before,omitempty" gorm:"type:jsonb;column:before"`
	After  datatypes.JSON `json:"after,omitempty" gorm:"type:jsonb;column:after"`
	// ActorID references the user who performed the operation, when known.
	ActorID   *string   `json:"actor_id,omitempty" gorm:"column:actor_id;type:text"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (AuditEvent) TableName() string {
	return "audit_events"
}
