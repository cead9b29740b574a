package model

import (
	"time"
)

// TaskType is the kind of scheduled follow-up action.
type TaskType string

const (
	TaskTypeFollowUp TaskType = "FOLLOW_UP"
	TaskTypeCall     TaskType = "CALL"
	TaskTypeSendInfo TaskType = "SEND_INFO"
)

// Valid reports whether the type is one of the closed set.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeFollowUp, TaskTypeCall, TaskTypeSendInfo:
		return true
	}
	return false
}

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusOpen     TaskStatus = "OPEN"
	TaskStatusDone     TaskStatus = "DONE"
	TaskStatusOverdue  TaskStatus = "OVERDUE"
	TaskStatusCanceled TaskStatus = "CANCELED"
)

// taskStatusTransitions is the single source of truth for legal task status
// changes. DONE and CANCELED are terminal.
var taskStatusTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusOpen:     {TaskStatusDone, TaskStatusOverdue, TaskStatusCanceled},
	TaskStatusOverdue:  {TaskStatusDone, TaskStatusCanceled},
	TaskStatusDone:     {},
	TaskStatusCanceled: {},
}

// Valid reports whether the status is one of the closed set.
func (s TaskStatus) Valid() bool {
	_, ok := taskStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal transition from s.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a scheduled follow-up action, optionally tied to a lead, customer,
// or conversation.
type Task struct {
	ID         string     `json:"id" gorm:"primaryKey;type:text"`
	BusinessID string     `json:"business_id" gorm:"column:business_id;type:text;index" validate:"required"`
	Type       TaskType   `json:"type" gorm:"column:type;type:text" validate:"required"`
	Status     TaskStatus `json:"status" gorm:"column:status;type:text;default:OPEN"`
	// DueAt drives the overdue sweep.
	DueAt       time.Time  `json:"due_at" gorm:"column:due_at;index" validate:"required"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	Title       string     `json:"title,omitempty" gorm:"column:title"`
	// Optional links.
	LeadID         *string   `json:"lead_id,omitempty" gorm:"column:lead_id;type:text;index"`
	CustomerID     *string   `json:"customer_id,omitempty" gorm:"column:customer_id;type:text;index"`
	ConversationID *string   `json:"conversation_id,omitempty" gorm:"column:conversation_id;type:text;index"`
	OwnerID        *string   `json:"owner_id,omitempty" gorm:"column:owner_id;type:text;index"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Task) TableName() string {
	return "tasks"
}
