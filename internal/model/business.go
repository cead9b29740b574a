package model

import (
	"time"

	"gorm.io/datatypes"
)

// BusinessStatus is the lifecycle status of a tenant.
type BusinessStatus string

const (
	BusinessStatusActive    BusinessStatus = "ACTIVE"
	BusinessStatusSuspended BusinessStatus = "SUSPENDED"
)

// Business is the tenant root. Every other entity carries its ID and no
// lookup or uniqueness check ever crosses it.
type Business struct {
	// ID is the tenant identifier carried in context by every operation.
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// Name is the display name of the business.
	Name string `json:"name" gorm:"column:name" validate:"required"`
	// Slug is the globally unique short handle used in referral URLs.
	Slug string `json:"slug" gorm:"column:slug;uniqueIndex" validate:"required"`
	// Status indicates whether the tenant is active.
	Status BusinessStatus `json:"status,omitempty" gorm:"column:status;type:text;default:ACTIVE"`
	// OwnerUserID references the owning user, distinct from staff membership.
	OwnerUserID *string `json:"owner_user_id,omitempty" gorm:"column:owner_user_id;type:text"`
	// Settings is an opaque document stored and returned unchanged.
	Settings  datatypes.JSON `json:"settings,omitempty" gorm:"type:jsonb;column:settings"`
	CreatedAt time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Business) TableName() string {
	return "businesses"
}
