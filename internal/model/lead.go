package model

import (
	"time"

	"gorm.io/datatypes"
)

// LeadStatus is the lifecycle status of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQualified LeadStatus = "QUALIFIED"
	LeadStatusConverted LeadStatus = "CONVERTED"
	LeadStatusLost      LeadStatus = "LOST"
)

// leadStatusTransitions is the single source of truth for legal lead status
// changes. CONVERTED appears as a target here but is only reachable through
// the convert operation, never through a plain status transition.
var leadStatusTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:       {LeadStatusContacted},
	LeadStatusContacted: {LeadStatusQualified, LeadStatusLost},
	LeadStatusQualified: {LeadStatusConverted, LeadStatusLost},
	LeadStatusConverted: {},
	LeadStatusLost:      {},
}

// Valid reports whether the status is one of the closed set.
func (s LeadStatus) Valid() bool {
	_, ok := leadStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal transition from s.
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	for _, allowed := range leadStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s LeadStatus) Terminal() bool {
	return len(leadStatusTransitions[s]) == 0
}

// Lead is a prospective customer. Unique per business by normalized phone;
// never hard-deleted (soft lifecycle via LOST).
type Lead struct {
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// BusinessID identifies the tenant this lead belongs to.
	BusinessID string `json:"business_id" gorm:"column:business_id;type:text;uniqueIndex:ux_leads_business_phone" validate:"required"`
	// PhoneNumber is the E.164 normalized deduplication key.
	PhoneNumber string     `json:"phone_number" gorm:"column:phone_number;uniqueIndex:ux_leads_business_phone" validate:"required"`
	Name        string     `json:"name,omitempty" gorm:"column:name"`
	Email       string     `json:"email,omitempty" gorm:"column:email"`
	Status      LeadStatus `json:"status" gorm:"column:status;type:text;default:NEW"`
	// Notes is free-form text merged last-write-wins on repeated intake.
	Notes string `json:"notes,omitempty" gorm:"column:notes"`
	// Tags is an opaque document stored and returned unchanged.
	Tags datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb;column:tags"`
	// Source records where the intake came from (site form, import, etc.).
	Source string `json:"source,omitempty" gorm:"column:source"`
	// OwnerID references the staff user working this lead.
	OwnerID *string `json:"owner_id,omitempty" gorm:"column:owner_id;type:text;index"`
	// CustomerID is set exactly when the lead converts; the two writes are atomic.
	CustomerID *string   `json:"customer_id,omitempty" gorm:"column:customer_id;type:text"`
	CreatedAt  time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Lead) TableName() string {
	return "leads"
}
