package model

import (
	"time"
)

// AttributionMethod records how the agent was identified.
type AttributionMethod string

const (
	AttributionLink   AttributionMethod = "LINK"
	AttributionCoupon AttributionMethod = "COUPON"
	AttributionManual AttributionMethod = "MANUAL"
)

// Valid reports whether the method is one of the closed set.
func (m AttributionMethod) Valid() bool {
	switch m {
	case AttributionLink, AttributionCoupon, AttributionManual:
		return true
	}
	return false
}

// Attribution credits an agent for bringing in a lead or customer. Exactly
// one of LeadID/CustomerID is set; re-resolving the same pair is idempotent.
type Attribution struct {
	ID         string            `json:"id" gorm:"primaryKey;type:text"`
	BusinessID string            `json:"business_id" gorm:"column:business_id;type:text;index" validate:"required"`
	AgentID    string            `json:"agent_id" gorm:"column:agent_id;type:text;index" validate:"required"`
	Method     AttributionMethod `json:"method" gorm:"column:method;type:text" validate:"required"`
	LeadID     *string           `json:"lead_id,omitempty" gorm:"column:lead_id;type:text;index"`
	CustomerID *string           `json:"customer_id,omitempty" gorm:"column:customer_id;type:text;index"`
	CreatedAt  time.Time         `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (Attribution) TableName() string {
	return "attributions"
}
