package model

import (
	"time"
)

// AgentStatus is the partnership status of a referral agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "ACTIVE"
	AgentStatusDisabled AgentStatus = "DISABLED"
)

// Agent is an external referral partner of a business. Attribution credits
// leads and customers to the agent that referred them.
type Agent struct {
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// BusinessID identifies the tenant this agent belongs to.
	BusinessID string `json:"business_id" gorm:"column:business_id;type:text;uniqueIndex:ux_agents_business_coupon" validate:"required"`
	// Name is a display label for the agent.
	Name string `json:"name,omitempty" gorm:"column:name"`
	// CouponCode is unique within the business and matched on intake.
	CouponCode string `json:"coupon_code" gorm:"column:coupon_code;uniqueIndex:ux_agents_business_coupon" validate:"required"`
	// ReferralToken is the opaque token embedded in the agent's referral URL.
	ReferralToken string `json:"referral_token,omitempty" gorm:"column:referral_token;index"`
	// ReferralURL is the shareable link carrying the referral token.
	ReferralURL string      `json:"referral_url,omitempty" gorm:"column:referral_url"`
	Status      AgentStatus `json:"status,omitempty" gorm:"column:status;type:text;default:ACTIVE"`
	CreatedAt   time.Time   `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Agent) TableName() string {
	return "agents"
}
