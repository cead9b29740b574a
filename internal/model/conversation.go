package model

import (
	"time"
)

// ConversationChannel is the contact channel of a thread.
type ConversationChannel string

const (
	ChannelSite     ConversationChannel = "SITE"
	ChannelWhatsApp ConversationChannel = "WHATSAPP"
	ChannelPhone    ConversationChannel = "PHONE"
	ChannelInternal ConversationChannel = "INTERNAL"
)

// Valid reports whether the channel is one of the closed set.
func (c ConversationChannel) Valid() bool {
	switch c {
	case ChannelSite, ChannelWhatsApp, ChannelPhone, ChannelInternal:
		return true
	}
	return false
}

// ConversationStatus is the state machine status of a thread.
type ConversationStatus string

const (
	ConversationStatusNew             ConversationStatus = "NEW"
	ConversationStatusInProgress      ConversationStatus = "IN_PROGRESS"
	ConversationStatusWaitingCustomer ConversationStatus = "WAITING_CUSTOMER"
	ConversationStatusFollowUp        ConversationStatus = "FOLLOW_UP"
	ConversationStatusClosedWon       ConversationStatus = "CLOSED_WON"
	ConversationStatusClosedLost      ConversationStatus = "CLOSED_LOST"
)

// conversationStatusTransitions is the single source of truth for legal
// conversation status changes. Closed states have no successors; once
// terminal, no status or SLA mutation is permitted.
var conversationStatusTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationStatusNew: {
		ConversationStatusInProgress,
		ConversationStatusClosedWon, ConversationStatusClosedLost,
	},
	ConversationStatusInProgress: {
		ConversationStatusWaitingCustomer, ConversationStatusFollowUp,
		ConversationStatusClosedWon, ConversationStatusClosedLost,
	},
	ConversationStatusWaitingCustomer: {
		ConversationStatusInProgress, ConversationStatusFollowUp,
		ConversationStatusClosedWon, ConversationStatusClosedLost,
	},
	ConversationStatusFollowUp: {
		ConversationStatusClosedWon, ConversationStatusClosedLost,
	},
	ConversationStatusClosedWon:  {},
	ConversationStatusClosedLost: {},
}

// Valid reports whether the status is one of the closed set.
func (s ConversationStatus) Valid() bool {
	_, ok := conversationStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal transition from s.
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	for _, allowed := range conversationStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is CLOSED_WON or CLOSED_LOST.
func (s ConversationStatus) Terminal() bool {
	return s == ConversationStatusClosedWon || s == ConversationStatusClosedLost
}

// Conversation is a contact thread owning ordered interactions and spawned
// tasks.
type Conversation struct {
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// BusinessID identifies the tenant this conversation belongs to.
	BusinessID string              `json:"business_id" gorm:"column:business_id;type:text;index" validate:"required"`
	Channel    ConversationChannel `json:"channel" gorm:"column:channel;type:text" validate:"required"`
	Status     ConversationStatus  `json:"status" gorm:"column:status;type:text;default:NEW"`
	// Optional participant links.
	OwnerID    *string `json:"owner_id,omitempty" gorm:"column:owner_id;type:text;index"`
	LeadID     *string `json:"lead_id,omitempty" gorm:"column:lead_id;type:text;index"`
	CustomerID *string `json:"customer_id,omitempty" gorm:"column:customer_id;type:text;index"`
	AgentID    *string `json:"agent_id,omitempty" gorm:"column:agent_id;type:text;index"`
	// LastActivityAt drives the SLA clock; appending an interaction bumps it.
	LastActivityAt time.Time  `json:"last_activity_at,omitempty" gorm:"column:last_activity_at"`
	NextFollowUpAt *time.Time `json:"next_follow_up_at,omitempty" gorm:"column:next_follow_up_at"`
	// SlaBreachedAt is stamped at most once and only while non-terminal.
	SlaBreachedAt *time.Time `json:"sla_breached_at,omitempty" gorm:"column:sla_breached_at"`
	// ClosedAt is stamped exactly once on first entry to a terminal state.
	ClosedAt  *time.Time `json:"closed_at,omitempty" gorm:"column:closed_at"`
	CreatedAt time.Time  `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Conversation) TableName() string {
	return "conversations"
}
