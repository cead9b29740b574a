package model

import (
	"time"

	"gorm.io/datatypes"
)

// InteractionType is the kind of message or event inside a conversation.
type InteractionType string

const (
	InteractionSiteMessage  InteractionType = "SITE_MESSAGE"
	InteractionWhatsAppNote InteractionType = "WHATSAPP_NOTE"
	InteractionCallNote     InteractionType = "CALL_NOTE"
	InteractionInternalNote InteractionType = "INTERNAL_NOTE"
	InteractionSystemEvent  InteractionType = "SYSTEM_EVENT"
)

// Valid reports whether the type is one of the closed set.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionSiteMessage, InteractionWhatsAppNote, InteractionCallNote,
		InteractionInternalNote, InteractionSystemEvent:
		return true
	}
	return false
}

// InteractionDirection indicates who initiated the interaction.
type InteractionDirection string

const (
	DirectionInbound  InteractionDirection = "INBOUND"
	DirectionOutbound InteractionDirection = "OUTBOUND"
)

// Interaction is an immutable message or event inside a conversation.
// Rows are append-only; there is no update path.
type Interaction struct {
	ID             string               `json:"id" gorm:"primaryKey;type:text"`
	BusinessID     string               `json:"business_id" gorm:"column:business_id;type:text;index" validate:"required"`
	ConversationID string               `json:"conversation_id" gorm:"column:conversation_id;type:text;index" validate:"required"`
	Type           InteractionType      `json:"type" gorm:"column:type;type:text" validate:"required"`
	Direction      InteractionDirection `json:"direction,omitempty" gorm:"column:direction;type:text"`
	Body           string               `json:"body,omitempty" gorm:"column:body"`
	// Metadata is an opaque document stored and returned unchanged.
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	AuthorID *string        `json:"author_id,omitempty" gorm:"column:author_id;type:text"`
	// CreatedAt orders interactions within a conversation.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (Interaction) TableName() string {
	return "interactions"
}
