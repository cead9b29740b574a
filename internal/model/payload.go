package model

// LeadIntakePayload is the wire payload of a v1.crm.leads.intake event.
type LeadIntakePayload struct {
	BusinessID  string `json:"business_id,omitempty"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	// Region hints the phone parser when the number has no country prefix.
	Region string                 `json:"region,omitempty"`
	Name   string                 `json:"name,omitempty"`
	Email  string                 `json:"email,omitempty" validate:"omitempty,email"`
	Notes  string                 `json:"notes,omitempty"`
	Tags   map[string]interface{} `json:"tags,omitempty"`
	Source string                 `json:"source,omitempty"`
	// At most one of the following identifies the referring agent.
	CouponCode    string `json:"coupon_code,omitempty"`
	ReferralToken string `json:"referral_token,omitempty"`
}

// ConversationMessagePayload is the wire payload of a
// v1.crm.conversations.message event. When ConversationID is empty a new
// conversation is opened on the given channel.
type ConversationMessagePayload struct {
	BusinessID     string                 `json:"business_id,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Channel        ConversationChannel    `json:"channel,omitempty"`
	Type           InteractionType        `json:"type" validate:"required"`
	Direction      InteractionDirection   `json:"direction,omitempty"`
	Body           string                 `json:"body,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	AuthorID       string                 `json:"author_id,omitempty"`
	LeadID         string                 `json:"lead_id,omitempty"`
	CustomerID     string                 `json:"customer_id,omitempty"`
}
