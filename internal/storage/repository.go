package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
)

// Tx runs a function inside a single database transaction. Repository calls
// made with the context passed to fn join that transaction.
type Tx interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LeadRepo defines lead storage operations
type LeadRepo interface {
	Save(ctx context.Context, lead model.Lead) error
	Update(ctx context.Context, lead model.Lead) error
	FindByID(ctx context.Context, id string) (*model.Lead, error)
	FindByPhone(ctx context.Context, phone string) (*model.Lead, error)
	FindByStatus(ctx context.Context, status model.LeadStatus, limit, offset int) ([]model.Lead, error)
	Close(ctx context.Context) error
}

// CustomerRepo defines customer storage operations
type CustomerRepo interface {
	Save(ctx context.Context, customer model.Customer) error
	Update(ctx context.Context, customer model.Customer) error
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*model.Customer, error)
	Close(ctx context.Context) error
}

// ConversationRepo defines conversation storage operations
type ConversationRepo interface {
	Save(ctx context.Context, conversation model.Conversation) error
	Update(ctx context.Context, conversation model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// FindBreachCandidates returns open conversations whose last activity is
	// older than cutoff and that have not been stamped as breached yet.
	FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error)
	Close(ctx context.Context) error
}

// InteractionRepo defines interaction storage operations. Interactions are
// append-only; there is no update or delete.
type InteractionRepo interface {
	Save(ctx context.Context, interaction model.Interaction) error
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Interaction, error)
	Close(ctx context.Context) error
}

// TaskRepo defines task storage operations
type TaskRepo interface {
	Save(ctx context.Context, task model.Task) error
	Update(ctx context.Context, task model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	// FindOpenFollowUpByConversationID returns the open FOLLOW_UP task tied
	// to a conversation, if one exists.
	FindOpenFollowUpByConversationID(ctx context.Context, conversationID string) (*model.Task, error)
	FindOpenByConversationID(ctx context.Context, conversationID string) ([]model.Task, error)
	// FindOpenDueBefore returns OPEN tasks whose due date passed, for the
	// overdue sweep.
	FindOpenDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Task, error)
	Close(ctx context.Context) error
}

// AgentRepo defines referral agent storage operations
type AgentRepo interface {
	Save(ctx context.Context, agent model.Agent) error
	Update(ctx context.Context, agent model.Agent) error
	FindByID(ctx context.Context, id string) (*model.Agent, error)
	FindByCouponCode(ctx context.Context, couponCode string) (*model.Agent, error)
	FindByReferralToken(ctx context.Context, token string) (*model.Agent, error)
	Close(ctx context.Context) error
}

// AttributionRepo defines attribution storage operations
type AttributionRepo interface {
	Save(ctx context.Context, attribution model.Attribution) error
	FindByAgentAndLead(ctx context.Context, agentID, leadID string) (*model.Attribution, error)
	FindByAgentAndCustomer(ctx context.Context, agentID, customerID string) (*model.Attribution, error)
	FindByLeadID(ctx context.Context, leadID string) ([]model.Attribution, error)
	Close(ctx context.Context) error
}

// AuditRepo defines audit log storage operations. The log is append-only.
type AuditRepo interface {
	Save(ctx context.Context, event model.AuditEvent) error
	FindByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]model.AuditEvent, error)
	Close(ctx context.Context) error
}

// BusinessRepo defines tenant storage operations. These are platform-level
// and not scoped by a tenant context.
type BusinessRepo interface {
	Save(ctx context.Context, business model.Business) error
	Update(ctx context.Context, business model.Business) error
	FindByID(ctx context.Context, id string) (*model.Business, error)
	FindBySlug(ctx context.Context, slug string) (*model.Business, error)
	FindAllActive(ctx context.Context) ([]model.Business, error)
	Close(ctx context.Context) error
}

// UserRepo defines user storage operations. Email lookup is global because
// emails are unique across tenants.
type UserRepo interface {
	Save(ctx context.Context, user model.User) error
	Update(ctx context.Context, user model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Close(ctx context.Context) error
}

// DeadEventRepo defines dead event storage operations
type DeadEventRepo interface {
	Save(ctx context.Context, event model.DeadEvent) error
	Close(ctx context.Context) error
}
