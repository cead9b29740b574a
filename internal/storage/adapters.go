package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
)

// TxAdapter adapts the PostgresRepo to the Tx interface
type TxAdapter struct {
	postgres *PostgresRepo
}

// NewTxAdapter creates a new transaction adapter
func NewTxAdapter(postgres *PostgresRepo) Tx {
	return &TxAdapter{postgres: postgres}
}

// WithTransaction runs fn inside a database transaction
func (a *TxAdapter) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return a.postgres.WithTransaction(ctx, fn)
}

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

// NewLeadRepoAdapter creates a new lead repository adapter
func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

// Save creates a lead
func (a *LeadRepoAdapter) Save(ctx context.Context, lead model.Lead) error {
	return a.postgres.SaveLead(ctx, lead)
}

// Update updates a lead
func (a *LeadRepoAdapter) Update(ctx context.Context, lead model.Lead) error {
	return a.postgres.UpdateLead(ctx, lead)
}

// FindByID finds a lead by ID
func (a *LeadRepoAdapter) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	return a.postgres.FindLeadByID(ctx, id)
}

// FindByPhone finds a lead by normalized phone number
func (a *LeadRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	return a.postgres.FindLeadByPhone(ctx, phone)
}

// FindByStatus lists leads by status
func (a *LeadRepoAdapter) FindByStatus(ctx context.Context, status model.LeadStatus, limit, offset int) ([]model.Lead, error) {
	return a.postgres.FindLeadsByStatus(ctx, status, limit, offset)
}

func (a *LeadRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CustomerRepoAdapter adapts the PostgresRepo to the CustomerRepo interface
type CustomerRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCustomerRepoAdapter creates a new customer repository adapter
func NewCustomerRepoAdapter(postgres *PostgresRepo) CustomerRepo {
	return &CustomerRepoAdapter{postgres: postgres}
}

// Save creates a customer
func (a *CustomerRepoAdapter) Save(ctx context.Context, customer model.Customer) error {
	return a.postgres.SaveCustomer(ctx, customer)
}

// Update updates a customer
func (a *CustomerRepoAdapter) Update(ctx context.Context, customer model.Customer) error {
	return a.postgres.UpdateCustomer(ctx, customer)
}

// FindByID finds a customer by ID
func (a *CustomerRepoAdapter) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	return a.postgres.FindCustomerByID(ctx, id)
}

// FindByPhone finds a customer by normalized phone number
func (a *CustomerRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return a.postgres.FindCustomerByPhone(ctx, phone)
}

func (a *CustomerRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ConversationRepoAdapter adapts the PostgresRepo to the ConversationRepo interface
type ConversationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConversationRepoAdapter creates a new conversation repository adapter
func NewConversationRepoAdapter(postgres *PostgresRepo) ConversationRepo {
	return &ConversationRepoAdapter{postgres: postgres}
}

// Save creates a conversation
func (a *ConversationRepoAdapter) Save(ctx context.Context, conversation model.Conversation) error {
	return a.postgres.SaveConversation(ctx, conversation)
}

// Update updates a conversation
func (a *ConversationRepoAdapter) Update(ctx context.Context, conversation model.Conversation) error {
	return a.postgres.UpdateConversation(ctx, conversation)
}

// FindByID finds a conversation by ID
func (a *ConversationRepoAdapter) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return a.postgres.FindConversationByID(ctx, id)
}

// FindBreachCandidates finds open conversations past the SLA cutoff
func (a *ConversationRepoAdapter) FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	return a.postgres.FindBreachCandidates(ctx, cutoff, limit)
}

func (a *ConversationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// InteractionRepoAdapter adapts the PostgresRepo to the InteractionRepo interface
type InteractionRepoAdapter struct {
	postgres *PostgresRepo
}

// NewInteractionRepoAdapter creates a new interaction repository adapter
func NewInteractionRepoAdapter(postgres *PostgresRepo) InteractionRepo {
	return &InteractionRepoAdapter{postgres: postgres}
}

// Save appends an interaction
func (a *InteractionRepoAdapter) Save(ctx context.Context, interaction model.Interaction) error {
	return a.postgres.SaveInteraction(ctx, interaction)
}

// FindByConversationID lists interactions of a conversation
func (a *InteractionRepoAdapter) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Interaction, error) {
	return a.postgres.FindInteractionsByConversationID(ctx, conversationID, limit, offset)
}

func (a *InteractionRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// TaskRepoAdapter adapts the PostgresRepo to the TaskRepo interface
type TaskRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTaskRepoAdapter creates a new task repository adapter
func NewTaskRepoAdapter(postgres *PostgresRepo) TaskRepo {
	return &TaskRepoAdapter{postgres: postgres}
}

// Save creates a task
func (a *TaskRepoAdapter) Save(ctx context.Context, task model.Task) error {
	return a.postgres.SaveTask(ctx, task)
}

// Update updates a task
func (a *TaskRepoAdapter) Update(ctx context.Context, task model.Task) error {
	return a.postgres.UpdateTask(ctx, task)
}

// FindByID finds a task by ID
func (a *TaskRepoAdapter) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return a.postgres.FindTaskByID(ctx, id)
}

// FindOpenFollowUpByConversationID finds the open follow-up task of a conversation
func (a *TaskRepoAdapter) FindOpenFollowUpByConversationID(ctx context.Context, conversationID string) (*model.Task, error) {
	return a.postgres.FindOpenFollowUpTaskByConversationID(ctx, conversationID)
}

// FindOpenByConversationID lists open tasks of a conversation
func (a *TaskRepoAdapter) FindOpenByConversationID(ctx context.Context, conversationID string) ([]model.Task, error) {
	return a.postgres.FindOpenTasksByConversationID(ctx, conversationID)
}

// FindOpenDueBefore lists open tasks past their due date
func (a *TaskRepoAdapter) FindOpenDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Task, error) {
	return a.postgres.FindOpenTasksDueBefore(ctx, cutoff, limit)
}

func (a *TaskRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AgentRepoAdapter adapts the PostgresRepo to the AgentRepo interface
type AgentRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAgentRepoAdapter creates a new agent repository adapter
func NewAgentRepoAdapter(postgres *PostgresRepo) AgentRepo {
	return &AgentRepoAdapter{postgres: postgres}
}

// Save creates an agent
func (a *AgentRepoAdapter) Save(ctx context.Context, agent model.Agent) error {
	return a.postgres.SaveAgent(ctx, agent)
}

// Update updates an agent
func (a *AgentRepoAdapter) Update(ctx context.Context, agent model.Agent) error {
	return a.postgres.UpdateAgent(ctx, agent)
}

// FindByID finds an agent by ID
func (a *AgentRepoAdapter) FindByID(ctx context.Context, id string) (*model.Agent, error) {
	return a.postgres.FindAgentByID(ctx, id)
}

// FindByCouponCode finds an agent by coupon code
func (a *AgentRepoAdapter) FindByCouponCode(ctx context.Context, couponCode string) (*model.Agent, error) {
	return a.postgres.FindAgentByCouponCode(ctx, couponCode)
}

// FindByReferralToken finds an agent by referral token
func (a *AgentRepoAdapter) FindByReferralToken(ctx context.Context, token string) (*model.Agent, error) {
	return a.postgres.FindAgentByReferralToken(ctx, token)
}

func (a *AgentRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AttributionRepoAdapter adapts the PostgresRepo to the AttributionRepo interface
type AttributionRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAttributionRepoAdapter creates a new attribution repository adapter
func NewAttributionRepoAdapter(postgres *PostgresRepo) AttributionRepo {
	return &AttributionRepoAdapter{postgres: postgres}
}

// Save creates an attribution
func (a *AttributionRepoAdapter) Save(ctx context.Context, attribution model.Attribution) error {
	return a.postgres.SaveAttribution(ctx, attribution)
}

// FindByAgentAndLead finds the attribution tying an agent to a lead
func (a *AttributionRepoAdapter) FindByAgentAndLead(ctx context.Context, agentID, leadID string) (*model.Attribution, error) {
	return a.postgres.FindAttributionByAgentAndLead(ctx, agentID, leadID)
}

// FindByAgentAndCustomer finds the attribution tying an agent to a customer
func (a *AttributionRepoAdapter) FindByAgentAndCustomer(ctx context.Context, agentID, customerID string) (*model.Attribution, error) {
	return a.postgres.FindAttributionByAgentAndCustomer(ctx, agentID, customerID)
}

// FindByLeadID lists attributions credited to a lead
func (a *AttributionRepoAdapter) FindByLeadID(ctx context.Context, leadID string) ([]model.Attribution, error) {
	return a.postgres.FindAttributionsByLeadID(ctx, leadID)
}

func (a *AttributionRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AuditRepoAdapter adapts the PostgresRepo to the AuditRepo interface
type AuditRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAuditRepoAdapter creates a new audit repository adapter
func NewAuditRepoAdapter(postgres *PostgresRepo) AuditRepo {
	return &AuditRepoAdapter{postgres: postgres}
}

// Save appends an audit event
func (a *AuditRepoAdapter) Save(ctx context.Context, event model.AuditEvent) error {
	return a.postgres.SaveAuditEvent(ctx, event)
}

// FindByEntity lists audit events of one entity
func (a *AuditRepoAdapter) FindByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]model.AuditEvent, error) {
	return a.postgres.FindAuditEventsByEntity(ctx, entityType, entityID, limit, offset)
}

func (a *AuditRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// BusinessRepoAdapter adapts the PostgresRepo to the BusinessRepo interface
type BusinessRepoAdapter struct {
	postgres *PostgresRepo
}

// NewBusinessRepoAdapter creates a new business repository adapter
func NewBusinessRepoAdapter(postgres *PostgresRepo) BusinessRepo {
	return &BusinessRepoAdapter{postgres: postgres}
}

// Save creates a business
func (a *BusinessRepoAdapter) Save(ctx context.Context, business model.Business) error {
	return a.postgres.SaveBusiness(ctx, business)
}

// Update updates a business
func (a *BusinessRepoAdapter) Update(ctx context.Context, business model.Business) error {
	return a.postgres.UpdateBusiness(ctx, business)
}

// FindByID finds a business by ID
func (a *BusinessRepoAdapter) FindByID(ctx context.Context, id string) (*model.Business, error) {
	return a.postgres.FindBusinessByID(ctx, id)
}

// FindBySlug finds a business by slug
func (a *BusinessRepoAdapter) FindBySlug(ctx context.Context, slug string) (*model.Business, error) {
	return a.postgres.FindBusinessBySlug(ctx, slug)
}

// FindAllActive lists active businesses
func (a *BusinessRepoAdapter) FindAllActive(ctx context.Context) ([]model.Business, error) {
	return a.postgres.FindActiveBusinesses(ctx)
}

func (a *BusinessRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// UserRepoAdapter adapts the PostgresRepo to the UserRepo interface
type UserRepoAdapter struct {
	postgres *PostgresRepo
}

// NewUserRepoAdapter creates a new user repository adapter
func NewUserRepoAdapter(postgres *PostgresRepo) UserRepo {
	return &UserRepoAdapter{postgres: postgres}
}

// Save creates a user
func (a *UserRepoAdapter) Save(ctx context.Context, user model.User) error {
	return a.postgres.SaveUser(ctx, user)
}

// Update updates a user
func (a *UserRepoAdapter) Update(ctx context.Context, user model.User) error {
	return a.postgres.UpdateUser(ctx, user)
}

// FindByID finds a user by ID
func (a *UserRepoAdapter) FindByID(ctx context.Context, id string) (*model.User, error) {
	return a.postgres.FindUserByID(ctx, id)
}

// FindByEmail finds a user by email
func (a *UserRepoAdapter) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return a.postgres.FindUserByEmail(ctx, email)
}

func (a *UserRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// DeadEventRepoAdapter adapts the PostgresRepo to the DeadEventRepo interface
type DeadEventRepoAdapter struct {
	postgres *PostgresRepo
}

// NewDeadEventRepoAdapter creates a new dead event repository adapter
func NewDeadEventRepoAdapter(postgres *PostgresRepo) DeadEventRepo {
	return &DeadEventRepoAdapter{postgres: postgres}
}

// Save parks a dead event
func (a *DeadEventRepoAdapter) Save(ctx context.Context, event model.DeadEvent) error {
	return a.postgres.SaveDeadEvent(ctx, event)
}

func (a *DeadEventRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ Tx = (*TxAdapter)(nil)
var _ LeadRepo = (*LeadRepoAdapter)(nil)
var _ CustomerRepo = (*CustomerRepoAdapter)(nil)
var _ ConversationRepo = (*ConversationRepoAdapter)(nil)
var _ InteractionRepo = (*InteractionRepoAdapter)(nil)
var _ TaskRepo = (*TaskRepoAdapter)(nil)
var _ AgentRepo = (*AgentRepoAdapter)(nil)
var _ AttributionRepo = (*AttributionRepoAdapter)(nil)
var _ AuditRepo = (*AuditRepoAdapter)(nil)
var _ BusinessRepo = (*BusinessRepoAdapter)(nil)
var _ UserRepo = (*UserRepoAdapter)(nil)
var _ DeadEventRepo = (*DeadEventRepoAdapter)(nil)
