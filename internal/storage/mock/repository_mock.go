package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
)

// --- Tx Mock ---

// TxMock mocks the Tx interface. By default WithTransaction just runs fn
// with the same context; override Run to change that.
type TxMock struct {
	mock.Mock
}

// WithTransaction mocks the WithTransaction method
func (m *TxMock) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) == nil {
		return fn(ctx)
	}
	return args.Error(0)
}

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *LeadRepoMock) Save(ctx context.Context, lead model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// Update mocks the Update method
func (m *LeadRepoMock) Update(ctx context.Context, lead model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *LeadRepoMock) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *LeadRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// FindByStatus mocks the FindByStatus method
func (m *LeadRepoMock) FindByStatus(ctx context.Context, status model.LeadStatus, limit, offset int) ([]model.Lead, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *LeadRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CustomerRepo Mock ---

// CustomerRepoMock mocks the CustomerRepo interface
type CustomerRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *CustomerRepoMock) Save(ctx context.Context, customer model.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

// Update mocks the Update method
func (m *CustomerRepoMock) Update(ctx context.Context, customer model.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *CustomerRepoMock) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *CustomerRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *CustomerRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ConversationRepoMock) Save(ctx context.Context, conversation model.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

// Update mocks the Update method
func (m *ConversationRepoMock) Update(ctx context.Context, conversation model.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ConversationRepoMock) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// FindBreachCandidates mocks the FindBreachCandidates method
func (m *ConversationRepoMock) FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *ConversationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- InteractionRepo Mock ---

// InteractionRepoMock mocks the InteractionRepo interface
type InteractionRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *InteractionRepoMock) Save(ctx context.Context, interaction model.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

// FindByConversationID mocks the FindByConversationID method
func (m *InteractionRepoMock) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Interaction, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Interaction), args.Error(1)
}

func (m *InteractionRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- TaskRepo Mock ---

// TaskRepoMock mocks the TaskRepo interface
type TaskRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *TaskRepoMock) Save(ctx context.Context, task model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// Update mocks the Update method
func (m *TaskRepoMock) Update(ctx context.Context, task model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *TaskRepoMock) FindByID(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// FindOpenFollowUpByConversationID mocks the FindOpenFollowUpByConversationID method
func (m *TaskRepoMock) FindOpenFollowUpByConversationID(ctx context.Context, conversationID string) (*model.Task, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// FindOpenByConversationID mocks the FindOpenByConversationID method
func (m *TaskRepoMock) FindOpenByConversationID(ctx context.Context, conversationID string) ([]model.Task, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

// FindOpenDueBefore mocks the FindOpenDueBefore method
func (m *TaskRepoMock) FindOpenDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Task, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *TaskRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AgentRepo Mock ---

// AgentRepoMock mocks the AgentRepo interface
type AgentRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AgentRepoMock) Save(ctx context.Context, agent model.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

// Update mocks the Update method
func (m *AgentRepoMock) Update(ctx context.Context, agent model.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *AgentRepoMock) FindByID(ctx context.Context, id string) (*model.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

// FindByCouponCode mocks the FindByCouponCode method
func (m *AgentRepoMock) FindByCouponCode(ctx context.Context, couponCode string) (*model.Agent, error) {
	args := m.Called(ctx, couponCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

// FindByReferralToken mocks the FindByReferralToken method
func (m *AgentRepoMock) FindByReferralToken(ctx context.Context, token string) (*model.Agent, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

func (m *AgentRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AttributionRepo Mock ---

// AttributionRepoMock mocks the AttributionRepo interface
type AttributionRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AttributionRepoMock) Save(ctx context.Context, attribution model.Attribution) error {
	args := m.Called(ctx, attribution)
	return args.Error(0)
}

// FindByAgentAndLead mocks the FindByAgentAndLead method
func (m *AttributionRepoMock) FindByAgentAndLead(ctx context.Context, agentID, leadID string) (*model.Attribution, error) {
	args := m.Called(ctx, agentID, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attribution), args.Error(1)
}

// FindByAgentAndCustomer mocks the FindByAgentAndCustomer method
func (m *AttributionRepoMock) FindByAgentAndCustomer(ctx context.Context, agentID, customerID string) (*model.Attribution, error) {
	args := m.Called(ctx, agentID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attribution), args.Error(1)
}

// FindByLeadID mocks the FindByLeadID method
func (m *AttributionRepoMock) FindByLeadID(ctx context.Context, leadID string) ([]model.Attribution, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Attribution), args.Error(1)
}

func (m *AttributionRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AuditRepo Mock ---

// AuditRepoMock mocks the AuditRepo interface
type AuditRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AuditRepoMock) Save(ctx context.Context, event model.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// FindByEntity mocks the FindByEntity method
func (m *AuditRepoMock) FindByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]model.AuditEvent, error) {
	args := m.Called(ctx, entityType, entityID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEvent), args.Error(1)
}

func (m *AuditRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- BusinessRepo Mock ---

// BusinessRepoMock mocks the BusinessRepo interface
type BusinessRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *BusinessRepoMock) Save(ctx context.Context, business model.Business) error {
	args := m.Called(ctx, business)
	return args.Error(0)
}

// Update mocks the Update method
func (m *BusinessRepoMock) Update(ctx context.Context, business model.Business) error {
	args := m.Called(ctx, business)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *BusinessRepoMock) FindByID(ctx context.Context, id string) (*model.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Business), args.Error(1)
}

// FindBySlug mocks the FindBySlug method
func (m *BusinessRepoMock) FindBySlug(ctx context.Context, slug string) (*model.Business, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Business), args.Error(1)
}

// FindAllActive mocks the FindAllActive method
func (m *BusinessRepoMock) FindAllActive(ctx context.Context) ([]model.Business, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Business), args.Error(1)
}

func (m *BusinessRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- UserRepo Mock ---

// UserRepoMock mocks the UserRepo interface
type UserRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *UserRepoMock) Save(ctx context.Context, user model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// Update mocks the Update method
func (m *UserRepoMock) Update(ctx context.Context, user model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *UserRepoMock) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// FindByEmail mocks the FindByEmail method
func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *UserRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- DeadEventRepo Mock ---

// DeadEventRepoMock mocks the DeadEventRepo interface
type DeadEventRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *DeadEventRepoMock) Save(ctx context.Context, event model.DeadEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *DeadEventRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
