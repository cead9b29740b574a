package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
)

// --- Intake Tests --- //

func TestIntake_CreatesNewLead(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Save", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	result, err := service.Intake(ctx, model.LeadIntakePayload{
		PhoneNumber: "+1-202-555-0172",
		Name:        "Ada",
		Notes:       "first contact",
		Source:      "site_form",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Lead)
	assert.False(t, result.Merged)
	assert.Equal(t, "+12025550172", result.Lead.PhoneNumber)
	assert.Equal(t, model.LeadStatusNew, result.Lead.Status)
	assert.Equal(t, testBusinessID, result.Lead.BusinessID)

	savedAudit := m.audit.Calls[len(m.audit.Calls)-1].Arguments.Get(1).(model.AuditEvent)
	assert.Equal(t, model.AuditActionCreate, savedAudit.Action)
	assert.Equal(t, "leads", savedAudit.EntityType)
	assert.Nil(t, savedAudit.Before)
	assert.NotNil(t, savedAudit.After)
}

func TestIntake_MergesIntoExistingLead(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	existing := model.Lead{
		ID:          "lead-existing",
		BusinessID:  testBusinessID,
		PhoneNumber: "+12025550172",
		Status:      model.LeadStatusNew,
		Notes:       "first call's notes",
	}
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(&existing, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Update", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	result, err := service.Intake(ctx, model.LeadIntakePayload{
		PhoneNumber: "+1 (202) 555-0172",
		Notes:       "second call's notes",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Lead)
	assert.True(t, result.Merged)
	assert.Equal(t, "lead-existing", result.Lead.ID)
	// Last write wins on free-form fields.
	assert.Equal(t, "second call's notes", result.Lead.Notes)

	savedAudit := m.audit.Calls[len(m.audit.Calls)-1].Arguments.Get(1).(model.AuditEvent)
	assert.Equal(t, model.AuditActionMerge, savedAudit.Action)
	assert.NotNil(t, savedAudit.Before)
	assert.NotNil(t, savedAudit.After)
	m.lead.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIntake_RejectsExistingCustomer(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	customer := model.NewCustomer(&model.Customer{ID: "cust-1", BusinessID: testBusinessID, PhoneNumber: "+12025550172"})
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(customer, nil)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCustomer)
	m.lead.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIntake_AttachesConversationToExistingCustomer(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.AttachConversationOnExistingCustomer = true
	service, m := newTestService(cfg)
	ctx := testContext()

	customer := model.Customer{ID: "cust-1", BusinessID: testBusinessID, PhoneNumber: "+12025550172"}
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(&customer, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172"})
	require.NoError(t, err)
	assert.Nil(t, result.Lead)
	require.NotNil(t, result.Customer)
	require.NotNil(t, result.Conversation)
	assert.Equal(t, model.ConversationStatusNew, result.Conversation.Status)
	require.NotNil(t, result.Conversation.CustomerID)
	assert.Equal(t, "cust-1", *result.Conversation.CustomerID)
}

func TestIntake_RetriesInsertRaceAsMerge(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	winner := model.Lead{
		ID:          "lead-winner",
		BusinessID:  testBusinessID,
		PhoneNumber: "+12025550172",
		Status:      model.LeadStatusNew,
	}
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	// Fast-path lookup misses, the insert hits the unique constraint, and the
	// re-lookup finds the row the concurrent writer committed.
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound).Once()
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(&winner, nil).Once()
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Save", mock.Anything, mock.AnythingOfType("model.Lead")).Return(apperrors.ErrDuplicate)
	m.lead.On("Update", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172", Notes: "raced"})
	require.NoError(t, err)
	assert.True(t, result.Merged)
	assert.Equal(t, "lead-winner", result.Lead.ID)
	assert.Equal(t, "raced", result.Lead.Notes)
}

func TestIntake_RejectsUnparseablePhone(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "not-a-phone"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidIdentifier)
	m.customer.AssertNotCalled(t, "FindByPhone", mock.Anything, mock.Anything)
}

func TestIntake_SkipsUnknownAgentWhenNotRejecting(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Save", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)
	m.agent.On("FindByCouponCode", mock.Anything, "GHOST").Return(nil, apperrors.ErrNotFound)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172", CouponCode: "GHOST"})
	require.NoError(t, err)
	require.NotNil(t, result.Lead)
	m.attribution.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestIntake_RejectsUnknownAgentWhenConfigured(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.RejectUnknownAgent = true
	service, m := newTestService(cfg)
	ctx := testContext()

	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Save", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)
	m.agent.On("FindByCouponCode", mock.Anything, "GHOST").Return(nil, apperrors.ErrNotFound)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172", CouponCode: "GHOST"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnknownAgent)
}

// txRecorder runs transaction bodies inline and records the error each one
// returned, innermost first. A non-nil result means that transaction rolled
// back.
type txRecorder struct {
	results []error
}

func (r *txRecorder) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	r.results = append(r.results, err)
	return err
}

func TestIntake_UnknownAgentRollsBackLeadWrite(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.RejectUnknownAgent = true
	service, m := newTestService(cfg)
	tx := &txRecorder{}
	service.tx = tx
	ctx := testContext()

	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.lead.On("Save", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)
	m.agent.On("FindByCouponCode", mock.Anything, "GHOST").Return(nil, apperrors.ErrNotFound)

	result, err := service.Intake(ctx, model.LeadIntakePayload{PhoneNumber: "+12025550172", CouponCode: "GHOST"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnknownAgent)

	// The lead insert ran, but only inside the enclosing transaction that the
	// rejected attribution failed, so no lead row survives the intake.
	m.lead.AssertCalled(t, "Save", mock.Anything, mock.Anything)
	require.NotEmpty(t, tx.results)
	assert.ErrorIs(t, tx.results[len(tx.results)-1], apperrors.ErrUnknownAgent)
}

// --- TransitionLeadStatus Tests --- //

func TestTransitionLeadStatus_Success(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	lead := model.NewLead(&model.Lead{ID: "lead-1", BusinessID: testBusinessID, Status: model.LeadStatusNew})
	m.lead.On("FindByID", mock.Anything, "lead-1").Return(lead, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.lead.On("Update", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	updated, err := service.TransitionLeadStatus(ctx, "lead-1", model.LeadStatusContacted)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, updated.Status)

	savedAudit := m.audit.Calls[len(m.audit.Calls)-1].Arguments.Get(1).(model.AuditEvent)
	assert.Equal(t, model.AuditActionTransition, savedAudit.Action)
}

func TestTransitionLeadStatus_DirectConvertedRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	updated, err := service.TransitionLeadStatus(ctx, "lead-1", model.LeadStatusConverted)
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	m.lead.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestTransitionLeadStatus_IllegalJumpRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	lead := model.Lead{ID: "lead-1", BusinessID: testBusinessID, Status: model.LeadStatusNew}
	m.lead.On("FindByID", mock.Anything, "lead-1").Return(&lead, nil)

	updated, err := service.TransitionLeadStatus(ctx, "lead-1", model.LeadStatusQualified)
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	m.lead.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- ConvertLead Tests --- //

func TestConvertLead_FromQualified(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	lead := model.Lead{
		ID:          "lead-q",
		BusinessID:  testBusinessID,
		PhoneNumber: "+12025550172",
		Name:        "Ada",
		Email:       "ada@example.com",
		Status:      model.LeadStatusQualified,
	}
	leadID := "lead-q"
	attribution := model.Attribution{
		ID:         "attr-1",
		BusinessID: testBusinessID,
		AgentID:    "agent-1",
		Method:     model.AttributionCoupon,
		LeadID:     &leadID,
	}

	m.lead.On("FindByID", mock.Anything, "lead-q").Return(&lead, nil)
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.attribution.On("FindByLeadID", mock.Anything, "lead-q").Return([]model.Attribution{attribution}, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.customer.On("Save", mock.Anything, mock.AnythingOfType("model.Customer")).Return(nil)
	m.lead.On("Update", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.attribution.On("FindByAgentAndCustomer", mock.Anything, "agent-1", mock.Anything).Return(nil, apperrors.ErrNotFound)
	m.attribution.On("Save", mock.Anything, mock.AnythingOfType("model.Attribution")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	customer, err := service.ConvertLead(ctx, "lead-q", nil)
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "+12025550172", customer.PhoneNumber)
	assert.Equal(t, "Ada", customer.Name)
	require.NotNil(t, customer.LeadID)
	assert.Equal(t, "lead-q", *customer.LeadID)

	// The lead update stamps CONVERTED with the customer back-link.
	var updatedLead model.Lead
	for _, call := range m.lead.Calls {
		if call.Method == "Update" {
			updatedLead = call.Arguments.Get(1).(model.Lead)
		}
	}
	assert.Equal(t, model.LeadStatusConverted, updatedLead.Status)
	require.NotNil(t, updatedLead.CustomerID)
	assert.Equal(t, customer.ID, *updatedLead.CustomerID)

	// The lead's attribution was mirrored onto the customer.
	var copiedAttribution model.Attribution
	for _, call := range m.attribution.Calls {
		if call.Method == "Save" {
			copiedAttribution = call.Arguments.Get(1).(model.Attribution)
		}
	}
	assert.Equal(t, "agent-1", copiedAttribution.AgentID)
	require.NotNil(t, copiedAttribution.CustomerID)
	assert.Equal(t, customer.ID, *copiedAttribution.CustomerID)
}

func TestConvertLead_IdempotentOnConvertedLead(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	customerID := "cust-existing"
	lead := model.Lead{
		ID:          "lead-done",
		BusinessID:  testBusinessID,
		PhoneNumber: "+12025550172",
		Status:      model.LeadStatusConverted,
		CustomerID:  &customerID,
	}
	existing := model.Customer{ID: customerID, BusinessID: testBusinessID, PhoneNumber: "+12025550172"}

	m.lead.On("FindByID", mock.Anything, "lead-done").Return(&lead, nil)
	m.customer.On("FindByID", mock.Anything, customerID).Return(&existing, nil)

	first, err := service.ConvertLead(ctx, "lead-done", nil)
	require.NoError(t, err)
	second, err := service.ConvertLead(ctx, "lead-done", nil)
	require.NoError(t, err)

	assert.Equal(t, customerID, first.ID)
	assert.Equal(t, customerID, second.ID)
	m.tx.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
	m.customer.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestConvertLead_FromNewRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	lead := model.Lead{ID: "lead-new", BusinessID: testBusinessID, PhoneNumber: "+12025550172", Status: model.LeadStatusNew}
	m.lead.On("FindByID", mock.Anything, "lead-new").Return(&lead, nil)

	customer, err := service.ConvertLead(ctx, "lead-new", nil)
	assert.Nil(t, customer)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	m.tx.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestConvertLead_OverridesApplied(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	lead := model.Lead{
		ID:          "lead-q",
		BusinessID:  testBusinessID,
		PhoneNumber: "+12025550172",
		Name:        "Ada",
		Status:      model.LeadStatusQualified,
	}
	m.lead.On("FindByID", mock.Anything, "lead-q").Return(&lead, nil)
	m.customer.On("FindByPhone", mock.Anything, "+12025550172").Return(nil, apperrors.ErrNotFound)
	m.attribution.On("FindByLeadID", mock.Anything, "lead-q").Return([]model.Attribution{}, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.customer.On("Save", mock.Anything, mock.AnythingOfType("model.Customer")).Return(nil)
	m.lead.On("Update", mock.Anything, mock.AnythingOfType("model.Lead")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	customer, err := service.ConvertLead(ctx, "lead-q", &ConvertOverrides{Name: "Ada Lovelace", Email: "ada@corp.example"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", customer.Name)
	assert.Equal(t, "ada@corp.example", customer.Email)
	assert.Equal(t, "+12025550172", customer.PhoneNumber)
}
