package usecase

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
)

func openConversationFixture(status model.ConversationStatus) model.Conversation {
	return model.Conversation{
		ID:             "conv-1",
		BusinessID:     testBusinessID,
		Channel:        model.ChannelSite,
		Status:         status,
		LastActivityAt: time.Now().Add(-time.Hour),
	}
}

// --- OpenConversation Tests --- //

func TestOpenConversation_Success(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	leadID := "lead-1"
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	conversation, err := service.OpenConversation(ctx, model.ChannelWhatsApp, ParticipantRefs{LeadID: &leadID})
	require.NoError(t, err)
	assert.Equal(t, model.ConversationStatusNew, conversation.Status)
	assert.Equal(t, model.ChannelWhatsApp, conversation.Channel)
	require.NotNil(t, conversation.LeadID)
	assert.Equal(t, "lead-1", *conversation.LeadID)
	assert.False(t, conversation.LastActivityAt.IsZero())
}

func TestOpenConversation_UnknownChannelRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation, err := service.OpenConversation(ctx, "CARRIER_PIGEON", ParticipantRefs{})
	assert.Nil(t, conversation)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	m.conversation.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- AppendInteraction Tests --- //

func TestAppendInteraction_BumpsActivityClock(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusInProgress)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.interaction.On("Save", mock.Anything, mock.AnythingOfType("model.Interaction")).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	appended, err := service.AppendInteraction(ctx, "conv-1", model.Interaction{
		Type:      model.InteractionSiteMessage,
		Direction: model.DirectionInbound,
		Body:      "hello",
		Metadata:  model.JSONBMap(map[string]interface{}{"page": "/pricing"}),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, appended.ID)
	assert.Equal(t, testBusinessID, appended.BusinessID)
	assert.Equal(t, "conv-1", appended.ConversationID)

	var bumped model.Conversation
	for _, call := range m.conversation.Calls {
		if call.Method == "Update" {
			bumped = call.Arguments.Get(1).(model.Conversation)
		}
	}
	assert.Equal(t, appended.CreatedAt, bumped.LastActivityAt)
}

func TestAppendInteraction_ClosedConversationRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusClosedWon)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	appended, err := service.AppendInteraction(ctx, "conv-1", model.Interaction{Type: model.InteractionCallNote})
	assert.Nil(t, appended)
	assert.ErrorIs(t, err, apperrors.ErrConversationClosed)
	m.interaction.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- TransitionConversationStatus Tests --- //

func TestTransitionConversationStatus_Success(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusNew)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	updated, err := service.TransitionConversationStatus(ctx, "conv-1", model.ConversationStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationStatusInProgress, updated.Status)
}

func TestTransitionConversationStatus_IllegalJumpRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusNew)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	updated, err := service.TransitionConversationStatus(ctx, "conv-1", model.ConversationStatusFollowUp)
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, apperrors.ErrIllegalTransition)
	m.conversation.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// --- SetFollowUp Tests --- //

func TestSetFollowUp_SpawnsTask(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	when := time.Now().Add(24 * time.Hour)

	conversation := openConversationFixture(model.ConversationStatusInProgress)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.task.On("FindOpenFollowUpByConversationID", mock.Anything, "conv-1").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.task.On("Save", mock.Anything, mock.AnythingOfType("model.Task")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	task, err := service.SetFollowUp(ctx, "conv-1", when)
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeFollowUp, task.Type)
	assert.Equal(t, model.TaskStatusOpen, task.Status)
	assert.Equal(t, when, task.DueAt)
	require.NotNil(t, task.ConversationID)
	assert.Equal(t, "conv-1", *task.ConversationID)

	var updatedConversation model.Conversation
	for _, call := range m.conversation.Calls {
		if call.Method == "Update" {
			updatedConversation = call.Arguments.Get(1).(model.Conversation)
		}
	}
	require.NotNil(t, updatedConversation.NextFollowUpAt)
	assert.Equal(t, when, *updatedConversation.NextFollowUpAt)
}

func TestSetFollowUp_ReschedulesExistingTask(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	when := time.Now().Add(48 * time.Hour)

	conversationID := "conv-1"
	conversation := openConversationFixture(model.ConversationStatusInProgress)
	existingTask := model.Task{
		ID:             "task-fu",
		BusinessID:     testBusinessID,
		Type:           model.TaskTypeFollowUp,
		Status:         model.TaskStatusOpen,
		DueAt:          time.Now().Add(2 * time.Hour),
		ConversationID: &conversationID,
	}
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.task.On("FindOpenFollowUpByConversationID", mock.Anything, "conv-1").Return(&existingTask, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.task.On("Update", mock.Anything, mock.AnythingOfType("model.Task")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	task, err := service.SetFollowUp(ctx, "conv-1", when)
	require.NoError(t, err)
	assert.Equal(t, "task-fu", task.ID)
	assert.Equal(t, when, task.DueAt)
	m.task.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSetFollowUp_ClosedConversationRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusClosedLost)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	task, err := service.SetFollowUp(ctx, "conv-1", time.Now().Add(time.Hour))
	assert.Nil(t, task)
	assert.ErrorIs(t, err, apperrors.ErrConversationClosed)
	m.task.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- CheckSlaBreach Tests --- //

func TestCheckSlaBreach_StampsStaleConversation(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	now := time.Now()

	conversation := openConversationFixture(model.ConversationStatusInProgress)
	conversation.LastActivityAt = now.Add(-6 * time.Hour)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	breached, err := service.CheckSlaBreach(ctx, "conv-1", 4*time.Hour, now)
	require.NoError(t, err)
	assert.True(t, breached)

	var stamped model.Conversation
	for _, call := range m.conversation.Calls {
		if call.Method == "Update" {
			stamped = call.Arguments.Get(1).(model.Conversation)
		}
	}
	require.NotNil(t, stamped.SlaBreachedAt)
	assert.Equal(t, now, *stamped.SlaBreachedAt)

	savedAudit := m.audit.Calls[len(m.audit.Calls)-1].Arguments.Get(1).(model.AuditEvent)
	assert.Equal(t, model.AuditActionSlaBreach, savedAudit.Action)
}

func TestCheckSlaBreach_SetAtMostOnce(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	now := time.Now()

	alreadyBreached := now.Add(-time.Hour)
	conversation := openConversationFixture(model.ConversationStatusInProgress)
	conversation.LastActivityAt = now.Add(-10 * time.Hour)
	conversation.SlaBreachedAt = &alreadyBreached
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	breached, err := service.CheckSlaBreach(ctx, "conv-1", 4*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, breached)
	m.conversation.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCheckSlaBreach_SkipsTerminalConversation(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	now := time.Now()

	conversation := openConversationFixture(model.ConversationStatusClosedWon)
	conversation.LastActivityAt = now.Add(-10 * time.Hour)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	breached, err := service.CheckSlaBreach(ctx, "conv-1", 4*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, breached)
	m.conversation.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCheckSlaBreach_FreshConversationUntouched(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	now := time.Now()

	conversation := openConversationFixture(model.ConversationStatusInProgress)
	conversation.LastActivityAt = now.Add(-time.Hour)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	breached, err := service.CheckSlaBreach(ctx, "conv-1", 4*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, breached)
	m.conversation.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCheckSlaBreach_CountsOperation(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()
	now := time.Now()

	conversation := openConversationFixture(model.ConversationStatusInProgress)
	conversation.LastActivityAt = now.Add(-time.Hour)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	counter := observer.EngineOperationsTotal.WithLabelValues("sla_check", testBusinessID, "success")
	before := testutil.ToFloat64(counter)

	breached, err := service.CheckSlaBreach(ctx, "conv-1", 4*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, breached)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

// --- CloseConversation Tests --- //

func TestCloseConversation_CancelsOpenFollowUps(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversationID := "conv-1"
	conversation := openConversationFixture(model.ConversationStatusInProgress)
	followUp := model.Task{
		ID:             "task-fu",
		BusinessID:     testBusinessID,
		Type:           model.TaskTypeFollowUp,
		Status:         model.TaskStatusOpen,
		ConversationID: &conversationID,
	}
	callTask := model.Task{
		ID:             "task-call",
		BusinessID:     testBusinessID,
		Type:           model.TaskTypeCall,
		Status:         model.TaskStatusOpen,
		ConversationID: &conversationID,
	}
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.task.On("FindOpenByConversationID", mock.Anything, "conv-1").Return([]model.Task{followUp, callTask}, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.task.On("Update", mock.Anything, mock.AnythingOfType("model.Task")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	closed, err := service.CloseConversation(ctx, "conv-1", model.ConversationStatusClosedWon)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationStatusClosedWon, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// Only the FOLLOW_UP task is canceled; the CALL task stays open.
	canceledIDs := []string{}
	for _, call := range m.task.Calls {
		if call.Method == "Update" {
			updated := call.Arguments.Get(1).(model.Task)
			assert.Equal(t, model.TaskStatusCanceled, updated.Status)
			canceledIDs = append(canceledIDs, updated.ID)
		}
	}
	assert.Equal(t, []string{"task-fu"}, canceledIDs)
}

func TestCloseConversation_SecondCloseRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	conversation := openConversationFixture(model.ConversationStatusClosedWon)
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)

	closed, err := service.CloseConversation(ctx, "conv-1", model.ConversationStatusClosedLost)
	assert.Nil(t, closed)
	assert.ErrorIs(t, err, apperrors.ErrConversationClosed)
	m.conversation.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCloseConversation_NonTerminalOutcomeRejected(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	closed, err := service.CloseConversation(ctx, "conv-1", model.ConversationStatusInProgress)
	assert.Nil(t, closed)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	m.conversation.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCloseConversation_KeepsSlaBreachStamp(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	ctx := testContext()

	breachedAt := time.Now().Add(-time.Hour)
	conversation := openConversationFixture(model.ConversationStatusInProgress)
	conversation.SlaBreachedAt = &breachedAt
	m.conversation.On("FindByID", mock.Anything, "conv-1").Return(&conversation, nil)
	m.task.On("FindOpenByConversationID", mock.Anything, "conv-1").Return([]model.Task{}, nil)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.conversation.On("Update", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	closed, err := service.CloseConversation(ctx, "conv-1", model.ConversationStatusClosedLost)
	require.NoError(t, err)
	require.NotNil(t, closed.SlaBreachedAt)
	assert.Equal(t, breachedAt, *closed.SlaBreachedAt)
}
