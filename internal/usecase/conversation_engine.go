package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// ParticipantRefs optionally attaches the parties of a new conversation.
type ParticipantRefs struct {
	LeadID     *string
	CustomerID *string
	AgentID    *string
	OwnerID    *string
}

// OpenConversation creates a conversation in NEW on the given channel.
func (s *CrmService) OpenConversation(ctx context.Context, channel model.ConversationChannel, refs ParticipantRefs) (conversation *model.Conversation, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("conversation_open", businessID, err) }()

	if !channel.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation channel %q", apperrors.ErrBadRequest, channel)
	}

	created := model.Conversation{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		Channel:        channel,
		Status:         model.ConversationStatusNew,
		LeadID:         refs.LeadID,
		CustomerID:     refs.CustomerID,
		AgentID:        refs.AgentID,
		OwnerID:        refs.OwnerID,
		LastActivityAt: utils.Now(),
		CreatedAt:      utils.Now(),
		UpdatedAt:      utils.Now(),
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.conversationRepo.Save(txCtx, created); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, created.TableName(), created.ID, model.AuditActionCreate, nil, created)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Conversation opened",
		zap.String("conversation_id", created.ID),
		zap.String("channel", string(channel)),
	)
	return &created, nil
}

// AppendInteraction appends an immutable interaction to a conversation and
// bumps its activity clock. Terminal conversations reject the append.
func (s *CrmService) AppendInteraction(ctx context.Context, conversationID string, interaction model.Interaction) (appended *model.Interaction, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("interaction_append", businessID, err) }()

	if !interaction.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown interaction type %q", apperrors.ErrBadRequest, interaction.Type)
	}

	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.Status.Terminal() {
		return nil, fmt.Errorf("%w: conversation %s is %s", apperrors.ErrConversationClosed, conversationID, conversation.Status)
	}

	interaction.ID = uuid.NewString()
	interaction.BusinessID = businessID
	interaction.ConversationID = conversationID
	interaction.CreatedAt = utils.Now()

	bumped := *conversation
	bumped.LastActivityAt = interaction.CreatedAt
	bumped.UpdatedAt = utils.Now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.interactionRepo.Save(txCtx, interaction); err != nil {
			return err
		}
		if err := s.conversationRepo.Update(txCtx, bumped); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, interaction.TableName(), interaction.ID, model.AuditActionCreate, nil, interaction)
	})
	if err != nil {
		return nil, err
	}

	log.Debug("Interaction appended",
		zap.String("conversation_id", conversationID),
		zap.String("interaction_id", interaction.ID),
		zap.String("type", string(interaction.Type)),
	)
	return &interaction, nil
}

// TransitionConversationStatus moves a conversation between non-terminal
// states. Terminal targets must go through CloseConversation so closing side
// effects are never skipped.
func (s *CrmService) TransitionConversationStatus(ctx context.Context, conversationID string, next model.ConversationStatus) (conversation *model.Conversation, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("conversation_transition", businessID, err) }()

	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation status %q", apperrors.ErrBadRequest, next)
	}
	if next.Terminal() {
		return s.CloseConversation(ctx, conversationID, next)
	}

	current, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: conversation %s is %s", apperrors.ErrConversationClosed, conversationID, current.Status)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: conversation %s → %s", apperrors.ErrIllegalTransition, current.Status, next)
	}

	before := *current
	updated := *current
	updated.Status = next
	updated.UpdatedAt = utils.Now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.conversationRepo.Update(txCtx, updated); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, updated.TableName(), updated.ID, model.AuditActionTransition, before, updated)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Conversation status transitioned",
		zap.String("conversation_id", conversationID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(next)),
	)
	return &updated, nil
}

// SetFollowUp stamps the next follow-up time on a non-terminal conversation
// and spawns or reschedules the linked open FOLLOW_UP task.
func (s *CrmService) SetFollowUp(ctx context.Context, conversationID string, when time.Time) (task *model.Task, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("follow_up_set", businessID, err) }()

	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.Status.Terminal() {
		return nil, fmt.Errorf("%w: conversation %s is %s", apperrors.ErrConversationClosed, conversationID, conversation.Status)
	}

	beforeConversation := *conversation
	updatedConversation := *conversation
	updatedConversation.NextFollowUpAt = &when
	updatedConversation.UpdatedAt = utils.Now()

	existingTask, err := s.taskRepo.FindOpenFollowUpByConversationID(ctx, conversationID)
	if err != nil && !apperrors.IsNotFoundError(err) {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.conversationRepo.Update(txCtx, updatedConversation); err != nil {
			return err
		}
		if err := s.RecordAudit(txCtx, updatedConversation.TableName(), updatedConversation.ID, model.AuditActionUpdate, beforeConversation, updatedConversation); err != nil {
			return err
		}

		if existingTask != nil {
			beforeTask := *existingTask
			rescheduled := *existingTask
			rescheduled.DueAt = when
			rescheduled.UpdatedAt = utils.Now()
			if err := s.taskRepo.Update(txCtx, rescheduled); err != nil {
				return err
			}
			task = &rescheduled
			return s.RecordAudit(txCtx, rescheduled.TableName(), rescheduled.ID, model.AuditActionUpdate, beforeTask, rescheduled)
		}

		created := model.Task{
			ID:             uuid.NewString(),
			BusinessID:     businessID,
			Type:           model.TaskTypeFollowUp,
			Status:         model.TaskStatusOpen,
			DueAt:          when,
			Title:          "Follow up conversation",
			LeadID:         conversation.LeadID,
			CustomerID:     conversation.CustomerID,
			ConversationID: &conversation.ID,
			OwnerID:        conversation.OwnerID,
			CreatedAt:      utils.Now(),
			UpdatedAt:      utils.Now(),
		}
		if err := s.taskRepo.Save(txCtx, created); err != nil {
			return err
		}
		task = &created
		return s.RecordAudit(txCtx, created.TableName(), created.ID, model.AuditActionCreate, nil, created)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Follow-up scheduled",
		zap.String("conversation_id", conversationID),
		zap.String("task_id", task.ID),
		zap.Time("due_at", when),
	)
	return task, nil
}

// CheckSlaBreach stamps slaBreachedAt when a non-terminal conversation has
// been inactive longer than slaWindow. The stamp is set at most once; the
// periodic sweep may safely re-invoke this for the same conversation.
func (s *CrmService) CheckSlaBreach(ctx context.Context, conversationID string, slaWindow time.Duration, now time.Time) (breached bool, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("sla_check", businessID, err) }()

	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if conversation.Status.Terminal() || conversation.SlaBreachedAt != nil {
		return false, nil
	}
	if now.Sub(conversation.LastActivityAt) <= slaWindow {
		return false, nil
	}

	before := *conversation
	stamped := *conversation
	stamped.SlaBreachedAt = &now
	stamped.UpdatedAt = utils.Now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.conversationRepo.Update(txCtx, stamped); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, stamped.TableName(), stamped.ID, model.AuditActionSlaBreach, before, stamped)
	})
	if err != nil {
		return false, err
	}

	observer.IncSlaBreach(businessID)
	log.Warn("Conversation breached SLA",
		zap.String("conversation_id", conversationID),
		zap.Time("last_activity_at", conversation.LastActivityAt),
		zap.Duration("sla_window", slaWindow),
	)
	return true, nil
}

// CloseConversation transitions to CLOSED_WON or CLOSED_LOST, stamps closedAt
// exactly once, and cancels any open FOLLOW_UP tasks tied to the conversation.
// A second close on an already terminal conversation fails with
// ErrConversationClosed.
func (s *CrmService) CloseConversation(ctx context.Context, conversationID string, outcome model.ConversationStatus) (conversation *model.Conversation, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("conversation_close", businessID, err) }()

	if !outcome.Terminal() {
		return nil, fmt.Errorf("%w: close outcome must be CLOSED_WON or CLOSED_LOST, got %q", apperrors.ErrBadRequest, outcome)
	}

	current, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: conversation %s is already %s", apperrors.ErrConversationClosed, conversationID, current.Status)
	}

	now := utils.Now()
	before := *current
	closed := *current
	closed.Status = outcome
	closed.ClosedAt = &now
	closed.UpdatedAt = now

	openTasks, err := s.taskRepo.FindOpenByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.conversationRepo.Update(txCtx, closed); err != nil {
			return err
		}
		if err := s.RecordAudit(txCtx, closed.TableName(), closed.ID, model.AuditActionClose, before, closed); err != nil {
			return err
		}

		for _, openTask := range openTasks {
			if openTask.Type != model.TaskTypeFollowUp {
				continue
			}
			beforeTask := openTask
			canceled := openTask
			canceled.Status = model.TaskStatusCanceled
			canceled.UpdatedAt = now
			if err := s.taskRepo.Update(txCtx, canceled); err != nil {
				return err
			}
			if err := s.RecordAudit(txCtx, canceled.TableName(), canceled.ID, model.AuditActionCancel, beforeTask, canceled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Conversation closed",
		zap.String("conversation_id", conversationID),
		zap.String("outcome", string(outcome)),
	)
	return &closed, nil
}
