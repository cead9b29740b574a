package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// IntakeService defines the lifecycle operations the intake handler drives.
type IntakeService interface {
	Intake(ctx context.Context, payload model.LeadIntakePayload) (*usecase.IntakeResult, error)
	OpenConversation(ctx context.Context, channel model.ConversationChannel, refs usecase.ParticipantRefs) (*model.Conversation, error)
	AppendInteraction(ctx context.Context, conversationID string, interaction model.Interaction) (*model.Interaction, error)
}

// IntakeHandler processes inbound lead and conversation events
type IntakeHandler struct {
	service IntakeService
}

// NewIntakeHandler creates a new intake event handler
func NewIntakeHandler(service IntakeService) *IntakeHandler {
	return &IntakeHandler{
		service: service,
	}
}

// HandleEvent processes intake events
func (h *IntakeHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	requestID := uuid.NewString()
	ctx = tenant.WithRequestID(ctx, requestID)

	log := logger.FromContext(ctx)
	log.Info("Processing intake event", zap.String("type", string(eventType)))

	var err error
	switch eventType {
	case model.V1LeadsIntake:
		err = h.handleLeadIntake(ctx, metadata, rawEvent)
	case model.V1ConversationsMessage:
		err = h.handleConversationMessage(ctx, metadata, rawEvent)
	default:
		unsupportedErr := fmt.Errorf("unsupported intake event type: %s", eventType)
		log.Error("Unsupported intake event type", zap.String("eventType", string(eventType)))
		err = apperrors.NewFatal(unsupportedErr, "unsupported intake event type")
	}
	return err
}

// handleLeadIntake processes lead intake events
func (h *IntakeHandler) handleLeadIntake(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.LeadIntakePayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal lead intake payload", zap.Error(err))
		observer.IncIntakeEvent(string(model.V1LeadsIntake), metadata.BusinessID, "unmarshal_error")
		return apperrors.NewFatal(err, "failed to unmarshal lead intake payload")
	}

	// Enrich payload with BusinessID from metadata
	if payload.BusinessID == "" {
		payload.BusinessID = metadata.BusinessID
	}

	result, err := h.service.Intake(ctx, payload)
	if err != nil {
		observer.IncIntakeEvent(string(model.V1LeadsIntake), metadata.BusinessID, "error")
		return classifyServiceError(err, "lead intake failed")
	}

	outcome := "created"
	if result.Merged {
		outcome = "merged"
	} else if result.Customer != nil {
		outcome = "attached"
	}
	observer.IncIntakeEvent(string(model.V1LeadsIntake), metadata.BusinessID, outcome)
	return nil
}

// handleConversationMessage processes conversation message events. A payload
// without a conversation ID opens a new conversation on the given channel
// before the interaction is appended.
func (h *IntakeHandler) handleConversationMessage(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.ConversationMessagePayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal conversation message payload", zap.Error(err))
		observer.IncIntakeEvent(string(model.V1ConversationsMessage), metadata.BusinessID, "unmarshal_error")
		return apperrors.NewFatal(err, "failed to unmarshal conversation message payload")
	}

	if payload.BusinessID == "" {
		payload.BusinessID = metadata.BusinessID
	}

	conversationID := payload.ConversationID
	if conversationID == "" {
		refs := usecase.ParticipantRefs{}
		if payload.LeadID != "" {
			leadID := payload.LeadID
			refs.LeadID = &leadID
		}
		if payload.CustomerID != "" {
			customerID := payload.CustomerID
			refs.CustomerID = &customerID
		}
		conversation, err := h.service.OpenConversation(ctx, payload.Channel, refs)
		if err != nil {
			observer.IncIntakeEvent(string(model.V1ConversationsMessage), metadata.BusinessID, "error")
			return classifyServiceError(err, "failed to open conversation")
		}
		conversationID = conversation.ID
	}

	interaction := model.Interaction{
		Type:      payload.Type,
		Direction: payload.Direction,
		Body:      payload.Body,
	}
	if payload.Metadata != nil {
		interaction.Metadata = datatypes.JSON(utils.MustMarshalJSON(payload.Metadata))
	}
	if payload.AuthorID != "" {
		authorID := payload.AuthorID
		interaction.AuthorID = &authorID
	}

	if _, err := h.service.AppendInteraction(ctx, conversationID, interaction); err != nil {
		observer.IncIntakeEvent(string(model.V1ConversationsMessage), metadata.BusinessID, "error")
		return classifyServiceError(err, "failed to append interaction")
	}

	observer.IncIntakeEvent(string(model.V1ConversationsMessage), metadata.BusinessID, "appended")
	return nil
}

// classifyServiceError wraps a lifecycle engine error for the consumer's
// retry decision. Infrastructure failures are retryable; domain-rule
// violations never heal on redelivery and are fatal.
func classifyServiceError(err error, message string) error {
	if errors.Is(err, apperrors.ErrDatabase) || errors.Is(err, apperrors.ErrTimeout) || errors.Is(err, apperrors.ErrNATS) || errors.Is(err, apperrors.ErrConflict) {
		return apperrors.NewRetryable(err, message)
	}
	return apperrors.NewFatal(err, message)
}
