package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// --- Interaction Repository Methods ---
// Interactions are append-only; there is no update or delete path.

// SaveInteraction appends an interaction to its conversation.
func (r *PostgresRepo) SaveInteraction(ctx context.Context, interaction model.Interaction) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != interaction.BusinessID {
		return fmt.Errorf("%w: interaction BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, interaction.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&interaction).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveInteraction", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "interaction", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save interaction",
			zap.String("conversation_id", interaction.ConversationID),
			zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// FindInteractionsByConversationID lists interactions of a conversation in
// insertion order.
func (r *PostgresRepo) FindInteractionsByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Interaction, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var interactions []model.Interaction
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND conversation_id = ?", businessID, conversationID).
			Order("created_at ASC").
			Limit(limit).
			Offset(offset).
			Find(&interactions)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindInteractionsByConversationID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_conversation", "interaction", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find interactions by conversation",
			zap.String("conversation_id", conversationID),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	if interactions == nil { // Ensure empty slice is returned, not nil
		return []model.Interaction{}, nil
	}
	return interactions, nil
}
