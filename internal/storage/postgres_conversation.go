package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// --- Conversation Repository Methods ---

// SaveConversation creates a conversation record.
func (r *PostgresRepo) SaveConversation(ctx context.Context, conversation model.Conversation) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != conversation.BusinessID {
		return fmt.Errorf("%w: conversation BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, conversation.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&conversation).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveConversation", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "conversation", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save conversation", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateConversation writes the full conversation row back.
func (r *PostgresRepo) UpdateConversation(ctx context.Context, conversation model.Conversation) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != conversation.BusinessID {
		return fmt.Errorf("%w: conversation BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, conversation.BusinessID, businessID)
	}
	conversation.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&conversation).
			Select("*").Omit("id", "created_at").
			Where("business_id = ?", businessID).
			Updates(&conversation)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: conversation %s", apperrors.ErrNotFound, conversation.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateConversation", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "conversation", businessID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update conversation", zap.String("conversation_id", conversation.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindConversationByID finds a conversation by its ID within the tenant scope.
func (r *PostgresRepo) FindConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var conversation model.Conversation
	operation := func() error {
		result := r.conn(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&conversation)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindConversationByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "conversation", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find conversation by ID",
			zap.String("conversation_id", id),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &conversation, nil
}

// FindBreachCandidates returns non-terminal conversations whose last activity
// is older than cutoff and that carry no breach stamp yet. Oldest first so a
// bounded sweep drains the backlog deterministically.
func (r *PostgresRepo) FindBreachCandidates(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var conversations []model.Conversation
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND status NOT IN ? AND sla_breached_at IS NULL AND last_activity_at < ?",
				businessID,
				[]model.ConversationStatus{model.ConversationStatusClosedWon, model.ConversationStatusClosedLost},
				cutoff).
			Order("last_activity_at ASC").
			Limit(limit).
			Find(&conversations)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindBreachCandidates", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_breach_candidates", "conversation", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find breach candidates",
			zap.String("business_id", businessID),
			zap.Time("cutoff", cutoff),
			zap.Error(findErr))
		return nil, findErr
	}
	if conversations == nil { // Ensure empty slice is returned, not nil
		return []model.Conversation{}, nil
	}
	return conversations, nil
}
