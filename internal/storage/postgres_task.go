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

// --- Task Repository Methods ---

// SaveTask creates a task record.
func (r *PostgresRepo) SaveTask(ctx context.Context, task model.Task) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != task.BusinessID {
		return fmt.Errorf("%w: task BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, task.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&task).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveTask", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "task", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save task", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateTask writes the full task row back.
func (r *PostgresRepo) UpdateTask(ctx context.Context, task model.Task) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != task.BusinessID {
		return fmt.Errorf("%w: task BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, task.BusinessID, businessID)
	}
	task.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&task).
			Select("*").Omit("id", "created_at").
			Where("business_id = ?", businessID).
			Updates(&task)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: task %s", apperrors.ErrNotFound, task.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateTask", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "task", businessID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update task", zap.String("task_id", task.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindTaskByID finds a task by its ID within the tenant scope.
func (r *PostgresRepo) FindTaskByID(ctx context.Context, id string) (*model.Task, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var task model.Task
	operation := func() error {
		result := r.conn(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&task)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: task_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindTaskByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "task", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find task by ID",
			zap.String("task_id", id),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &task, nil
}

// FindOpenFollowUpTaskByConversationID returns the open FOLLOW_UP task tied
// to a conversation. A conversation has at most one at a time.
func (r *PostgresRepo) FindOpenFollowUpTaskByConversationID(ctx context.Context, conversationID string) (*model.Task, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var task model.Task
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND conversation_id = ? AND type = ? AND status = ?",
				businessID, conversationID, model.TaskTypeFollowUp, model.TaskStatusOpen).
			First(&task)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: open follow-up for conversation %s: %w", apperrors.ErrNotFound, conversationID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindOpenFollowUpTaskByConversationID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_open_follow_up", "task", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find open follow-up task",
			zap.String("conversation_id", conversationID),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &task, nil
}

// FindOpenTasksByConversationID lists OPEN and OVERDUE tasks tied to a
// conversation, for cancellation on close.
func (r *PostgresRepo) FindOpenTasksByConversationID(ctx context.Context, conversationID string) ([]model.Task, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var tasks []model.Task
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND conversation_id = ? AND status IN ?",
				businessID, conversationID,
				[]model.TaskStatus{model.TaskStatusOpen, model.TaskStatusOverdue}).
			Order("created_at ASC").
			Find(&tasks)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindOpenTasksByConversationID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_open_by_conversation", "task", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find open tasks by conversation",
			zap.String("conversation_id", conversationID),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	if tasks == nil { // Ensure empty slice is returned, not nil
		return []model.Task{}, nil
	}
	return tasks, nil
}

// FindOpenTasksDueBefore returns OPEN tasks whose due date passed, oldest
// first, for the overdue sweep.
func (r *PostgresRepo) FindOpenTasksDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Task, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var tasks []model.Task
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND status = ? AND due_at < ?", businessID, model.TaskStatusOpen, cutoff).
			Order("due_at ASC").
			Limit(limit).
			Find(&tasks)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindOpenTasksDueBefore", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_open_due_before", "task", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find open tasks due before cutoff",
			zap.String("business_id", businessID),
			zap.Time("cutoff", cutoff),
			zap.Error(findErr))
		return nil, findErr
	}
	if tasks == nil { // Ensure empty slice is returned, not nil
		return []model.Task{}, nil
	}
	return tasks, nil
}
