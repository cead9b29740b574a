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
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// --- User Repository Methods ---
// Emails are unique across tenants, so lookup by email is platform-level.

// SaveUser creates a user record. The unique index on email rejects
// duplicates globally.
func (r *PostgresRepo) SaveUser(ctx context.Context, user model.User) error {
	operation := func() error {
		if createErr := r.conn(ctx).Create(&user).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveUser", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "user", userBusinessLabel(user), time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save user", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateUser writes the full user row back.
func (r *PostgresRepo) UpdateUser(ctx context.Context, user model.User) error {
	user.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&user).
			Select("*").Omit("id", "created_at").
			Updates(&user)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: user %s", apperrors.ErrNotFound, user.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateUser", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "user", userBusinessLabel(user), time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update user", zap.String("user_id", user.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindUserByID finds a user by its ID.
func (r *PostgresRepo) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	operation := func() error {
		result := r.conn(ctx).Where("id = ?", id).First(&user)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindUserByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "user", "all", time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find user by ID", zap.String("user_id", id), zap.Error(findErr))
		return nil, findErr
	}
	return &user, nil
}

// FindUserByEmail finds a user by its globally unique email.
func (r *PostgresRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	operation := func() error {
		result := r.conn(ctx).Where("email = ?", email).First(&user)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: email: %w", apperrors.ErrNotFound, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindUserByEmail", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_email", "user", "all", time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find user by email", zap.Error(findErr))
		return nil, findErr
	}
	return &user, nil
}

// userBusinessLabel returns the metric label for a user row. Super-admins
// have no business.
func userBusinessLabel(user model.User) string {
	if user.BusinessID == nil {
		return "platform"
	}
	return *user.BusinessID
}
