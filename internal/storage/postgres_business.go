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

// --- Business Repository Methods ---
// Businesses are the tenants themselves, so these methods are platform-level
// and take no tenant from context.

// SaveBusiness creates a tenant record. The unique index on slug rejects
// duplicate handles globally.
func (r *PostgresRepo) SaveBusiness(ctx context.Context, business model.Business) error {
	operation := func() error {
		if createErr := r.conn(ctx).Create(&business).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveBusiness", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "business", business.ID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save business", zap.String("slug", business.Slug), zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateBusiness writes the full business row back.
func (r *PostgresRepo) UpdateBusiness(ctx context.Context, business model.Business) error {
	business.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&business).
			Select("*").Omit("id", "created_at").
			Updates(&business)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: business %s", apperrors.ErrNotFound, business.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateBusiness", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "business", business.ID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update business", zap.String("business_id", business.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindBusinessByID finds a tenant by its ID.
func (r *PostgresRepo) FindBusinessByID(ctx context.Context, id string) (*model.Business, error) {
	var business model.Business
	operation := func() error {
		result := r.conn(ctx).Where("id = ?", id).First(&business)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: business_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindBusinessByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "business", id, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find business by ID", zap.String("business_id", id), zap.Error(findErr))
		return nil, findErr
	}
	return &business, nil
}

// FindBusinessBySlug finds a tenant by its globally unique slug.
func (r *PostgresRepo) FindBusinessBySlug(ctx context.Context, slug string) (*model.Business, error) {
	var business model.Business
	operation := func() error {
		result := r.conn(ctx).Where("slug = ?", slug).First(&business)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: slug %s: %w", apperrors.ErrNotFound, slug, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindBusinessBySlug", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_slug", "business", slug, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find business by slug", zap.String("slug", slug), zap.Error(findErr))
		return nil, findErr
	}
	return &business, nil
}

// FindActiveBusinesses lists all ACTIVE tenants. The sweeper fans out over
// this set.
func (r *PostgresRepo) FindActiveBusinesses(ctx context.Context) ([]model.Business, error) {
	var businesses []model.Business
	operation := func() error {
		result := r.conn(ctx).
			Where("status = ?", model.BusinessStatusActive).
			Order("id ASC").
			Find(&businesses)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindActiveBusinesses", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_active", "business", "all", time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find active businesses", zap.Error(findErr))
		return nil, findErr
	}
	if businesses == nil { // Ensure empty slice is returned, not nil
		return []model.Business{}, nil
	}
	return businesses, nil
}
