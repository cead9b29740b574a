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

// --- Lead Repository Methods ---

// SaveLead creates a lead record. The composite unique index on
// (business_id, phone_number) surfaces concurrent intakes as ErrDuplicate.
func (r *PostgresRepo) SaveLead(ctx context.Context, lead model.Lead) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != lead.BusinessID {
		return fmt.Errorf("%w: lead BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, lead.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&lead).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveLead", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "lead", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save lead", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateLead writes the full lead row back. Callers are expected to have
// loaded the row within the same tenant scope first.
func (r *PostgresRepo) UpdateLead(ctx context.Context, lead model.Lead) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != lead.BusinessID {
		return fmt.Errorf("%w: lead BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, lead.BusinessID, businessID)
	}
	lead.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&lead).
			Select("*").Omit("id", "created_at").
			Where("business_id = ?", businessID).
			Updates(&lead)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: lead %s", apperrors.ErrNotFound, lead.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateLead", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "lead", businessID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update lead", zap.String("lead_id", lead.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindLeadByID finds a lead by its ID within the tenant scope.
func (r *PostgresRepo) FindLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var lead model.Lead
	operation := func() error {
		result := r.conn(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindLeadByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "lead", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find lead by ID",
			zap.String("lead_id", id),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// FindLeadByPhone finds a lead by its normalized phone number within the
// tenant scope. The phone must already be in E.164 form.
func (r *PostgresRepo) FindLeadByPhone(ctx context.Context, phone string) (*model.Lead, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var lead model.Lead
	operation := func() error {
		result := r.conn(ctx).Where("business_id = ? AND phone_number = ?", businessID, phone).First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: phone %s: %w", apperrors.ErrNotFound, phone, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindLeadByPhone", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_phone", "lead", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find lead by phone",
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// FindLeadsByStatus lists leads with the given status, newest first.
func (r *PostgresRepo) FindLeadsByStatus(ctx context.Context, status model.LeadStatus, limit, offset int) ([]model.Lead, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var leads []model.Lead
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND status = ?", businessID, status).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&leads)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindLeadsByStatus", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_status", "lead", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find leads by status",
			zap.String("status", string(status)),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	if leads == nil { // Ensure empty slice is returned, not nil
		return []model.Lead{}, nil
	}
	return leads, nil
}
