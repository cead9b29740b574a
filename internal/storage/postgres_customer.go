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

// --- Customer Repository Methods ---

// SaveCustomer creates a customer record. The composite unique index on
// (business_id, phone_number) surfaces concurrent conversions as ErrDuplicate.
func (r *PostgresRepo) SaveCustomer(ctx context.Context, customer model.Customer) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != customer.BusinessID {
		return fmt.Errorf("%w: customer BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, customer.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&customer).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveCustomer", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "customer", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save customer", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateCustomer writes the full customer row back.
func (r *PostgresRepo) UpdateCustomer(ctx context.Context, customer model.Customer) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != customer.BusinessID {
		return fmt.Errorf("%w: customer BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, customer.BusinessID, businessID)
	}
	customer.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&customer).
			Select("*").Omit("id", "created_at").
			Where("business_id = ?", businessID).
			Updates(&customer)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: customer %s", apperrors.ErrNotFound, customer.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateCustomer", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "customer", businessID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update customer", zap.String("customer_id", customer.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindCustomerByID finds a customer by its ID within the tenant scope.
func (r *PostgresRepo) FindCustomerByID(ctx context.Context, id string) (*model.Customer, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var customer model.Customer
	operation := func() error {
		result := r.conn(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&customer)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindCustomerByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "customer", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find customer by ID",
			zap.String("customer_id", id),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &customer, nil
}

// FindCustomerByPhone finds a customer by its normalized phone number within
// the tenant scope.
func (r *PostgresRepo) FindCustomerByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var customer model.Customer
	operation := func() error {
		result := r.conn(ctx).Where("business_id = ? AND phone_number = ?", businessID, phone).First(&customer)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: phone %s: %w", apperrors.ErrNotFound, phone, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindCustomerByPhone", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_phone", "customer", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find customer by phone",
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &customer, nil
}
