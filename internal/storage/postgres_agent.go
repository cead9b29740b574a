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

// --- Agent Repository Methods ---

// SaveAgent creates a referral agent record. The composite unique index on
// (business_id, coupon_code) rejects duplicate coupons within a business.
func (r *PostgresRepo) SaveAgent(ctx context.Context, agent model.Agent) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != agent.BusinessID {
		return fmt.Errorf("%w: agent BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, agent.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&agent).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveAgent", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "agent", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save agent", zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// UpdateAgent writes the full agent row back.
func (r *PostgresRepo) UpdateAgent(ctx context.Context, agent model.Agent) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != agent.BusinessID {
		return fmt.Errorf("%w: agent BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, agent.BusinessID, businessID)
	}
	agent.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.conn(ctx).Model(&agent).
			Select("*").Omit("id", "created_at").
			Where("business_id = ?", businessID).
			Updates(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: agent %s", apperrors.ErrNotFound, agent.ID))
		}
		return nil
	}

	startTime := utils.Now()
	updateErr := r.run(ctx, "UpdateAgent", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("update", "agent", businessID, time.Since(startTime), updateErr)
	if updateErr != nil {
		logger.FromContext(ctx).Error("Failed to update agent", zap.String("agent_id", agent.ID), zap.Error(updateErr))
		return updateErr
	}
	return nil
}

// FindAgentByID finds an agent by its ID within the tenant scope.
func (r *PostgresRepo) FindAgentByID(ctx context.Context, id string) (*model.Agent, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var agent model.Agent
	operation := func() error {
		result := r.conn(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&agent)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: agent_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAgentByID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_id", "agent", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find agent by ID",
			zap.String("agent_id", id),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}

// FindAgentByCouponCode finds an agent by coupon code within the tenant scope.
func (r *PostgresRepo) FindAgentByCouponCode(ctx context.Context, couponCode string) (*model.Agent, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var agent model.Agent
	operation := func() error {
		if couponCode == "" {
			return backoff.Permanent(fmt.Errorf("%w: couponCode cannot be empty for FindAgentByCouponCode", apperrors.ErrBadRequest))
		}
		result := r.conn(ctx).Where("business_id = ? AND coupon_code = ?", businessID, couponCode).First(&agent)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return backoff.Permanent(fmt.Errorf("%w: coupon %s: %w", apperrors.ErrNotFound, couponCode, result.Error))
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAgentByCouponCode", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_coupon", "agent", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) || errors.Is(findErr, apperrors.ErrBadRequest) {
			return nil, findErr
		}
		logger.FromContext(ctx).Error("Failed to find agent by coupon code",
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}

// FindAgentByReferralToken finds an agent by referral token within the tenant
// scope.
func (r *PostgresRepo) FindAgentByReferralToken(ctx context.Context, token string) (*model.Agent, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var agent model.Agent
	operation := func() error {
		if token == "" {
			return backoff.Permanent(fmt.Errorf("%w: token cannot be empty for FindAgentByReferralToken", apperrors.ErrBadRequest))
		}
		result := r.conn(ctx).Where("business_id = ? AND referral_token = ?", businessID, token).First(&agent)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return backoff.Permanent(fmt.Errorf("%w: referral token: %w", apperrors.ErrNotFound, result.Error))
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAgentByReferralToken", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_referral_token", "agent", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) || errors.Is(findErr, apperrors.ErrBadRequest) {
			return nil, findErr
		}
		logger.FromContext(ctx).Error("Failed to find agent by referral token",
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &agent, nil
}
