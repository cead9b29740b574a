package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// --- Attribution Repository Methods ---

// SaveAttribution creates an attribution record.
func (r *PostgresRepo) SaveAttribution(ctx context.Context, attribution model.Attribution) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != attribution.BusinessID {
		return fmt.Errorf("%w: attribution BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, attribution.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&attribution).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveAttribution", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "attribution", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save attribution",
			zap.String("agent_id", attribution.AgentID),
			zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// FindAttributionByAgentAndLead returns the attribution tying an agent to a
// lead, if one exists. Used for idempotent resolution.
func (r *PostgresRepo) FindAttributionByAgentAndLead(ctx context.Context, agentID, leadID string) (*model.Attribution, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var attribution model.Attribution
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND agent_id = ? AND lead_id = ?", businessID, agentID, leadID).
			First(&attribution)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: attribution agent %s lead %s: %w", apperrors.ErrNotFound, agentID, leadID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAttributionByAgentAndLead", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_agent_lead", "attribution", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find attribution by agent and lead",
			zap.String("agent_id", agentID),
			zap.String("lead_id", leadID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &attribution, nil
}

// FindAttributionByAgentAndCustomer returns the attribution tying an agent to
// a customer, if one exists.
func (r *PostgresRepo) FindAttributionByAgentAndCustomer(ctx context.Context, agentID, customerID string) (*model.Attribution, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var attribution model.Attribution
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND agent_id = ? AND customer_id = ?", businessID, agentID, customerID).
			First(&attribution)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: attribution agent %s customer %s: %w", apperrors.ErrNotFound, agentID, customerID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAttributionByAgentAndCustomer", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_agent_customer", "attribution", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find attribution by agent and customer",
			zap.String("agent_id", agentID),
			zap.String("customer_id", customerID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &attribution, nil
}

// FindAttributionsByLeadID lists attributions credited to a lead. Conversion
// copies these to the new customer.
func (r *PostgresRepo) FindAttributionsByLeadID(ctx context.Context, leadID string) ([]model.Attribution, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var attributions []model.Attribution
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND lead_id = ?", businessID, leadID).
			Order("created_at ASC").
			Find(&attributions)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAttributionsByLeadID", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_lead", "attribution", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find attributions by lead",
			zap.String("lead_id", leadID),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	if attributions == nil { // Ensure empty slice is returned, not nil
		return []model.Attribution{}, nil
	}
	return attributions, nil
}
