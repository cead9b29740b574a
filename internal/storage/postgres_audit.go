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

// --- Audit Repository Methods ---
// The audit log is append-only; there is no update or delete path.

// SaveAuditEvent appends an audit row. Called inside the same transaction as
// the mutation it records so the two commit or roll back together.
func (r *PostgresRepo) SaveAuditEvent(ctx context.Context, event model.AuditEvent) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if businessID != event.BusinessID {
		return fmt.Errorf("%w: audit event BusinessID %s does not match tenant ID %s", apperrors.ErrBadRequest, event.BusinessID, businessID)
	}

	operation := func() error {
		if createErr := r.conn(ctx).Create(&event).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveAuditEvent", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "audit_event", businessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save audit event",
			zap.String("entity_type", event.EntityType),
			zap.String("entity_id", event.EntityID),
			zap.String("action", event.Action),
			zap.Error(saveErr))
		return saveErr
	}
	return nil
}

// FindAuditEventsByEntity lists audit rows for one entity, oldest first.
func (r *PostgresRepo) FindAuditEventsByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]model.AuditEvent, error) {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var events []model.AuditEvent
	operation := func() error {
		result := r.conn(ctx).
			Where("business_id = ? AND entity_type = ? AND entity_id = ?", businessID, entityType, entityID).
			Order("id ASC").
			Limit(limit).
			Offset(offset).
			Find(&events)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil // Success, even if no records found
	}

	startTime := utils.Now()
	findErr := r.run(ctx, "FindAuditEventsByEntity", readRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("find_by_entity", "audit_event", businessID, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find audit events by entity",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("business_id", businessID),
			zap.Error(findErr))
		return nil, findErr
	}
	if events == nil { // Ensure empty slice is returned, not nil
		return []model.AuditEvent{}, nil
	}
	return events, nil
}
