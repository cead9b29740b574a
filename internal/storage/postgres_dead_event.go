package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// --- DeadEvent Repository Methods ---

// SaveDeadEvent parks an intake event that exhausted its delivery attempts.
// The business ID comes from the event itself: the consumer parks events for
// any tenant, so no tenant context is required here.
func (r *PostgresRepo) SaveDeadEvent(ctx context.Context, event model.DeadEvent) error {
	operation := func() error {
		if createErr := r.conn(ctx).Create(&event).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	startTime := utils.Now()
	saveErr := r.run(ctx, "SaveDeadEvent", commitRetryMaxElapsedTime, operation)
	observer.ObserveDbOperationDuration("save", "dead_event", event.BusinessID, time.Since(startTime), saveErr)
	if saveErr != nil {
		logger.FromContext(ctx).Error("Failed to save dead event",
			zap.String("source_subject", event.SourceSubject),
			zap.String("business_id", event.BusinessID),
			zap.Error(saveErr))
		return saveErr
	}
	return nil
}
