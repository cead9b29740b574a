package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// RecordAudit appends one immutable audit row with before/after snapshots of
// a mutation. Callers must invoke it with the same transactional context as
// the mutation itself; if the append fails the whole operation rolls back.
// before is nil on create, after is nil on pure reads (which are not audited
// at all).
func (s *CrmService) RecordAudit(ctx context.Context, entityType, entityID, action string, before, after interface{}) error {
	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant ID for audit: %w", err)
	}
	return s.recordAudit(ctx, businessID, entityType, entityID, action, before, after)
}

// recordAudit is RecordAudit with an explicit business ID, for platform-level
// operations (tenant provisioning) that run before a tenant context exists.
func (s *CrmService) recordAudit(ctx context.Context, businessID, entityType, entityID, action string, before, after interface{}) error {
	log := logger.FromContext(ctx)

	event := model.AuditEvent{
		BusinessID: businessID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	}
	if before != nil {
		event.Before = datatypes.JSON(utils.MustMarshalJSON(before))
	}
	if after != nil {
		event.After = datatypes.JSON(utils.MustMarshalJSON(after))
	}
	if actorID, ok := tenant.ActorFromContext(ctx); ok {
		event.ActorID = &actorID
	}

	if err := s.auditRepo.Save(ctx, event); err != nil {
		log.Error("Failed to append audit event",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}
