package usecase

import (
	"context"
	"fmt"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
)

// CrmService implements the record lifecycle engine: lead intake and
// conversion, conversation state machine, attribution, task scheduling, and
// the audit trail. Every multi-step mutation runs inside one transaction
// obtained from tx.
type CrmService struct {
	tx               storage.Tx
	leadRepo         storage.LeadRepo
	customerRepo     storage.CustomerRepo
	conversationRepo storage.ConversationRepo
	interactionRepo  storage.InteractionRepo
	taskRepo         storage.TaskRepo
	agentRepo        storage.AgentRepo
	attributionRepo  storage.AttributionRepo
	auditRepo        storage.AuditRepo
	businessRepo     storage.BusinessRepo
	userRepo         storage.UserRepo
	cfg              config.EngineConfig
}

// NewCrmService creates a new lifecycle engine service
func NewCrmService(
	tx storage.Tx,
	leadRepo storage.LeadRepo,
	customerRepo storage.CustomerRepo,
	conversationRepo storage.ConversationRepo,
	interactionRepo storage.InteractionRepo,
	taskRepo storage.TaskRepo,
	agentRepo storage.AgentRepo,
	attributionRepo storage.AttributionRepo,
	auditRepo storage.AuditRepo,
	businessRepo storage.BusinessRepo,
	userRepo storage.UserRepo,
	cfg config.EngineConfig,
) *CrmService {
	return &CrmService{
		tx:               tx,
		leadRepo:         leadRepo,
		customerRepo:     customerRepo,
		conversationRepo: conversationRepo,
		interactionRepo:  interactionRepo,
		taskRepo:         taskRepo,
		agentRepo:        agentRepo,
		attributionRepo:  attributionRepo,
		auditRepo:        auditRepo,
		businessRepo:     businessRepo,
		userRepo:         userRepo,
		cfg:              cfg,
	}
}

// validateBusinessTenant validates that an explicit business ID carried in a
// payload matches the tenant ID from context. Empty payload IDs are allowed;
// the context is authoritative.
func validateBusinessTenant(ctx context.Context, payloadBusinessID string) error {
	if payloadBusinessID == "" {
		return nil
	}

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant ID: %w", err)
	}

	if payloadBusinessID != businessID {
		return fmt.Errorf("payload business_id (%s) does not match tenant ID (%s)", payloadBusinessID, businessID)
	}

	return nil
}
