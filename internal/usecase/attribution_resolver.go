package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// AttributionInput identifies the referring agent. Exactly one field must be
// set; anything else is ambiguous regardless of data state.
type AttributionInput struct {
	CouponCode    string
	ReferralToken string
	ManualAgentID string
}

// AttributionTarget names the entity the agent is credited for. Exactly one
// field must be set.
type AttributionTarget struct {
	LeadID     string
	CustomerID string
}

// ResolveAttribution credits an agent for a lead or customer. The agent is
// looked up by coupon code, referral token, or explicit ID within the tenant;
// an unmatched identifier fails with ErrUnknownAgent and the caller decides
// whether that sinks the whole intake. Re-resolving the same agent/target
// pair returns the existing attribution without writing a duplicate.
func (s *CrmService) ResolveAttribution(ctx context.Context, input AttributionInput, target AttributionTarget) (attribution *model.Attribution, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("attribution_resolve", businessID, err) }()

	identifiers := 0
	for _, present := range []bool{input.CouponCode != "", input.ReferralToken != "", input.ManualAgentID != ""} {
		if present {
			identifiers++
		}
	}
	if identifiers != 1 {
		return nil, fmt.Errorf("%w: got %d identifying fields, want exactly 1", apperrors.ErrAmbiguousAttribution, identifiers)
	}
	if (target.LeadID == "") == (target.CustomerID == "") {
		return nil, fmt.Errorf("%w: target must name exactly one of lead or customer", apperrors.ErrBadRequest)
	}

	var (
		agent  *model.Agent
		method model.AttributionMethod
	)
	switch {
	case input.CouponCode != "":
		method = model.AttributionCoupon
		agent, err = s.agentRepo.FindByCouponCode(ctx, input.CouponCode)
	case input.ReferralToken != "":
		method = model.AttributionLink
		agent, err = s.agentRepo.FindByReferralToken(ctx, input.ReferralToken)
	default:
		method = model.AttributionManual
		agent, err = s.agentRepo.FindByID(ctx, input.ManualAgentID)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no agent matches the given identifier", apperrors.ErrUnknownAgent)
		}
		return nil, err
	}

	if target.LeadID != "" {
		attribution, err = s.attributionRepo.FindByAgentAndLead(ctx, agent.ID, target.LeadID)
	} else {
		attribution, err = s.attributionRepo.FindByAgentAndCustomer(ctx, agent.ID, target.CustomerID)
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if attribution != nil {
		log.Debug("Attribution already resolved",
			zap.String("agent_id", agent.ID),
			zap.String("attribution_id", attribution.ID),
		)
		return attribution, nil
	}

	created := model.Attribution{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		AgentID:    agent.ID,
		Method:     method,
		CreatedAt:  utils.Now(),
	}
	if target.LeadID != "" {
		leadID := target.LeadID
		created.LeadID = &leadID
	} else {
		customerID := target.CustomerID
		created.CustomerID = &customerID
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.attributionRepo.Save(txCtx, created); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, created.TableName(), created.ID, model.AuditActionAttribute, nil, created)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Attribution resolved",
		zap.String("agent_id", agent.ID),
		zap.String("method", string(method)),
		zap.String("attribution_id", created.ID),
	)
	return &created, nil
}
