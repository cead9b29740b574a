package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/phone"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/validator"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// IntakeResult reports what an intake produced. Exactly one of Lead/Customer
// is set: Customer only when the phone already belongs to a customer and the
// engine is configured to attach a conversation instead of rejecting.
type IntakeResult struct {
	Lead         *model.Lead
	Customer     *model.Customer
	Conversation *model.Conversation
	// Merged is true when the intake folded into an existing lead instead of
	// creating a new one.
	Merged bool
}

// Intake processes one inbound lead event: normalizes the phone, deduplicates
// against existing leads and customers within the tenant, and creates or
// merges a lead. Every branch writes exactly one audit event for the lead it
// touched. The lead write and any attribution the payload carries commit in
// one transaction, so a rejected attribution leaves no lead row behind. A
// unique-constraint race on create restarts the transaction once as a
// re-lookup-and-merge.
func (s *CrmService) Intake(ctx context.Context, payload model.LeadIntakePayload) (result *IntakeResult, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("lead_intake", businessID, err) }()

	if err = validateBusinessTenant(ctx, payload.BusinessID); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrBadRequest, err.Error())
	}
	if err = validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	region := payload.Region
	if region == "" {
		region = s.cfg.DefaultPhoneRegion
	}
	normalized, err := phone.Normalize(payload.PhoneNumber, region)
	if err != nil {
		log.Warn("Rejected intake with unparseable phone",
			zap.String("phone_number", payload.PhoneNumber),
			zap.String("region", region),
			zap.Error(err),
		)
		return nil, err
	}

	// A phone that already belongs to a customer never becomes a second lead.
	customer, err := s.customerRepo.FindByPhone(ctx, normalized)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if customer != nil {
		if !s.cfg.AttachConversationOnExistingCustomer {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyCustomer, normalized)
		}
		conversation, openErr := s.OpenConversation(ctx, model.ChannelSite, ParticipantRefs{CustomerID: &customer.ID})
		if openErr != nil {
			return nil, openErr
		}
		log.Info("Intake attached conversation to existing customer",
			zap.String("customer_id", customer.ID),
			zap.String("conversation_id", conversation.ID),
		)
		return &IntakeResult{Customer: customer, Conversation: conversation}, nil
	}

	result, err = s.intakeLead(ctx, businessID, normalized, payload)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return nil, err
		}
		// Lost the insert race; the winner's row is now the dedup target, so
		// restart the whole transaction as a merge.
		log.Info("Lead insert raced, re-resolving as merge", zap.String("phone_number", normalized))
		result, err = s.intakeLead(ctx, businessID, normalized, payload)
		if err != nil {
			return nil, err
		}
	}

	log.Info("Lead intake processed",
		zap.String("lead_id", result.Lead.ID),
		zap.String("phone_number", normalized),
		zap.Bool("merged", result.Merged),
	)
	return result, nil
}

// intakeLead resolves one intake into a lead create or merge and, when the
// payload carries a coupon or referral, its attribution, all inside a single
// transaction. The nested helpers join the ambient transaction, so a failed
// or rejected attribution rolls the lead write back with it.
func (s *CrmService) intakeLead(ctx context.Context, businessID, normalized string, payload model.LeadIntakePayload) (*IntakeResult, error) {
	var result *IntakeResult
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.leadRepo.FindByPhone(txCtx, normalized)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if existing != nil {
			merged, mergeErr := s.mergeLead(txCtx, *existing, payload)
			if mergeErr != nil {
				return mergeErr
			}
			result = &IntakeResult{Lead: merged, Merged: true}
		} else {
			created, createErr := s.createLead(txCtx, businessID, normalized, payload)
			if createErr != nil {
				return createErr
			}
			result = &IntakeResult{Lead: created}
		}

		if payload.CouponCode != "" || payload.ReferralToken != "" {
			input := AttributionInput{CouponCode: payload.CouponCode, ReferralToken: payload.ReferralToken}
			if _, attrErr := s.ResolveAttribution(txCtx, input, AttributionTarget{LeadID: result.Lead.ID}); attrErr != nil {
				if errors.Is(attrErr, apperrors.ErrUnknownAgent) && !s.cfg.RejectUnknownAgent {
					logger.FromContext(txCtx).Warn("Skipping attribution for unknown agent",
						zap.String("lead_id", result.Lead.ID),
						zap.String("coupon_code", payload.CouponCode),
					)
				} else {
					return attrErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createLead inserts a fresh NEW lead and its create audit row in one
// transaction.
func (s *CrmService) createLead(ctx context.Context, businessID, normalized string, payload model.LeadIntakePayload) (*model.Lead, error) {
	lead := model.Lead{
		ID:          uuid.NewString(),
		BusinessID:  businessID,
		PhoneNumber: normalized,
		Name:        payload.Name,
		Email:       payload.Email,
		Status:      model.LeadStatusNew,
		Notes:       payload.Notes,
		Source:      payload.Source,
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
	if payload.Tags != nil {
		lead.Tags = datatypes.JSON(utils.MustMarshalJSON(payload.Tags))
	}

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.leadRepo.Save(txCtx, lead); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, lead.TableName(), lead.ID, model.AuditActionCreate, nil, lead)
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// mergeLead folds an intake payload into an existing lead, last-write-wins on
// the free-form fields, and records one merge audit row.
func (s *CrmService) mergeLead(ctx context.Context, existing model.Lead, payload model.LeadIntakePayload) (*model.Lead, error) {
	before := existing
	merged := existing
	if payload.Name != "" {
		merged.Name = payload.Name
	}
	if payload.Email != "" {
		merged.Email = payload.Email
	}
	if payload.Notes != "" {
		merged.Notes = payload.Notes
	}
	if payload.Tags != nil {
		merged.Tags = datatypes.JSON(utils.MustMarshalJSON(payload.Tags))
	}
	if payload.Source != "" {
		merged.Source = payload.Source
	}
	merged.UpdatedAt = utils.Now()

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.leadRepo.Update(txCtx, merged); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, merged.TableName(), merged.ID, model.AuditActionMerge, before, merged)
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// TransitionLeadStatus moves a lead along its legal transition set. CONVERTED
// is only reachable through ConvertLead, never directly.
func (s *CrmService) TransitionLeadStatus(ctx context.Context, leadID string, next model.LeadStatus) (lead *model.Lead, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("lead_transition", businessID, err) }()

	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown lead status %q", apperrors.ErrBadRequest, next)
	}
	if next == model.LeadStatusConverted {
		return nil, fmt.Errorf("%w: CONVERTED is only reachable through convert", apperrors.ErrIllegalTransition)
	}

	current, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: lead %s → %s", apperrors.ErrIllegalTransition, current.Status, next)
	}

	before := *current
	updated := *current
	updated.Status = next
	updated.UpdatedAt = utils.Now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.leadRepo.Update(txCtx, updated); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, updated.TableName(), updated.ID, model.AuditActionTransition, before, updated)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Lead status transitioned",
		zap.String("lead_id", leadID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(next)),
	)
	return &updated, nil
}

// ConvertOverrides optionally replaces fields otherwise copied from the lead
// onto the new customer.
type ConvertOverrides struct {
	Name    string
	Email   string
	Tags    map[string]interface{}
	Address map[string]interface{}
}

// ConvertLead atomically turns a lead into a customer: creates or reuses the
// customer row, stamps the lead CONVERTED with a back-link, and copies the
// lead's attributions to the customer. Calling it again on an already
// converted lead is a no-op returning the existing customer.
func (s *CrmService) ConvertLead(ctx context.Context, leadID string, overrides *ConvertOverrides) (customer *model.Customer, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("lead_convert", businessID, err) }()

	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if lead.Status == model.LeadStatusConverted {
		if lead.CustomerID == nil {
			return nil, fmt.Errorf("%w: lead %s is CONVERTED without a customer link", apperrors.ErrConflict, leadID)
		}
		return s.customerRepo.FindByID(ctx, *lead.CustomerID)
	}
	if !lead.Status.CanTransitionTo(model.LeadStatusConverted) {
		return nil, fmt.Errorf("%w: lead %s → CONVERTED", apperrors.ErrIllegalTransition, lead.Status)
	}

	customer, err = s.convertLeadTx(ctx, businessID, *lead, overrides)
	if err != nil && errors.Is(err, apperrors.ErrDuplicate) {
		// Customer insert raced; the existing row by phone is authoritative.
		log.Info("Customer insert raced during convert, reusing existing row", zap.String("lead_id", leadID))
		customer, err = s.convertLeadTx(ctx, businessID, *lead, overrides)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Lead converted",
		zap.String("lead_id", leadID),
		zap.String("customer_id", customer.ID),
	)
	return customer, nil
}

func (s *CrmService) convertLeadTx(ctx context.Context, businessID string, lead model.Lead, overrides *ConvertOverrides) (*model.Customer, error) {
	existing, err := s.customerRepo.FindByPhone(ctx, lead.PhoneNumber)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var customer model.Customer
	if existing != nil {
		customer = *existing
	} else {
		customer = model.Customer{
			ID:          uuid.NewString(),
			BusinessID:  businessID,
			PhoneNumber: lead.PhoneNumber,
			Name:        lead.Name,
			Email:       lead.Email,
			OwnerID:     lead.OwnerID,
			Tags:        lead.Tags,
			CreatedAt:   utils.Now(),
		}
	}
	if overrides != nil {
		if overrides.Name != "" {
			customer.Name = overrides.Name
		}
		if overrides.Email != "" {
			customer.Email = overrides.Email
		}
		if overrides.Tags != nil {
			customer.Tags = datatypes.JSON(utils.MustMarshalJSON(overrides.Tags))
		}
		if overrides.Address != nil {
			customer.Address = datatypes.JSON(utils.MustMarshalJSON(overrides.Address))
		}
	}
	customer.LeadID = &lead.ID
	customer.UpdatedAt = utils.Now()

	beforeLead := lead
	convertedLead := lead
	convertedLead.Status = model.LeadStatusConverted
	convertedLead.CustomerID = &customer.ID
	convertedLead.UpdatedAt = utils.Now()

	attributions, err := s.attributionRepo.FindByLeadID(ctx, lead.ID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if existing != nil {
			if err := s.customerRepo.Update(txCtx, customer); err != nil {
				return err
			}
			if err := s.RecordAudit(txCtx, customer.TableName(), customer.ID, model.AuditActionUpdate, existing, customer); err != nil {
				return err
			}
		} else {
			if err := s.customerRepo.Save(txCtx, customer); err != nil {
				return err
			}
			if err := s.RecordAudit(txCtx, customer.TableName(), customer.ID, model.AuditActionCreate, nil, customer); err != nil {
				return err
			}
		}

		if err := s.leadRepo.Update(txCtx, convertedLead); err != nil {
			return err
		}
		if err := s.RecordAudit(txCtx, convertedLead.TableName(), convertedLead.ID, model.AuditActionConvert, beforeLead, convertedLead); err != nil {
			return err
		}

		for _, attribution := range attributions {
			if _, copyErr := s.copyAttributionToCustomer(txCtx, attribution, customer.ID); copyErr != nil {
				return copyErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// copyAttributionToCustomer mirrors a lead attribution onto the customer,
// skipping pairs that already exist.
func (s *CrmService) copyAttributionToCustomer(ctx context.Context, attribution model.Attribution, customerID string) (*model.Attribution, error) {
	existing, err := s.attributionRepo.FindByAgentAndCustomer(ctx, attribution.AgentID, customerID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	copied := model.Attribution{
		ID:         uuid.NewString(),
		BusinessID: attribution.BusinessID,
		AgentID:    attribution.AgentID,
		Method:     attribution.Method,
		CustomerID: &customerID,
		CreatedAt:  utils.Now(),
	}
	if err := s.attributionRepo.Save(ctx, copied); err != nil {
		return nil, err
	}
	return &copied, nil
}
