package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/validator"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// CreateBusinessInput is the tenant onboarding payload.
type CreateBusinessInput struct {
	Name        string `validate:"required"`
	Slug        string `validate:"required"`
	OwnerUserID *string
	Settings    map[string]interface{}
}

// CreateBusiness provisions a new tenant. The slug is globally unique; a
// duplicate surfaces as ErrDuplicate.
func (s *CrmService) CreateBusiness(ctx context.Context, input CreateBusinessInput) (*model.Business, error) {
	log := logger.FromContext(ctx)

	if err := validator.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	existing, err := s.businessRepo.FindBySlug(ctx, slug)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: slug %q is taken", apperrors.ErrDuplicate, slug)
	}

	business := model.Business{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Slug:        slug,
		Status:      model.BusinessStatusActive,
		OwnerUserID: input.OwnerUserID,
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
	if input.Settings != nil {
		business.Settings = datatypes.JSON(utils.MustMarshalJSON(input.Settings))
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.businessRepo.Save(txCtx, business); err != nil {
			return err
		}
		return s.recordAudit(txCtx, business.ID, business.TableName(), business.ID, model.AuditActionCreate, nil, business)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Business provisioned",
		zap.String("business_id", business.ID),
		zap.String("slug", slug),
	)
	return &business, nil
}

// CreateUserInput is the staff onboarding payload. BusinessID is nil for
// platform super-admins.
type CreateUserInput struct {
	BusinessID *string
	Email      string `validate:"required,email"`
	Name       string
	Role       model.UserRole `validate:"required"`
	Password   string         `validate:"required,min=8"`
}

// CreateUser provisions a staff member or super-admin. The email is globally
// unique; the password is stored as a bcrypt hash only.
func (s *CrmService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	log := logger.FromContext(ctx)

	if err := validator.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrBadRequest, input.Role)
	}
	if input.Role == model.RoleSuperAdmin && input.BusinessID != nil {
		return nil, fmt.Errorf("%w: super-admins are not scoped to a business", apperrors.ErrBadRequest)
	}
	if input.Role != model.RoleSuperAdmin && input.BusinessID == nil {
		return nil, fmt.Errorf("%w: role %s requires a business", apperrors.ErrBadRequest, input.Role)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email %q is taken", apperrors.ErrDuplicate, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		BusinessID:   input.BusinessID,
		Email:        email,
		Name:         input.Name,
		Role:         input.Role,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    utils.Now(),
		UpdatedAt:    utils.Now(),
	}

	auditBusinessID := "platform"
	if user.BusinessID != nil {
		auditBusinessID = *user.BusinessID
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Save(txCtx, user); err != nil {
			return err
		}
		// The snapshot marshals through the model's json tags, which exclude
		// the password hash.
		return s.recordAudit(txCtx, auditBusinessID, user.TableName(), user.ID, model.AuditActionCreate, nil, user)
	})
	if err != nil {
		return nil, err
	}

	log.Info("User provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return &user, nil
}
