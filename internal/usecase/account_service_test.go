package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
)

func TestCreateBusiness_Success(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())

	m.business.On("FindBySlug", mock.Anything, "acme-dental").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.business.On("Save", mock.Anything, mock.AnythingOfType("model.Business")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	business, err := service.CreateBusiness(context.Background(), CreateBusinessInput{
		Name: "Acme Dental",
		Slug: "  Acme-Dental ",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-dental", business.Slug)
	assert.Equal(t, model.BusinessStatusActive, business.Status)
	assert.NotEmpty(t, business.ID)

	// The audit row is scoped to the new tenant itself.
	savedAudit := m.audit.Calls[len(m.audit.Calls)-1].Arguments.Get(1).(model.AuditEvent)
	assert.Equal(t, business.ID, savedAudit.BusinessID)
	assert.Equal(t, model.AuditActionCreate, savedAudit.Action)
}

func TestCreateBusiness_DuplicateSlug(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())

	taken := model.Business{ID: "biz-1", Name: "First", Slug: "acme-dental"}
	m.business.On("FindBySlug", mock.Anything, "acme-dental").Return(&taken, nil)

	business, err := service.CreateBusiness(context.Background(), CreateBusinessInput{Name: "Second", Slug: "acme-dental"})
	assert.Nil(t, business)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	m.business.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateUser_HashesPassword(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	businessID := testBusinessID

	m.user.On("FindByEmail", mock.Anything, "staff@example.com").Return(nil, apperrors.ErrNotFound)
	m.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	m.user.On("Save", mock.Anything, mock.AnythingOfType("model.User")).Return(nil)
	m.audit.On("Save", mock.Anything, mock.AnythingOfType("model.AuditEvent")).Return(nil)

	user, err := service.CreateUser(context.Background(), CreateUserInput{
		BusinessID: &businessID,
		Email:      "Staff@Example.com",
		Name:       "Staff One",
		Role:       model.RoleStaff,
		Password:   "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "staff@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse-battery")))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	service, m := newTestService(defaultEngineConfig())
	businessID := testBusinessID

	existing := model.User{ID: "user-1", Email: "staff@example.com"}
	m.user.On("FindByEmail", mock.Anything, "staff@example.com").Return(&existing, nil)

	user, err := service.CreateUser(context.Background(), CreateUserInput{
		BusinessID: &businessID,
		Email:      "staff@example.com",
		Role:       model.RoleStaff,
		Password:   "correct-horse-battery",
	})
	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	m.user.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateUser_SuperAdminScopeRules(t *testing.T) {
	service, _ := newTestService(defaultEngineConfig())
	businessID := testBusinessID

	_, err := service.CreateUser(context.Background(), CreateUserInput{
		BusinessID: &businessID,
		Email:      "root@example.com",
		Role:       model.RoleSuperAdmin,
		Password:   "correct-horse-battery",
	})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = service.CreateUser(context.Background(), CreateUserInput{
		Email:    "staff@example.com",
		Role:     model.RoleStaff,
		Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}
