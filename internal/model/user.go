package model

import (
	"time"
)

// UserRole is the staff role of a user within a business.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
	RoleOwner      UserRole = "OWNER"
	RoleManager    UserRole = "MANAGER"
	RoleStaff      UserRole = "STAFF"
)

// Valid reports whether the role is one of the closed set.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOwner, RoleManager, RoleStaff:
		return true
	}
	return false
}

// User is a staff member of a business, or a platform super-admin when
// BusinessID is nil.
type User struct {
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// BusinessID is nil for platform super-admins.
	BusinessID *string `json:"business_id,omitempty" gorm:"column:business_id;type:text;index"`
	// Email is globally unique across tenants.
	Email string   `json:"email" gorm:"column:email;uniqueIndex" validate:"required,email"`
	Name  string   `json:"name,omitempty" gorm:"column:name"`
	Role  UserRole `json:"role" gorm:"column:role;type:text" validate:"required"`
	// PasswordHash is a bcrypt digest, never the raw credential.
	PasswordHash string     `json:"-" gorm:"column:password_hash"`
	Active       bool       `json:"active" gorm:"column:active;default:true"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" gorm:"column:last_login_at"`
	CreatedAt    time.Time  `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
