package model

import (
	"time"

	"gorm.io/datatypes"
)

// Customer is a converted lead or a directly-created customer. Unique per
// business by normalized phone.
type Customer struct {
	ID string `json:"id" gorm:"primaryKey;type:text"`
	// BusinessID identifies the tenant this customer belongs to.
	BusinessID string `json:"business_id" gorm:"column:business_id;type:text;uniqueIndex:ux_customers_business_phone" validate:"required"`
	// PhoneNumber is the E.164 normalized deduplication key.
	PhoneNumber string `json:"phone_number" gorm:"column:phone_number;uniqueIndex:ux_customers_business_phone" validate:"required"`
	Name        string `json:"name,omitempty" gorm:"column:name"`
	Email       string `json:"email,omitempty" gorm:"column:email"`
	// LeadID back-references the originating lead when the customer came
	// through conversion.
	LeadID  *string `json:"lead_id,omitempty" gorm:"column:lead_id;type:text;index"`
	OwnerID *string `json:"owner_id,omitempty" gorm:"column:owner_id;type:text;index"`
	// Tags and Address are opaque documents stored and returned unchanged.
	Tags      datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb;column:tags"`
	Address   datatypes.JSON `json:"address,omitempty" gorm:"type:jsonb;column:address"`
	CreatedAt time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Customer) TableName() string {
	return "customers"
}
