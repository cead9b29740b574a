package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// RandomJSONB generates random JSON data for testing.
func RandomJSONB() datatypes.JSON {
	jsonData := map[string]interface{}{
		"key": gofakeit.Word(),
		"num": gofakeit.Number(1, 100),
	}
	bytes, _ := json.Marshal(jsonData)
	return datatypes.JSON(bytes)
}

// JSONBMap generates JSON data from a map for testing.
func JSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewBusiness creates a Business instance with default fake data.
func NewBusiness(overrideDefaults ...*Business) *Business {
	base := &Business{
		ID:        uuid.NewString(),
		Name:      gofakeit.Company(),
		Slug:      gofakeit.LetterN(12),
		Status:    BusinessStatusActive,
		Settings:  RandomJSONB(),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Slug != "" {
			base.Slug = ovr.Slug
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	return base
}

// NewAgent creates an Agent instance with default fake data.
func NewAgent(overrideDefaults ...*Agent) *Agent {
	base := &Agent{
		ID:            uuid.NewString(),
		BusinessID:    "biz_" + gofakeit.LetterN(10),
		Name:          gofakeit.Name(),
		CouponCode:    gofakeit.LetterN(8),
		ReferralToken: uuid.NewString(),
		Status:        AgentStatusActive,
		CreatedAt:     utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:     utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessID != "" {
			base.BusinessID = ovr.BusinessID
		}
		if ovr.CouponCode != "" {
			base.CouponCode = ovr.CouponCode
		}
		if ovr.ReferralToken != "" {
			base.ReferralToken = ovr.ReferralToken
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	base.ReferralURL = fmt.Sprintf("https://daisi.link/r/%s", base.ReferralToken)
	return base
}

// NewLead creates a Lead instance with default fake data.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:          uuid.NewString(),
		BusinessID:  "biz_" + gofakeit.LetterN(10),
		PhoneNumber: fmt.Sprintf("+1202555%04d", gofakeit.Number(0, 9999)),
		Name:        gofakeit.Name(),
		Email:       gofakeit.Email(),
		Status:      LeadStatusNew,
		Notes:       gofakeit.Sentence(6),
		Tags:        RandomJSONB(),
		Source:      "site",
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessID != "" {
			base.BusinessID = ovr.BusinessID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Notes != "" {
			base.Notes = ovr.Notes
		}
		if ovr.CustomerID != nil {
			base.CustomerID = ovr.CustomerID
		}
	}
	return base
}

// NewCustomer creates a Customer instance with default fake data.
func NewCustomer(overrideDefaults ...*Customer) *Customer {
	base := &Customer{
		ID:          uuid.NewString(),
		BusinessID:  "biz_" + gofakeit.LetterN(10),
		PhoneNumber: fmt.Sprintf("+1202555%04d", gofakeit.Number(0, 9999)),
		Name:        gofakeit.Name(),
		Email:       gofakeit.Email(),
		Tags:        RandomJSONB(),
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessID != "" {
			base.BusinessID = ovr.BusinessID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.LeadID != nil {
			base.LeadID = ovr.LeadID
		}
	}
	return base
}

// NewConversation creates a Conversation instance with default fake data.
func NewConversation(overrideDefaults ...*Conversation) *Conversation {
	base := &Conversation{
		ID:             uuid.NewString(),
		BusinessID:     "biz_" + gofakeit.LetterN(10),
		Channel:        ChannelSite,
		Status:         ConversationStatusNew,
		LastActivityAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 60)) * time.Minute),
		CreatedAt:      utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:      utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessID != "" {
			base.BusinessID = ovr.BusinessID
		}
		if ovr.Channel != "" {
			base.Channel = ovr.Channel
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if !ovr.LastActivityAt.IsZero() {
			base.LastActivityAt = ovr.LastActivityAt
		}
		if ovr.SlaBreachedAt != nil {
			base.SlaBreachedAt = ovr.SlaBreachedAt
		}
		if ovr.ClosedAt != nil {
			base.ClosedAt = ovr.ClosedAt
		}
		if ovr.LeadID != nil {
			base.LeadID = ovr.LeadID
		}
		if ovr.CustomerID != nil {
			base.CustomerID = ovr.CustomerID
		}
	}
	return base
}

// NewTask creates a Task instance with default fake data.
func NewTask(overrideDefaults ...*Task) *Task {
	base := &Task{
		ID:         uuid.NewString(),
		BusinessID: "biz_" + gofakeit.LetterN(10),
		Type:       TaskTypeFollowUp,
		Status:     TaskStatusOpen,
		DueAt:      utils.Now().Add(time.Duration(gofakeit.Number(1, 72)) * time.Hour),
		Title:      gofakeit.Sentence(3),
		CreatedAt:  utils.Now(),
		UpdatedAt:  utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessID != "" {
			base.BusinessID = ovr.BusinessID
		}
		if ovr.Type != "" {
			base.Type = ovr.Type
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if !ovr.DueAt.IsZero() {
			base.DueAt = ovr.DueAt
		}
		if ovr.ConversationID != nil {
			base.ConversationID = ovr.ConversationID
		}
	}
	return base
}
