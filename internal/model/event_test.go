package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapToBaseEventType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected EventType
		found    bool
	}{
		{"bare leads intake", "v1.crm.leads.intake", V1LeadsIntake, true},
		{"leads intake with business suffix", "v1.crm.leads.intake.biz_123", V1LeadsIntake, true},
		{"bare conversations message", "v1.crm.conversations.message", V1ConversationsMessage, true},
		{"conversations message with business suffix", "v1.crm.conversations.message.biz_9", V1ConversationsMessage, true},
		{"unknown subject", "v1.crm.unknown.thing", "", false},
		{"empty", "", "", false},
		{"no dots", "leads", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := MapToBaseEventType(tt.input)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBusinessIDFromSubject(t *testing.T) {
	assert.Equal(t, "biz_123", BusinessIDFromSubject("v1.crm.leads.intake.biz_123"))
	assert.Equal(t, "biz_9", BusinessIDFromSubject("v1.crm.conversations.message.biz_9"))
	assert.Equal(t, "", BusinessIDFromSubject("v1.crm.leads.intake"))
	assert.Equal(t, "", BusinessIDFromSubject("not.a.subject"))
}

func TestEventTypeGetVersion(t *testing.T) {
	assert.Equal(t, "v1", V1LeadsIntake.GetVersion())
	assert.Equal(t, "", EventType("crm.leads.intake").GetVersion())
}
