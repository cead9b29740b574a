package model

import (
	"strings"
	"time"
)

// EventType represents different types of intake events
type EventType string

// Version 1 intake event types. Subjects on the wire carry a trailing
// business ID segment (e.g. "v1.crm.leads.intake.<businessID>").
const (
	V1LeadsIntake          EventType = "v1.crm.leads.intake"
	V1ConversationsMessage EventType = "v1.crm.conversations.message"
)

// MapToBaseEventType attempts to map an input subject (potentially carrying a
// trailing business ID segment) back to a known base EventType constant.
// It returns the mapped EventType and true if successful, or an empty
// EventType and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case V1LeadsIntake, V1ConversationsMessage:
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	switch base := EventType(input[:lastDotIndex]); base {
	case V1LeadsIntake, V1ConversationsMessage:
		return base, true
	default:
		return "", false
	}
}

// GetVersion extracts the version from an event type.
// Returns the version string (e.g., "v1") or an empty string if no version
// prefix is present.
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) > 0 && strings.HasPrefix(parts[0], "v") {
		return parts[0]
	}
	return ""
}

// BusinessIDFromSubject extracts the trailing business ID segment from a
// fully qualified subject. Returns an empty string if the subject is a bare
// base type.
func BusinessIDFromSubject(subject string) string {
	if _, ok := MapToBaseEventType(subject); !ok {
		return ""
	}
	if EventType(subject) == V1LeadsIntake || EventType(subject) == V1ConversationsMessage {
		return ""
	}
	lastDotIndex := strings.LastIndex(subject, ".")
	if lastDotIndex < 0 || lastDotIndex == len(subject)-1 {
		return ""
	}
	return subject[lastDotIndex+1:]
}

// MessageMetadata carries delivery information for a consumed intake event.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	MessageID        string
	MessageSubject   string
	BusinessID       string
}
