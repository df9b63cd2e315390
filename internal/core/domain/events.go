package domain

import "time"

// Event types published to the broker and the operator hub
const (
	EventMessageReceived     = "whatsapp.message.received"
	EventMessageSent         = "whatsapp.message.sent"
	EventConversationHandoff = "whatsapp.conversation.handoff"
	EventConversionAttempted = "conversion.attempted"
)

// Event is a domain event fanned out to external consumers
type Event struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	Data           any       `json:"data"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType, orgID string, data any) Event {
	return Event{
		Type:           eventType,
		OrganizationID: orgID,
		OccurredAt:     time.Now().UTC(),
		Data:           data,
	}
}
