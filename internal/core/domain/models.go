// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"encoding/json"
	"time"
)

// WebhookLog represents the audit trail for incoming webhook deliveries
type WebhookLog struct {
	ID          string          `json:"id" db:"id"`
	Platform    string          `json:"platform" db:"platform"`         // "whatsapp"
	PayloadJSON json.RawMessage `json:"payload_json" db:"payload_json"` // Raw request body
	Status      string          `json:"status" db:"status"`             // "pending", "processed", "failed"
	ErrorLog    *string         `json:"error_log,omitempty" db:"error_log"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// WebhookStatus constants for lifecycle management
const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// Account is a connected WhatsApp Business phone number
// Never hard-deleted: disconnect flips Status to inactive
type Account struct {
	ID                string    `json:"id" db:"id"`
	OrganizationID    string    `json:"organization_id" db:"organization_id"`
	PhoneNumber       string    `json:"phone_number" db:"phone_number"` // Display number
	PhoneID           string    `json:"phone_id" db:"phone_id"`         // Provider phone_number_id
	BusinessAccountID *string   `json:"waba_business_account_id,omitempty" db:"waba_business_account_id"`
	AccessToken       string    `json:"-" db:"access_token"` // Never expose in JSON
	VerifyToken       string    `json:"-" db:"verify_token"`
	Status            string    `json:"status" db:"status"`
	AIEnabled         bool      `json:"ai_enabled" db:"ai_enabled"` // Default for new conversations
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// AccountStatus constants
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// Contact is a person identified by phone number within an organization
type Contact struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Phone          string    `json:"phone" db:"phone"`
	Source         string    `json:"source" db:"source"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ContactSourceWhatsApp marks contacts, leads and deals created by this integration
const ContactSourceWhatsApp = "whatsapp"

// Conversation is the message thread with one phone number inside an organization
// AIEnabled is only ever changed through the handoff state machine
type Conversation struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	AccountID      *string    `json:"account_id,omitempty" db:"account_id"`
	ContactID      *string    `json:"contact_id,omitempty" db:"contact_id"`
	PhoneNumber    string     `json:"phone_number" db:"phone_number"`
	AIEnabled      bool       `json:"ai_enabled" db:"ai_enabled"`
	LeadID         *string    `json:"lead_id,omitempty" db:"lead_id"`
	Status         string     `json:"status" db:"status"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ConversationStatusOpen is the status of newly created conversations
const ConversationStatusOpen = "open"

// State returns the handoff state name of the conversation
func (c *Conversation) State() HandoffState {
	return StateOf(c.AIEnabled)
}

// ConversationSummary is a conversation row joined with its contact and latest message
type ConversationSummary struct {
	ID                   string     `json:"id" db:"id"`
	PhoneNumber          string     `json:"phone_number" db:"phone_number"`
	AIEnabled            bool       `json:"ai_enabled" db:"ai_enabled"`
	Status               string     `json:"status" db:"status"`
	LastMessageAt        *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	ContactID            *string    `json:"contact_id,omitempty" db:"contact_id"`
	ContactName          *string    `json:"contact_name,omitempty" db:"contact_name"`
	LastMessageText      *string    `json:"last_message_text,omitempty" db:"last_message_text"`
	LastMessageDirection *string    `json:"last_message_direction,omitempty" db:"last_message_direction"`
}

// Message is one inbound or outbound unit of communication
type Message struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	Direction      string          `json:"direction" db:"direction"` // "in", "out"
	WAMessageID    *string         `json:"wa_message_id,omitempty" db:"wa_message_id"`
	Text           *string         `json:"text,omitempty" db:"text"`
	Type           string          `json:"type" db:"type"`
	Raw            json.RawMessage `json:"raw,omitempty" db:"raw"`
	SentAt         *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	ReceivedAt     *time.Time      `json:"received_at,omitempty" db:"received_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Direction constants
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MessageTypeText is the default message type
const MessageTypeText = "text"

// MessageLog is a message row joined with its conversation for the logs view
type MessageLog struct {
	ID             string     `json:"id" db:"id"`
	Direction      string     `json:"direction" db:"direction"`
	Text           *string    `json:"text,omitempty" db:"text"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ReceivedAt     *time.Time `json:"received_at,omitempty" db:"received_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	PhoneNumber    string     `json:"phone_number" db:"phone_number"`
	ContactName    *string    `json:"contact_name,omitempty" db:"contact_name"`
}

// HandoffState is the ownership state of a conversation
type HandoffState string

// HandoffState values
const (
	StateAI    HandoffState = "ai"
	StateHuman HandoffState = "human"
)

// StateOf maps the ai_enabled flag to its state name
func StateOf(aiEnabled bool) HandoffState {
	if aiEnabled {
		return StateAI
	}
	return StateHuman
}

// HandoffReason explains why a conversation changed owner
type HandoffReason string

// HandoffReason values
const (
	ReasonKeyword      HandoffReason = "keyword"
	ReasonHumanReply   HandoffReason = "human_reply"
	ReasonManualToggle HandoffReason = "manual_toggle"
)

// HandoffLog is the immutable audit record of one ownership transition
type HandoffLog struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	ConversationID string        `json:"conversation_id" db:"conversation_id"`
	FromState      HandoffState  `json:"from_state" db:"from_state"`
	ToState        HandoffState  `json:"to_state" db:"to_state"`
	Reason         HandoffReason `json:"reason" db:"reason"`
	ByUserID       *string       `json:"by_user_id,omitempty" db:"by_user_id"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// HandoffLogView is a handoff row joined with its conversation for the logs view
type HandoffLogView struct {
	HandoffLog
	PhoneNumber *string `json:"phone_number,omitempty" db:"phone_number"`
	ContactName *string `json:"contact_name,omitempty" db:"contact_name"`
}

// Lead is the CRM lead linked to a conversation on first contact
type Lead struct {
	ID                   string    `json:"id" db:"id"`
	OrganizationID       string    `json:"organization_id" db:"organization_id"`
	Name                 string    `json:"name" db:"name"`
	Source               string    `json:"source" db:"source"`
	ConvertedToContactID *string   `json:"converted_to_contact_id,omitempty" db:"converted_to_contact_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// Deal is the CRM deal opened for a WhatsApp contact
type Deal struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Title          string    `json:"title" db:"title"`
	ContactID      string    `json:"contact_id" db:"contact_id"`
	Tags           string    `json:"tags" db:"tags"` // JSON array
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
