// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"crm-whatsapp/internal/core/domain"
)

// WhatsAppWebhookRequest is the top-level webhook payload from the Cloud API
// Ref: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/components
type WhatsAppWebhookRequest struct {
	Object string          `json:"object"` // "whatsapp_business_account"
	Entry  []WhatsAppEntry `json:"entry"`
}

// WhatsAppEntry is one business account's batch of changes
type WhatsAppEntry struct {
	ID      string           `json:"id"` // WABA ID
	Changes []WhatsAppChange `json:"changes"`
}

// WhatsAppChange wraps one value update
type WhatsAppChange struct {
	Field string        `json:"field"` // "messages"
	Value WhatsAppValue `json:"value"`
}

// WhatsAppValue carries the channel metadata and the messages it received
type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"` // Delivery/read receipts, ignored
}

// WhatsAppMetadata identifies the receiving number
type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"` // Matches whatsapp_accounts.phone_id
}

// WhatsAppContact is the sender's profile
type WhatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WhatsAppMessage is one inbound message. Raw keeps the original JSON for storage.
type WhatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`        // wamid, used for deduplication
	Timestamp EpochSeconds `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// EpochSeconds is a Unix timestamp sent either as a JSON string or a number
type EpochSeconds string

// UnmarshalJSON accepts "1700000000", 1700000000 and null
func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = EpochSeconds(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*e = EpochSeconds(n.String())
	return nil
}

// Time returns the timestamp in UTC, or nil when it is missing or not a positive integer
func (e EpochSeconds) Time() *time.Time {
	secs, err := strconv.ParseInt(string(e), 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	ts := time.Unix(secs, 0).UTC()
	return &ts
}

// UnmarshalJSON decodes the message and keeps a copy of its raw bytes
func (m *WhatsAppMessage) UnmarshalJSON(data []byte) error {
	type plain WhatsAppMessage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = WhatsAppMessage(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// InboundMessage is the parsed form of a WhatsAppMessage
type InboundMessage struct {
	ID          string
	From        string
	ProfileName string
	Text        *string
	Type        string
	Timestamp   *time.Time
	Raw         json.RawMessage
}

// TextValue returns the text body or ""
func (m *InboundMessage) TextValue() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// InboundChange groups the parsed messages received by one channel
type InboundChange struct {
	PhoneNumberID string
	Messages      []InboundMessage
	Skipped       int // messages dropped for missing sender or id
}

// WebhookBatch is the typed form of a webhook delivery
type WebhookBatch struct {
	EntryCount int
	Changes    []InboundChange
}

// ParseWebhook decodes a webhook body into a WebhookBatch.
// Changes without a phone_number_id or without messages are dropped.
func ParseWebhook(body []byte) (*WebhookBatch, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.NewValidationError("body", "empty payload")
	}

	var req WhatsAppWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, domain.NewValidationError("body", "malformed JSON: "+err.Error())
	}

	batch := &WebhookBatch{EntryCount: len(req.Entry)}
	for _, entry := range req.Entry {
		for _, change := range entry.Changes {
			phoneID := change.Value.Metadata.PhoneNumberID
			if phoneID == "" || len(change.Value.Messages) == 0 {
				continue
			}

			parsed := InboundChange{PhoneNumberID: phoneID}
			for _, msg := range change.Value.Messages {
				if msg.From == "" || msg.ID == "" {
					parsed.Skipped++
					continue
				}
				parsed.Messages = append(parsed.Messages, toInbound(msg, change.Value.Contacts))
			}
			batch.Changes = append(batch.Changes, parsed)
		}
	}

	return batch, nil
}

func toInbound(msg WhatsAppMessage, contacts []WhatsAppContact) InboundMessage {
	in := InboundMessage{
		ID:          msg.ID,
		From:        msg.From,
		ProfileName: profileName(msg.From, contacts),
		Type:        msg.Type,
		Raw:         msg.Raw,
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if msg.Text != nil {
		body := msg.Text.Body
		in.Text = &body
	}
	in.Timestamp = msg.Timestamp.Time()
	return in
}

// profileName prefers the contact whose wa_id matches the sender
func profileName(from string, contacts []WhatsAppContact) string {
	for _, c := range contacts {
		if c.WaID == from {
			return c.Profile.Name
		}
	}
	if len(contacts) == 1 {
		return contacts[0].Profile.Name
	}
	return ""
}
