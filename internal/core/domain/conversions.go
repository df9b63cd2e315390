package domain

import (
	"encoding/json"
	"time"
)

// ConversionEventType is the funnel stage being reported to an ad platform
type ConversionEventType string

// ConversionEventType values
const (
	EventLead        ConversionEventType = "lead"
	EventMQL         ConversionEventType = "mql"
	EventOpportunity ConversionEventType = "opportunity"
	EventSale        ConversionEventType = "sale"
)

// ConversionStatus is the outcome of one conversion dispatch
type ConversionStatus string

// ConversionStatus values
// StatusPending is reserved for callers that record before dispatching
const (
	StatusSent    ConversionStatus = "sent"
	StatusSkipped ConversionStatus = "skipped"
	StatusPending ConversionStatus = "pending"
	StatusError   ConversionStatus = "error"
)

// DefaultCurrency is used when a conversion omits its currency
const DefaultCurrency = "BRL"

// ConversionRequest is a parsed conversion to be reported to Meta or Google
type ConversionRequest struct {
	OrganizationID string
	ProjectID      string
	LeadID         *string
	EventType      ConversionEventType
	EventTime      *time.Time
	Amount         *float64
	Currency       *string
	ClickID        *string
	GCLID          *string
	FBCLID         *string
	Email          *string
	Phone          *string
}

// OccurredAt returns the event time, or now when absent
func (r *ConversionRequest) OccurredAt(now time.Time) time.Time {
	if r.EventTime != nil {
		return *r.EventTime
	}
	return now
}

// CurrencyOrDefault returns the currency, or DefaultCurrency when absent
func (r *ConversionRequest) CurrencyOrDefault() string {
	if r.Currency != nil && *r.Currency != "" {
		return *r.Currency
	}
	return DefaultCurrency
}

// AmountOrZero returns the amount, or 0 when absent
func (r *ConversionRequest) AmountOrZero() float64 {
	if r.Amount != nil {
		return *r.Amount
	}
	return 0
}

// MetaCredentials are the per-call Conversions API credentials
type MetaCredentials struct {
	PixelID     string
	AccessToken string
}

// Complete reports whether every required credential is present
func (c MetaCredentials) Complete() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// GoogleCredentials are the per-call Google Ads credentials
type GoogleCredentials struct {
	CustomerID         string
	ConversionActionID string
	DeveloperToken     string
	LoginCustomerID    string // optional
	AccessToken        string
}

// Complete reports whether every required credential is present
func (c GoogleCredentials) Complete() bool {
	return c.CustomerID != "" && c.ConversionActionID != "" && c.DeveloperToken != "" && c.AccessToken != ""
}

// ProviderResponse is the raw answer of an ad platform
type ProviderResponse struct {
	StatusCode int
	Body       json.RawMessage // nil when the body was empty
}

// OK reports a 2xx status
func (r *ProviderResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ConversionResult is returned to callers of the conversion endpoints
type ConversionResult struct {
	Status      ConversionStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Response    json.RawMessage  `json:"response,omitempty"`
	PayloadHash string           `json:"payload_hash"`
}

// FunnelEvent is the append-only record written before every dispatch attempt
type FunnelEvent struct {
	ID             string              `db:"id"`
	OrganizationID string              `db:"organization_id"`
	ProjectID      string              `db:"project_id"`
	LeadID         *string             `db:"lead_id"`
	EventType      ConversionEventType `db:"event_type"`
	Platform       Platform            `db:"platform"`
	ClickID        *string             `db:"click_id"`
	GCLID          *string             `db:"gclid"`
	FBCLID         *string             `db:"fbclid"`
	Amount         *float64            `db:"amount"`
	Currency       *string             `db:"currency"`
	OccurredAt     time.Time           `db:"occurred_at"`
}

// ConversionEvent is the dispatch attempt keyed by (platform, payload hash)
type ConversionEvent struct {
	ID               string              `db:"id"`
	OrganizationID   string              `db:"organization_id"`
	ProjectID        string              `db:"project_id"`
	LeadID           *string             `db:"lead_id"`
	EventType        ConversionEventType `db:"event_type"`
	Platform         Platform            `db:"platform"`
	PayloadHash      string              `db:"payload_hash"`
	Status           ConversionStatus    `db:"status"`
	ExternalResponse json.RawMessage     `db:"external_response"`
	AttemptedAt      time.Time           `db:"attempted_at"`
}
