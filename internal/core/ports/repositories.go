// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"crm-whatsapp/internal/core/domain"
)

// WebhookRepository handles persistence of webhook audit logs
type WebhookRepository interface {
	// SaveLog persists a webhook delivery and assigns log.ID
	SaveLog(ctx context.Context, log *domain.WebhookLog) error

	// UpdateStatus moves a log through its lifecycle: pending -> processed/failed
	UpdateStatus(ctx context.Context, id string, status string, errorLog *string) error

	// PurgeProcessedBefore deletes non-pending logs older than the cutoff
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AccountRepository manages connected WhatsApp Business numbers
type AccountRepository interface {
	// FindByPhoneID returns domain.ErrAccountNotFound when no account owns the phone_number_id
	FindByPhoneID(ctx context.Context, phoneID string) (*domain.Account, error)

	// GetByID returns domain.ErrAccountNotFound when missing
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// VerifyTokenExists backs the webhook verification handshake
	VerifyTokenExists(ctx context.Context, token string) (bool, error)

	// Upsert inserts or refreshes an account keyed by (organization, phone number)
	Upsert(ctx context.Context, account *domain.Account) error

	// Deactivate flips a single account to inactive (token expired)
	Deactivate(ctx context.Context, id string) error

	// DeactivateAll flips every account of the organization to inactive
	DeactivateAll(ctx context.Context, orgID string) (int64, error)

	ListByOrganization(ctx context.Context, orgID string) ([]domain.Account, error)
}

// ContactRepository resolves contacts by (organization, phone)
type ContactRepository interface {
	// GetOrCreate returns the existing contact or inserts one with the given name.
	// Concurrent creators converge on the same row through the unique key.
	GetOrCreate(ctx context.Context, orgID, phone, name, source string) (*domain.Contact, error)
}

// ConversationSeed carries the values used when a conversation is first created
type ConversationSeed struct {
	OrganizationID string
	AccountID      string
	ContactID      string
	PhoneNumber    string
	AIEnabled      bool
}

// ConversationRepository handles conversation/thread management
type ConversationRepository interface {
	// GetOrCreate returns the conversation for (organization, phone), creating it from seed
	GetOrCreate(ctx context.Context, seed ConversationSeed) (*domain.Conversation, error)

	// Get returns domain.ErrConversationNotFound when missing or owned by another organization
	Get(ctx context.Context, orgID, id string) (*domain.Conversation, error)

	// TouchLastMessage refreshes last_message_at
	TouchLastMessage(ctx context.Context, orgID, id string, at time.Time) error

	// LinkLead sets lead_id
	LinkLead(ctx context.Context, orgID, id, leadID string) error

	List(ctx context.Context, orgID string, limit int) ([]domain.ConversationSummary, error)
}

// HandoffTransition is one guarded ai_enabled change
type HandoffTransition struct {
	OrganizationID string
	ConversationID string
	From           domain.HandoffState
	To             domain.HandoffState
	Reason         domain.HandoffReason
	ByUserID       *string
}

// HandoffRepository is the only writer of conversations.ai_enabled
type HandoffRepository interface {
	// Transition updates ai_enabled from t.From to t.To and appends the audit
	// log in one transaction. It returns false, with nothing written, when the
	// stored state was no longer t.From.
	Transition(ctx context.Context, t HandoffTransition) (bool, error)

	ListLogs(ctx context.Context, orgID string, limit int) ([]domain.HandoffLogView, error)
}

// MessageRepository handles persistence of chat messages
type MessageRepository interface {
	// Insert returns domain.ErrDuplicate when wa_message_id already exists
	Insert(ctx context.Context, msg *domain.Message) error

	ListByConversation(ctx context.Context, orgID, conversationID string) ([]domain.Message, error)

	ListLogs(ctx context.Context, orgID string, limit int) ([]domain.MessageLog, error)
}

// CRMRepository writes the lead and deal rows linked to WhatsApp conversations
type CRMRepository interface {
	CreateLead(ctx context.Context, lead *domain.Lead) error
	HasDealWithTag(ctx context.Context, orgID, contactID, tag string) (bool, error)
	CreateDeal(ctx context.Context, deal *domain.Deal) error
}

// DedupRepository handles deduplication of webhook events using cache
type DedupRepository interface {
	// IsDuplicate checks if an event ID has already been processed
	IsDuplicate(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed marks an event as processed with a TTL
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// ConversionRepository records funnel events and conversion attempts
type ConversionRepository interface {
	InsertFunnelEvent(ctx context.Context, ev *domain.FunnelEvent) error

	// UpsertConversionEvent keys on (platform, payload_hash) so retries overwrite the attempt
	UpsertConversionEvent(ctx context.Context, ev *domain.ConversionEvent) error
}

// AdsWriter upserts ad graph entities and returns their ids
type AdsWriter interface {
	UpsertAccount(ctx context.Context, a *domain.AdAccount) (string, error)
	UpsertCampaign(ctx context.Context, c *domain.AdCampaign) (string, error)
	UpsertAdSet(ctx context.Context, s *domain.AdSet) (string, error)
	UpsertCreative(ctx context.Context, c *domain.AdCreative) (string, error)
	UpsertDailyMetric(ctx context.Context, m *domain.AdDailyMetric) error
}

// AdsRepository runs an ingest batch atomically
type AdsRepository interface {
	// WithinTx commits when fn returns nil and rolls back otherwise
	WithinTx(ctx context.Context, fn func(ctx context.Context, w AdsWriter) error) error
}
