package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

var (
	_ ports.ContactRepository      = (*ContactStore)(nil)
	_ ports.ConversationRepository = (*ConversationStore)(nil)
	_ ports.HandoffRepository      = (*HandoffStore)(nil)
	_ ports.MessageRepository      = (*MessageStore)(nil)
)

// ============================================================================
// ContactRepository Implementation
// ============================================================================

// ContactStore persists CRM contacts
type ContactStore struct {
	store
}

func NewContactStore(db *sqlx.DB) *ContactStore {
	return &ContactStore{store: newStore(db)}
}

// GetOrCreate returns the contact for (organization, phone), inserting it when absent.
// An existing contact keeps its name.
func (r *ContactStore) GetOrCreate(ctx context.Context, orgID, phone, name, source string) (*domain.Contact, error) {
	query := `
		INSERT INTO contacts (id, organization_id, name, phone, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE phone = phone
	`
	if _, err := r.db.ExecContext(ctx, query, newID(), orgID, name, phone, source, r.now()); err != nil {
		slog.Error("Failed to create contact",
			"error", err,
			"organization_id", orgID,
			"phone", phone,
		)
		return nil, fmt.Errorf("create contact: %w", err)
	}

	var contact domain.Contact
	err := r.db.GetContext(ctx, &contact,
		`SELECT id, organization_id, name, phone, source, created_at FROM contacts WHERE organization_id = ? AND phone = ?`,
		orgID, phone)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &contact, nil
}

// ============================================================================
// ConversationRepository Implementation
// ============================================================================

const conversationColumns = `id, organization_id, account_id, contact_id, phone_number,
	ai_enabled, lead_id, status, last_message_at, created_at`

// ConversationStore persists WhatsApp conversations
type ConversationStore struct {
	store
}

func NewConversationStore(db *sqlx.DB) *ConversationStore {
	return &ConversationStore{store: newStore(db)}
}

// GetOrCreate returns the conversation for (organization, phone).
// A new row takes the seed's AI default; an existing row only gains missing links
// and its ai_enabled is left to the handoff state machine.
func (r *ConversationStore) GetOrCreate(ctx context.Context, seed ports.ConversationSeed) (*domain.Conversation, error) {
	now := r.now()
	query := `
		INSERT INTO whatsapp_conversations (
			id, organization_id, account_id, contact_id, phone_number,
			ai_enabled, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			account_id = COALESCE(account_id, VALUES(account_id)),
			contact_id = COALESCE(contact_id, VALUES(contact_id))
	`
	_, err := r.db.ExecContext(ctx, query,
		newID(),
		seed.OrganizationID,
		nullable(seed.AccountID),
		nullable(seed.ContactID),
		seed.PhoneNumber,
		seed.AIEnabled,
		domain.ConversationStatusOpen,
		now,
		now,
	)
	if err != nil {
		slog.Error("Failed to create conversation",
			"error", err,
			"organization_id", seed.OrganizationID,
			"phone_number", seed.PhoneNumber,
		)
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	var conv domain.Conversation
	err = r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM whatsapp_conversations WHERE organization_id = ? AND phone_number = ?`,
		seed.OrganizationID, seed.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// Get retrieves a conversation scoped to its organization
func (r *ConversationStore) Get(ctx context.Context, orgID, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM whatsapp_conversations WHERE id = ? AND organization_id = ?`,
		id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// TouchLastMessage keeps the conversation list fresh
func (r *ConversationStore) TouchLastMessage(ctx context.Context, orgID, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE whatsapp_conversations SET last_message_at = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		at, r.now(), id, orgID)
	if err != nil {
		slog.Error("Failed to update conversation last message",
			"error", err,
			"conversation_id", id,
		)
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

func (r *ConversationStore) LinkLead(ctx context.Context, orgID, id, leadID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE whatsapp_conversations SET lead_id = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		leadID, r.now(), id, orgID)
	if err != nil {
		return fmt.Errorf("link lead: %w", err)
	}
	return nil
}

// List retrieves conversations ordered by last activity with contact name and latest message
func (r *ConversationStore) List(ctx context.Context, orgID string, limit int) ([]domain.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.phone_number,
			c.ai_enabled,
			c.status,
			c.last_message_at,
			c.contact_id,
			ct.name AS contact_name,
			(SELECT m.text FROM whatsapp_messages m
			  WHERE m.conversation_id = c.id ORDER BY m.created_at DESC LIMIT 1) AS last_message_text,
			(SELECT m.direction FROM whatsapp_messages m
			  WHERE m.conversation_id = c.id ORDER BY m.created_at DESC LIMIT 1) AS last_message_direction
		FROM whatsapp_conversations c
		LEFT JOIN contacts ct ON ct.id = c.contact_id
		WHERE c.organization_id = ?
		ORDER BY c.last_message_at IS NULL, c.last_message_at DESC
		LIMIT ?
	`
	conversations := []domain.ConversationSummary{}
	if err := r.db.SelectContext(ctx, &conversations, query, orgID, limit); err != nil {
		slog.Error("Failed to get conversations",
			"error", err,
			"organization_id", orgID,
		)
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	return conversations, nil
}

// ============================================================================
// HandoffRepository Implementation
// ============================================================================

// HandoffStore owns the ai_enabled column: the flag and its audit row are
// written together or not at all
type HandoffStore struct {
	store
}

func NewHandoffStore(db *sqlx.DB) *HandoffStore {
	return &HandoffStore{store: newStore(db)}
}

// Transition flips ai_enabled from t.From to t.To and logs it in one transaction.
// Returns false without writing when the stored state is no longer t.From.
func (r *HandoffStore) Transition(ctx context.Context, t ports.HandoffTransition) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin handoff: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE whatsapp_conversations
		SET ai_enabled = ?, updated_at = ?
		WHERE id = ? AND organization_id = ? AND ai_enabled = ?
	`, t.To == domain.StateAI, now, t.ConversationID, t.OrganizationID, t.From == domain.StateAI)
	if err != nil {
		slog.Error("Failed to update conversation state",
			"error", err,
			"conversation_id", t.ConversationID,
		)
		return false, fmt.Errorf("update conversation state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update conversation state: %w", err)
	}
	if rows == 0 {
		slog.Debug("Handoff skipped, state already changed",
			"conversation_id", t.ConversationID,
			"expected", t.From,
		)
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO whatsapp_handoffs (id, organization_id, conversation_id, from_state, to_state, reason, by_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, newID(), t.OrganizationID, t.ConversationID, t.From, t.To, t.Reason, t.ByUserID, now)
	if err != nil {
		return false, fmt.Errorf("insert handoff log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit handoff: %w", err)
	}
	return true, nil
}

// ListLogs returns the latest handoffs of the organization with the conversation's phone and contact
func (r *HandoffStore) ListLogs(ctx context.Context, orgID string, limit int) ([]domain.HandoffLogView, error) {
	query := `
		SELECT
			h.id, h.organization_id, h.conversation_id, h.from_state, h.to_state,
			h.reason, h.by_user_id, h.created_at,
			c.phone_number,
			ct.name AS contact_name
		FROM whatsapp_handoffs h
		LEFT JOIN whatsapp_conversations c ON c.id = h.conversation_id
		LEFT JOIN contacts ct ON ct.id = c.contact_id
		WHERE h.organization_id = ?
		ORDER BY h.created_at DESC
		LIMIT ?
	`
	logs := []domain.HandoffLogView{}
	if err := r.db.SelectContext(ctx, &logs, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("list handoff logs: %w", err)
	}
	return logs, nil
}

// ============================================================================
// MessageRepository Implementation
// ============================================================================

// MessageStore persists WhatsApp messages
type MessageStore struct {
	store
}

func NewMessageStore(db *sqlx.DB) *MessageStore {
	return &MessageStore{store: newStore(db)}
}

// Insert stores a message and assigns its ID.
// Returns domain.ErrDuplicate when wa_message_id already exists.
func (r *MessageStore) Insert(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}

	query := `
		INSERT INTO whatsapp_messages (
			id, organization_id, conversation_id, direction, wa_message_id,
			text, type, raw, sent_at, received_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.OrganizationID,
		msg.ConversationID,
		msg.Direction,
		msg.WAMessageID,
		msg.Text,
		msg.Type,
		[]byte(msg.Raw),
		msg.SentAt,
		msg.ReceivedAt,
		msg.CreatedAt,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		slog.Error("Failed to save message",
			"error", err,
			"conversation_id", msg.ConversationID,
		)
		return fmt.Errorf("save message: %w", err)
	}

	slog.Debug("Message saved successfully",
		"conversation_id", msg.ConversationID,
		"direction", msg.Direction,
	)
	return nil
}

// ListByConversation retrieves all messages of a conversation, oldest first
func (r *MessageStore) ListByConversation(ctx context.Context, orgID, conversationID string) ([]domain.Message, error) {
	query := `
		SELECT
			id, organization_id, conversation_id, direction, wa_message_id,
			text, type, COALESCE(raw, '') AS raw, sent_at, received_at, created_at
		FROM whatsapp_messages
		WHERE conversation_id = ? AND organization_id = ?
		ORDER BY created_at ASC
		LIMIT 1000
	`
	messages := []domain.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, orgID); err != nil {
		slog.Error("Failed to get messages",
			"error", err,
			"conversation_id", conversationID,
		)
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return messages, nil
}

// ListLogs returns the latest messages of the organization with conversation phone and contact
func (r *MessageStore) ListLogs(ctx context.Context, orgID string, limit int) ([]domain.MessageLog, error) {
	query := `
		SELECT
			m.id, m.direction, m.text, m.sent_at, m.received_at, m.created_at,
			m.conversation_id,
			c.phone_number,
			ct.name AS contact_name
		FROM whatsapp_messages m
		JOIN whatsapp_conversations c ON c.id = m.conversation_id
		LEFT JOIN contacts ct ON ct.id = c.contact_id
		WHERE m.organization_id = ?
		ORDER BY m.created_at DESC
		LIMIT ?
	`
	logs := []domain.MessageLog{}
	if err := r.db.SelectContext(ctx, &logs, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("list message logs: %w", err)
	}
	return logs, nil
}

// nullable maps "" to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
