package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// DefaultDedupTTL is how long a processed provider message id stays in the dedup cache
const DefaultDedupTTL = 24 * time.Hour

// MessageInput describes one message to append to a conversation
type MessageInput struct {
	OrganizationID string
	ConversationID string
	Direction      string
	WAMessageID    *string
	Text           *string
	Type           string
	Raw            json.RawMessage
	Timestamp      *time.Time // provider timestamp; now when absent
}

// WriteResult reports what Append did
type WriteResult struct {
	Message   *domain.Message
	Duplicate bool
}

// MessageWriter appends messages with provider-id dedup and keeps
// last_message_at fresh
type MessageWriter struct {
	messages      ports.MessageRepository
	conversations ports.ConversationRepository
	dedup         ports.DedupRepository
	dedupTTL      time.Duration
	now           func() time.Time
}

// NewMessageWriter creates a new writer. dedup may be nil, in which case the
// unique index on wa_message_id is the only guard.
func NewMessageWriter(
	messages ports.MessageRepository,
	conversations ports.ConversationRepository,
	dedup ports.DedupRepository,
	dedupTTL time.Duration,
) *MessageWriter {
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &MessageWriter{
		messages:      messages,
		conversations: conversations,
		dedup:         dedup,
		dedupTTL:      dedupTTL,
		now:           time.Now,
	}
}

// Append stores the message unless its provider id was already stored, then
// refreshes the conversation's last_message_at in both cases
func (w *MessageWriter) Append(ctx context.Context, in MessageInput) (*WriteResult, error) {
	at := w.now().UTC()
	if in.Timestamp != nil {
		at = in.Timestamp.UTC()
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	msg := &domain.Message{
		OrganizationID: in.OrganizationID,
		ConversationID: in.ConversationID,
		Direction:      in.Direction,
		WAMessageID:    in.WAMessageID,
		Text:           in.Text,
		Type:           msgType,
		Raw:            in.Raw,
		CreatedAt:      w.now().UTC(),
	}
	if in.Direction == domain.DirectionOut {
		msg.SentAt = &at
	} else {
		msg.ReceivedAt = &at
	}

	result := &WriteResult{Message: msg}
	waID := ""
	if in.WAMessageID != nil {
		waID = *in.WAMessageID
	}

	// ========================================================================
	// Step 1: Fast-path dedup against the cache (fails open)
	// ========================================================================
	if waID != "" && w.dedup != nil {
		isDup, err := w.dedup.IsDuplicate(ctx, waID)
		if err != nil {
			slog.Warn("Dedup check failed, falling back to unique index",
				"error", err,
				"wa_message_id", waID,
			)
		} else if isDup {
			result.Duplicate = true
		}
	}

	// ========================================================================
	// Step 2: Insert; a unique-key conflict on wa_message_id is a benign duplicate
	// ========================================================================
	if !result.Duplicate {
		err := w.messages.Insert(ctx, msg)
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			result.Duplicate = true
		case err != nil:
			return nil, fmt.Errorf("save message: %w", err)
		default:
			if waID != "" && w.dedup != nil {
				if err := w.dedup.MarkProcessed(ctx, waID, w.dedupTTL); err != nil {
					// Message already saved, the unique index still guards replays
					slog.Warn("Failed to mark message in dedup cache",
						"error", err,
						"wa_message_id", waID,
					)
				}
			}
		}
	}

	if result.Duplicate {
		slog.Info("Duplicate message detected, skipping insert",
			"wa_message_id", waID,
			"conversation_id", in.ConversationID,
		)
	}

	// ========================================================================
	// Step 3: Refresh conversation freshness
	// ========================================================================
	if err := w.conversations.TouchLastMessage(ctx, in.OrganizationID, in.ConversationID, at); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return result, nil
}

// Seen reports whether the provider message id is already in the dedup cache.
// Cache errors count as not seen; the unique index still guards the insert.
func (w *MessageWriter) Seen(ctx context.Context, waMessageID string) bool {
	if waMessageID == "" || w.dedup == nil {
		return false
	}
	isDup, err := w.dedup.IsDuplicate(ctx, waMessageID)
	if err != nil {
		slog.Warn("Dedup check failed", "error", err, "wa_message_id", waMessageID)
		return false
	}
	return isDup
}

// Touch refreshes last_message_at without storing anything
func (w *MessageWriter) Touch(ctx context.Context, orgID, conversationID string, ts *time.Time) error {
	at := w.now().UTC()
	if ts != nil {
		at = ts.UTC()
	}
	if err := w.conversations.TouchLastMessage(ctx, orgID, conversationID, at); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
