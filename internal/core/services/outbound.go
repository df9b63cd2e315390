package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// SendResult is returned after an operator message was delivered
type SendResult struct {
	ConversationID string  `json:"conversation_id"`
	WAMessageID    string  `json:"wa_message_id,omitempty"`
	MessageID      *string `json:"message_id,omitempty"` // nil when the local write failed
}

// OutboundService sends operator replies: handoff to human first, then
// provider dispatch, then persistence
type OutboundService struct {
	conversations ports.ConversationRepository
	accounts      ports.AccountRepository
	handoff       *HandoffService
	sender        ports.WhatsAppSender
	writer        *MessageWriter
	events        ports.EventPublisher
}

// NewOutboundService creates a new outbound service with dependencies injected
func NewOutboundService(
	conversations ports.ConversationRepository,
	accounts ports.AccountRepository,
	handoff *HandoffService,
	sender ports.WhatsAppSender,
	writer *MessageWriter,
	events ports.EventPublisher,
) *OutboundService {
	return &OutboundService{
		conversations: conversations,
		accounts:      accounts,
		handoff:       handoff,
		sender:        sender,
		writer:        writer,
		events:        events,
	}
}

// Send delivers text to the conversation's phone number.
//
// Errors:
//   - domain.ErrConversationNotFound
//   - domain.ErrAccountNotLinked when the conversation has no account
//   - domain.ErrAccountNotFound when the linked account is gone
//   - domain.ErrAccountInactive when the account was disconnected or its token expired
//   - domain.ErrSendFailed (wrapping the provider error) when delivery fails
func (s *OutboundService) Send(ctx context.Context, orgID, convID, text string, actor *string) (*SendResult, error) {
	conv, err := s.conversations.Get(ctx, orgID, convID)
	if err != nil {
		return nil, err
	}
	if conv.AccountID == nil || *conv.AccountID == "" {
		return nil, domain.ErrAccountNotLinked
	}

	account, err := s.accounts.GetByID(ctx, *conv.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountStatusInactive {
		return nil, domain.ErrAccountInactive
	}

	// The conversation is human-owned before the provider sees the message
	if _, err := s.handoff.OnHumanReply(ctx, conv, actor); err != nil {
		return nil, err
	}

	waID, err := s.sender.SendText(ctx, account.PhoneID, account.AccessToken, conv.PhoneNumber, text)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			slog.Error("WhatsApp token expired, deactivating account",
				"account_id", account.ID,
				"organization_id", account.OrganizationID,
			)
			if derr := s.accounts.Deactivate(ctx, account.ID); derr != nil {
				slog.Error("Failed to deactivate account", "error", derr, "account_id", account.ID)
			}
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}

	result := &SendResult{ConversationID: conv.ID, WAMessageID: waID}

	var waIDPtr *string
	if waID != "" {
		waIDPtr = &waID
	}
	written, err := s.writer.Append(ctx, MessageInput{
		OrganizationID: orgID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionOut,
		WAMessageID:    waIDPtr,
		Text:           &text,
		Type:           domain.MessageTypeText,
	})
	if err != nil {
		// Already delivered; reporting failure would invite a double send
		slog.Error("Message sent but not stored",
			"error", err,
			"conversation_id", conv.ID,
			"wa_message_id", waID,
		)
	} else {
		result.MessageID = &written.Message.ID
	}

	publishEvent(ctx, s.events, domain.NewEvent(domain.EventMessageSent, orgID, map[string]any{
		"conversation_id": conv.ID,
		"wa_message_id":   waID,
		"text":            text,
		"by_user_id":      actor,
	}))

	return result, nil
}
