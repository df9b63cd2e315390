package services

import (
	"context"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// Read view limits
const (
	ConversationListLimit = 50
	HandoffLogLimit       = 100
	MessageLogLimit       = 200
)

// InboxService serves the operator read views
type InboxService struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	handoffs      ports.HandoffRepository
}

// NewInboxService creates a new inbox service
func NewInboxService(conversations ports.ConversationRepository, messages ports.MessageRepository, handoffs ports.HandoffRepository) *InboxService {
	return &InboxService{
		conversations: conversations,
		messages:      messages,
		handoffs:      handoffs,
	}
}

// Conversations returns the latest conversations by last_message_at
func (s *InboxService) Conversations(ctx context.Context, orgID string) ([]domain.ConversationSummary, error) {
	return s.conversations.List(ctx, orgID, ConversationListLimit)
}

// Messages returns a conversation's messages oldest first.
// Returns domain.ErrConversationNotFound when the conversation is not in the organization.
func (s *InboxService) Messages(ctx context.Context, orgID, convID string) ([]domain.Message, error) {
	if _, err := s.conversations.Get(ctx, orgID, convID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, orgID, convID)
}

func (s *InboxService) HandoffLogs(ctx context.Context, orgID string) ([]domain.HandoffLogView, error) {
	return s.handoffs.ListLogs(ctx, orgID, HandoffLogLimit)
}

func (s *InboxService) MessageLogs(ctx context.Context, orgID string) ([]domain.MessageLog, error) {
	return s.messages.ListLogs(ctx, orgID, MessageLogLimit)
}
