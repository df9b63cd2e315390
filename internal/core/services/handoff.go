package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// handoffKeywords are matched as lowercase substrings of inbound text
var handoffKeywords = []string{"humano", "atendente", "pessoa", "suporte", "falar com"}

// ShouldHandoff reports whether inbound text asks for a human
func ShouldHandoff(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range handoffKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HandoffService is the conversation state machine. Every ai_enabled change
// goes through transition, which writes the flag and its audit log together.
type HandoffService struct {
	conversations ports.ConversationRepository
	handoffs      ports.HandoffRepository
	events        ports.EventPublisher
}

// NewHandoffService creates a new state machine with dependencies injected
func NewHandoffService(
	conversations ports.ConversationRepository,
	handoffs ports.HandoffRepository,
	events ports.EventPublisher,
) *HandoffService {
	return &HandoffService{
		conversations: conversations,
		handoffs:      handoffs,
		events:        events,
	}
}

// OnInbound hands an AI-owned conversation to a human when the text contains
// a handoff keyword. conv is updated in place when the transition happens.
func (s *HandoffService) OnInbound(ctx context.Context, conv *domain.Conversation, text string) (bool, error) {
	if !conv.AIEnabled || !ShouldHandoff(text) {
		return false, nil
	}
	changed, err := s.transition(ctx, conv, domain.StateHuman, domain.ReasonKeyword, nil)
	if err != nil {
		return false, fmt.Errorf("keyword handoff: %w", err)
	}
	return changed, nil
}

// OnHumanReply forces a conversation to human before an operator's message is dispatched
func (s *HandoffService) OnHumanReply(ctx context.Context, conv *domain.Conversation, actor *string) (bool, error) {
	if !conv.AIEnabled {
		return false, nil
	}
	changed, err := s.transition(ctx, conv, domain.StateHuman, domain.ReasonHumanReply, actor)
	if err != nil {
		return false, fmt.Errorf("human reply handoff: %w", err)
	}
	return changed, nil
}

// Toggle sets AI ownership explicitly. Requesting the current state is a no-op
// that writes nothing. Returns domain.ErrConversationNotFound for unknown ids.
func (s *HandoffService) Toggle(ctx context.Context, orgID, convID string, enabled bool, actor *string) (bool, error) {
	conv, err := s.conversations.Get(ctx, orgID, convID)
	if err != nil {
		return false, err
	}

	target := domain.StateOf(enabled)
	if conv.State() == target {
		slog.Debug("AI toggle ignored, state unchanged",
			"conversation_id", convID,
			"state", target,
		)
		return false, nil
	}

	changed, err := s.transition(ctx, conv, target, domain.ReasonManualToggle, actor)
	if err != nil {
		return false, fmt.Errorf("manual toggle: %w", err)
	}
	return changed, nil
}

func (s *HandoffService) transition(ctx context.Context, conv *domain.Conversation, to domain.HandoffState, reason domain.HandoffReason, actor *string) (bool, error) {
	from := conv.State()
	changed, err := s.handoffs.Transition(ctx, ports.HandoffTransition{
		OrganizationID: conv.OrganizationID,
		ConversationID: conv.ID,
		From:           from,
		To:             to,
		Reason:         reason,
		ByUserID:       actor,
	})
	if err != nil {
		return false, err
	}
	// Either way the stored state is now `to`: a failed compare means another
	// request already made the same move.
	conv.AIEnabled = to == domain.StateAI
	if !changed {
		return false, nil
	}

	slog.Info("Conversation handoff",
		"conversation_id", conv.ID,
		"organization_id", conv.OrganizationID,
		"from", from,
		"to", to,
		"reason", reason,
	)

	publishEvent(ctx, s.events, domain.NewEvent(domain.EventConversationHandoff, conv.OrganizationID, map[string]any{
		"conversation_id": conv.ID,
		"from_state":      from,
		"to_state":        to,
		"reason":          reason,
		"by_user_id":      actor,
	}))

	return true, nil
}
