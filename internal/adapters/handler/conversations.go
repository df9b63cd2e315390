package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crm-whatsapp/internal/adapters/dto"
	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/services"
)

// maxJSONBody caps operator and integration request bodies
const maxJSONBody = 1 << 20

// HandoffToggler changes conversation ownership on operator request
type HandoffToggler interface {
	Toggle(ctx context.Context, orgID, convID string, enabled bool, actor *string) (bool, error)
}

// MessageSender delivers operator replies
type MessageSender interface {
	Send(ctx context.Context, orgID, convID, text string, actor *string) (*services.SendResult, error)
}

// InboxReader serves the operator read views
type InboxReader interface {
	Conversations(ctx context.Context, orgID string) ([]domain.ConversationSummary, error)
	Messages(ctx context.Context, orgID, convID string) ([]domain.Message, error)
	HandoffLogs(ctx context.Context, orgID string) ([]domain.HandoffLogView, error)
	MessageLogs(ctx context.Context, orgID string) ([]domain.MessageLog, error)
}

// ConversationHandler serves the operator inbox: ownership toggle, replies
// and read views. All routes run behind RequireOrganization.
type ConversationHandler struct {
	handoff HandoffToggler
	sender  MessageSender
	inbox   InboxReader
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(handoff HandoffToggler, sender MessageSender, inbox InboxReader) *ConversationHandler {
	return &ConversationHandler{
		handoff: handoff,
		sender:  sender,
		inbox:   inbox,
	}
}

// ToggleAI switches a conversation between AI and human ownership
// PATCH /api/whatsapp/conversations/{id}/ai
// Body: {"enabled": false}
func (h *ConversationHandler) ToggleAI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := organizationID(ctx)
	convID := chi.URLParam(r, "id")

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	enabled, err := dto.ParseToggleAI(ctx, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	changed, err := h.handoff.Toggle(ctx, orgID, convID, enabled, actorID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(map[string]interface{}{
		"conversation_id": convID,
		"ai_enabled":      enabled,
		"changed":         changed,
	}))
}

// SendMessage sends an operator reply; the conversation becomes human-owned first
// POST /api/whatsapp/send
// Body: {"conversationId": "...", "text": "Olá!"}
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := dto.ParseSendMessage(ctx, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.sender.Send(ctx, organizationID(ctx), req.ConversationID, req.Text, actorID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(result))
}

// ListConversations returns the latest conversations
// GET /api/whatsapp/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.inbox.Conversations(r.Context(), organizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(nonNil(conversations)))
}

// ListMessages returns a conversation's messages oldest first
// GET /api/whatsapp/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	messages, err := h.inbox.Messages(r.Context(), organizationID(r.Context()), convID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(nonNil(messages)))
}

// ListHandoffLogs returns the latest ownership transitions
// GET /api/whatsapp/logs
func (h *ConversationHandler) ListHandoffLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.inbox.HandoffLogs(r.Context(), organizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(nonNil(logs)))
}

// ListMessageLogs returns the latest messages across conversations
// GET /api/whatsapp/messages/logs
func (h *ConversationHandler) ListMessageLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.inbox.MessageLogs(r.Context(), organizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(nonNil(logs)))
}

// readBody reads a capped JSON body
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		slog.Warn("Failed to read request body", "error", err, "path", r.URL.Path)
		return nil, domain.NewValidationError("body", "unreadable body")
	}
	return body, nil
}

// nonNil makes empty lists encode as [] instead of null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
