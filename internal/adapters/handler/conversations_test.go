package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/services"
)

func TestInboxRoutes_RequireOrganization(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := s.do(http.MethodGet, "/api/whatsapp/conversations", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// Toggle
// ============================================================================

func TestToggleAI_Success(t *testing.T) {
	s := newTestServer(t, "", "")
	s.handoff.On("Toggle", mock.Anything, "org-1", "conv-1", false, strPtr("user-1")).Return(true, nil)

	rec := s.do(http.MethodPatch, "/api/whatsapp/conversations/conv-1/ai", `{"enabled":false}`, orgHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"conversation_id":"conv-1","ai_enabled":false,"changed":true}`, string(env.Data))
}

func TestToggleAI_WithoutUserIsSystemActor(t *testing.T) {
	s := newTestServer(t, "", "")
	s.handoff.On("Toggle", mock.Anything, "org-1", "conv-1", true, (*string)(nil)).Return(false, nil)

	rec := s.do(http.MethodPatch, "/api/whatsapp/conversations/conv-1/ai", `{"enabled":true}`,
		map[string]string{HeaderOrganizationID: "org-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"changed":false`)
}

func TestToggleAI_RequiresEnabled(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := s.do(http.MethodPatch, "/api/whatsapp/conversations/conv-1/ai", `{}`, orgHeaders())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Invalid payload", env.Message)
	assert.Contains(t, string(env.Data), `"enabled"`)
}

func TestToggleAI_NotFound(t *testing.T) {
	s := newTestServer(t, "", "")
	s.handoff.On("Toggle", mock.Anything, "org-1", "missing", true, mock.Anything).
		Return(false, domain.ErrConversationNotFound)

	rec := s.do(http.MethodPatch, "/api/whatsapp/conversations/missing/ai", `{"enabled":true}`, orgHeaders())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Send
// ============================================================================

func TestSendMessage_Success(t *testing.T) {
	s := newTestServer(t, "", "")
	msgID := "msg-1"
	s.sender.On("Send", mock.Anything, "org-1", "conv-1", "Olá!", strPtr("user-1")).
		Return(&services.SendResult{ConversationID: "conv-1", WAMessageID: "wamid.OUT", MessageID: &msgID}, nil)

	rec := s.do(http.MethodPost, "/api/whatsapp/send", `{"conversationId":"conv-1","text":"Olá!"}`, orgHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"conversation_id":"conv-1","wa_message_id":"wamid.OUT","message_id":"msg-1"}`, string(env.Data))
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"conversation missing", domain.ErrConversationNotFound, http.StatusNotFound},
		{"account not linked", domain.ErrAccountNotLinked, http.StatusBadRequest},
		{"account missing", domain.ErrAccountNotFound, http.StatusNotFound},
		{"account inactive", domain.ErrAccountInactive, http.StatusBadRequest},
		{"token expired", fmt.Errorf("%w: %w", domain.ErrSendFailed, domain.ErrTokenExpired), http.StatusBadRequest},
		{"rate limited", fmt.Errorf("%w: %w", domain.ErrSendFailed, domain.ErrRateLimited), http.StatusTooManyRequests},
		{"permission", fmt.Errorf("%w: %w", domain.ErrSendFailed, domain.ErrPermissionDenied), http.StatusForbidden},
		{"provider failure", fmt.Errorf("%w: %w", domain.ErrSendFailed, errors.New("graph api error 500")), http.StatusBadGateway},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "", "")
			s.sender.On("Send", mock.Anything, "org-1", "conv-1", "hi", mock.Anything).Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/whatsapp/send", `{"conversationId":"conv-1","text":"hi"}`, orgHeaders())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, decodeEnvelope(t, rec).Code)
		})
	}
}

func TestSendMessage_InvalidPayload(t *testing.T) {
	s := newTestServer(t, "", "")

	rec := s.do(http.MethodPost, "/api/whatsapp/send", `{"conversationId":"conv-1"}`, orgHeaders())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// Read views
// ============================================================================

func TestListConversations_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, "", "")
	s.inbox.On("Conversations", mock.Anything, "org-1").Return(nil, nil)

	rec := s.do(http.MethodGet, "/api/whatsapp/conversations", "", orgHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
}

func TestListMessages_NotFound(t *testing.T) {
	s := newTestServer(t, "", "")
	s.inbox.On("Messages", mock.Anything, "org-1", "conv-9").Return(nil, domain.ErrConversationNotFound)

	rec := s.do(http.MethodGet, "/api/whatsapp/conversations/conv-9/messages", "", orgHeaders())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLogs(t *testing.T) {
	s := newTestServer(t, "", "")
	s.inbox.On("HandoffLogs", mock.Anything, "org-1").Return([]domain.HandoffLogView{{
		HandoffLog: domain.HandoffLog{ID: "h-1", FromState: domain.StateAI, ToState: domain.StateHuman, Reason: domain.ReasonKeyword},
	}}, nil)
	s.inbox.On("MessageLogs", mock.Anything, "org-1").Return([]domain.MessageLog{{ID: "m-1", Direction: domain.DirectionIn}}, nil)

	rec := s.do(http.MethodGet, "/api/whatsapp/logs", "", orgHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"keyword"`)

	rec = s.do(http.MethodGet, "/api/whatsapp/messages/logs", "", orgHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"m-1"`)
}

// ============================================================================
// Accounts
// ============================================================================

func TestConnectAccount(t *testing.T) {
	s := newTestServer(t, "", "")
	s.accounts.On("Connect", mock.Anything, mock.MatchedBy(func(in services.ConnectAccountInput) bool {
		return in.OrganizationID == "org-1" && in.PhoneID == "123" && in.AccessToken == "EAAG" && in.AIEnabled == nil
	})).Return(&domain.Account{
		ID:          "acc-1",
		PhoneID:     "123",
		AccessToken: "EAAG",
		VerifyToken: "abc123",
		Status:      domain.AccountStatusActive,
		AIEnabled:   true,
	}, nil)

	rec := s.do(http.MethodPost, "/api/whatsapp/accounts",
		`{"phone_number":"+5511999990000","phone_id":"123","access_token":"EAAG"}`, orgHeaders())

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"verify_token":"abc123"`)
	assert.NotContains(t, body, "EAAG")
}

func TestDisconnectAndListAccounts(t *testing.T) {
	s := newTestServer(t, "", "")
	s.accounts.On("Disconnect", mock.Anything, "org-1").Return(int64(2), nil)
	s.accounts.On("List", mock.Anything, "org-1").Return([]domain.Account{{ID: "acc-1", AccessToken: "secret"}}, nil)

	rec := s.do(http.MethodDelete, "/api/whatsapp/accounts", "", orgHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deactivated":2}`, string(decodeEnvelope(t, rec).Data))

	rec = s.do(http.MethodGet, "/api/whatsapp/accounts", "", orgHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
