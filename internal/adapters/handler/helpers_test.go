package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router        http.Handler
	processor     *MockWebhookProcessor
	tokens        *MockVerifyTokenChecker
	handoff       *MockHandoffToggler
	sender        *MockMessageSender
	inbox         *MockInboxReader
	accounts      *MockAccountManager
	conversions   *MockConversionSender
	ads           *MockAdsIngester
	internalToken string
}

func newTestServer(t *testing.T, appSecret, internalToken string) *testServer {
	t.Helper()
	s := &testServer{
		processor:     new(MockWebhookProcessor),
		tokens:        new(MockVerifyTokenChecker),
		handoff:       new(MockHandoffToggler),
		sender:        new(MockMessageSender),
		inbox:         new(MockInboxReader),
		accounts:      new(MockAccountManager),
		conversions:   new(MockConversionSender),
		ads:           new(MockAdsIngester),
		internalToken: internalToken,
	}
	s.router = NewRouter(Routes{
		Webhook:       NewWebhookHandler(s.processor, s.tokens, appSecret),
		Conversations: NewConversationHandler(s.handoff, s.sender, s.inbox),
		Accounts:      NewAccountHandler(s.accounts),
		Marketing:     NewMarketingHandler(s.conversions, s.ads),
		Dashboard:     NewDashboardHandler(DashboardConfig{Version: "test"}),
		InternalToken: internalToken,
	})
	t.Cleanup(func() {
		s.processor.AssertExpectations(t)
		s.tokens.AssertExpectations(t)
		s.handoff.AssertExpectations(t)
		s.sender.AssertExpectations(t)
		s.inbox.AssertExpectations(t)
		s.accounts.AssertExpectations(t)
		s.conversions.AssertExpectations(t)
		s.ads.AssertExpectations(t)
	})
	return s
}

// do sends a request; org and user headers are set when non-empty
func (s *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func orgHeaders() map[string]string {
	return map[string]string{
		HeaderOrganizationID: "org-1",
		HeaderUserID:         "user-1",
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func strPtr(s string) *string {
	return &s
}
