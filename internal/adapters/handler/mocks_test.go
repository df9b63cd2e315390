package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/services"
)

// ============================================================================
// Mock Services
// ============================================================================

type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) ProcessWebhook(ctx context.Context, payload []byte) (*services.WebhookSummary, error) {
	args := m.Called(ctx, payload)
	if result := args.Get(0); result != nil {
		return result.(*services.WebhookSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockVerifyTokenChecker struct {
	mock.Mock
}

func (m *MockVerifyTokenChecker) VerifyToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

type MockHandoffToggler struct {
	mock.Mock
}

func (m *MockHandoffToggler) Toggle(ctx context.Context, orgID, convID string, enabled bool, actor *string) (bool, error) {
	args := m.Called(ctx, orgID, convID, enabled, actor)
	return args.Bool(0), args.Error(1)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, orgID, convID, text string, actor *string) (*services.SendResult, error) {
	args := m.Called(ctx, orgID, convID, text, actor)
	if result := args.Get(0); result != nil {
		return result.(*services.SendResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInboxReader struct {
	mock.Mock
}

func (m *MockInboxReader) Conversations(ctx context.Context, orgID string) ([]domain.ConversationSummary, error) {
	args := m.Called(ctx, orgID)
	if result := args.Get(0); result != nil {
		return result.([]domain.ConversationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInboxReader) Messages(ctx context.Context, orgID, convID string) ([]domain.Message, error) {
	args := m.Called(ctx, orgID, convID)
	if result := args.Get(0); result != nil {
		return result.([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInboxReader) HandoffLogs(ctx context.Context, orgID string) ([]domain.HandoffLogView, error) {
	args := m.Called(ctx, orgID)
	if result := args.Get(0); result != nil {
		return result.([]domain.HandoffLogView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInboxReader) MessageLogs(ctx context.Context, orgID string) ([]domain.MessageLog, error) {
	args := m.Called(ctx, orgID)
	if result := args.Get(0); result != nil {
		return result.([]domain.MessageLog), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAccountManager struct {
	mock.Mock
}

func (m *MockAccountManager) Connect(ctx context.Context, in services.ConnectAccountInput) (*domain.Account, error) {
	args := m.Called(ctx, in)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountManager) Disconnect(ctx context.Context, orgID string) (int64, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountManager) List(ctx context.Context, orgID string) ([]domain.Account, error) {
	args := m.Called(ctx, orgID)
	if result := args.Get(0); result != nil {
		return result.([]domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockConversionSender struct {
	mock.Mock
}

func (m *MockConversionSender) SendMeta(ctx context.Context, req *domain.ConversionRequest, creds domain.MetaCredentials) (*domain.ConversionResult, error) {
	args := m.Called(ctx, req, creds)
	if result := args.Get(0); result != nil {
		return result.(*domain.ConversionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversionSender) SendGoogle(ctx context.Context, req *domain.ConversionRequest, creds domain.GoogleCredentials) (*domain.ConversionResult, error) {
	args := m.Called(ctx, req, creds)
	if result := args.Get(0); result != nil {
		return result.(*domain.ConversionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAdsIngester struct {
	mock.Mock
}

func (m *MockAdsIngester) Ingest(ctx context.Context, batch *domain.AdsIngestBatch) (*domain.IngestCounts, error) {
	args := m.Called(ctx, batch)
	if result := args.Get(0); result != nil {
		return result.(*domain.IngestCounts), args.Error(1)
	}
	return nil, args.Error(1)
}
