package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// ============================================================================
// Mock Repositories
// ============================================================================

// MockWebhookRepository mocks WebhookRepository interface
type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockWebhookRepository) UpdateStatus(ctx context.Context, id string, status string, errorLog *string) error {
	args := m.Called(ctx, id, status, errorLog)
	return args.Error(0)
}

func (m *MockWebhookRepository) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockAccountRepository mocks AccountRepository interface
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByPhoneID(ctx context.Context, phoneID string) (*domain.Account, error) {
	args := m.Called(ctx, phoneID)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) VerifyTokenExists(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Upsert(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountRepository) DeactivateAll(ctx context.Context, orgID string) (int64, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) ListByOrganization(ctx context.Context, orgID string) ([]domain.Account, error) {
	args := m.Called(ctx, orgID)
	if result := args.Get(0); result != nil {
		return result.([]domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockContactRepository mocks ContactRepository interface
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) GetOrCreate(ctx context.Context, orgID, phone, name, source string) (*domain.Contact, error) {
	args := m.Called(ctx, orgID, phone, name, source)
	if result := args.Get(0); result != nil {
		return result.(*domain.Contact), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockConversationRepository mocks ConversationRepository interface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetOrCreate(ctx context.Context, seed ports.ConversationSeed) (*domain.Conversation, error) {
	args := m.Called(ctx, seed)
	if result := args.Get(0); result != nil {
		return result.(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) Get(ctx context.Context, orgID, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, orgID, id)
	if result := args.Get(0); result != nil {
		return result.(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) TouchLastMessage(ctx context.Context, orgID, id string, at time.Time) error {
	args := m.Called(ctx, orgID, id, at)
	return args.Error(0)
}

func (m *MockConversationRepository) LinkLead(ctx context.Context, orgID, id, leadID string) error {
	args := m.Called(ctx, orgID, id, leadID)
	return args.Error(0)
}

func (m *MockConversationRepository) List(ctx context.Context, orgID string, limit int) ([]domain.ConversationSummary, error) {
	args := m.Called(ctx, orgID, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.ConversationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockHandoffRepository mocks HandoffRepository interface
type MockHandoffRepository struct {
	mock.Mock
}

func (m *MockHandoffRepository) Transition(ctx context.Context, t ports.HandoffTransition) (bool, error) {
	args := m.Called(ctx, t)
	return args.Bool(0), args.Error(1)
}

func (m *MockHandoffRepository) ListLogs(ctx context.Context, orgID string, limit int) ([]domain.HandoffLogView, error) {
	args := m.Called(ctx, orgID, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.HandoffLogView), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository mocks MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, orgID, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, orgID, conversationID)
	if result := args.Get(0); result != nil {
		return result.([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) ListLogs(ctx context.Context, orgID string, limit int) ([]domain.MessageLog, error) {
	args := m.Called(ctx, orgID, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.MessageLog), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCRMRepository mocks CRMRepository interface
type MockCRMRepository struct {
	mock.Mock
}

func (m *MockCRMRepository) CreateLead(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockCRMRepository) HasDealWithTag(ctx context.Context, orgID, contactID, tag string) (bool, error) {
	args := m.Called(ctx, orgID, contactID, tag)
	return args.Bool(0), args.Error(1)
}

func (m *MockCRMRepository) CreateDeal(ctx context.Context, deal *domain.Deal) error {
	args := m.Called(ctx, deal)
	return args.Error(0)
}

// MockDedupRepository mocks DedupRepository interface
type MockDedupRepository struct {
	mock.Mock
}

func (m *MockDedupRepository) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupRepository) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	args := m.Called(ctx, eventID, ttl)
	return args.Error(0)
}

// MockConversionRepository mocks ConversionRepository interface
type MockConversionRepository struct {
	mock.Mock
}

func (m *MockConversionRepository) InsertFunnelEvent(ctx context.Context, ev *domain.FunnelEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockConversionRepository) UpsertConversionEvent(ctx context.Context, ev *domain.ConversionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// ============================================================================
// Mock Gateways
// ============================================================================

// MockWhatsAppSender mocks WhatsAppSender interface
type MockWhatsAppSender struct {
	mock.Mock
}

func (m *MockWhatsAppSender) SendText(ctx context.Context, phoneID, accessToken, to, text string) (string, error) {
	args := m.Called(ctx, phoneID, accessToken, to, text)
	return args.String(0), args.Error(1)
}

// MockMetaClient mocks MetaConversionsClient interface
type MockMetaClient struct {
	mock.Mock
}

func (m *MockMetaClient) SendEvent(ctx context.Context, creds domain.MetaCredentials, req *domain.ConversionRequest, eventID string) (*domain.ProviderResponse, error) {
	args := m.Called(ctx, creds, req, eventID)
	if result := args.Get(0); result != nil {
		return result.(*domain.ProviderResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGoogleClient mocks GoogleAdsClient interface
type MockGoogleClient struct {
	mock.Mock
}

func (m *MockGoogleClient) UploadClickConversion(ctx context.Context, creds domain.GoogleCredentials, req *domain.ConversionRequest, gclid, orderID string) (*domain.ProviderResponse, error) {
	args := m.Called(ctx, creds, req, gclid, orderID)
	if result := args.Get(0); result != nil {
		return result.(*domain.ProviderResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func strPtr(s string) *string { return &s }
