package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// ConnectAccountInput carries the credentials produced by the external OAuth flow
type ConnectAccountInput struct {
	OrganizationID    string
	PhoneNumber       string
	PhoneID           string
	BusinessAccountID *string
	AccessToken       string
	AIEnabled         *bool // default true
}

// AccountService connects, lists and disconnects WhatsApp numbers
type AccountService struct {
	accounts          ports.AccountRepository
	staticVerifyToken string
}

// NewAccountService creates a new account service. staticVerifyToken, when
// set, is accepted by the webhook handshake in addition to per-account tokens.
func NewAccountService(accounts ports.AccountRepository, staticVerifyToken string) *AccountService {
	return &AccountService{
		accounts:          accounts,
		staticVerifyToken: staticVerifyToken,
	}
}

// Connect upserts the account on (organization, phone number) with a fresh verify token
func (s *AccountService) Connect(ctx context.Context, in ConnectAccountInput) (*domain.Account, error) {
	token, err := newVerifyToken()
	if err != nil {
		return nil, err
	}

	aiEnabled := true
	if in.AIEnabled != nil {
		aiEnabled = *in.AIEnabled
	}

	account := &domain.Account{
		OrganizationID:    in.OrganizationID,
		PhoneNumber:       in.PhoneNumber,
		PhoneID:           in.PhoneID,
		BusinessAccountID: in.BusinessAccountID,
		AccessToken:       in.AccessToken,
		VerifyToken:       token,
		Status:            domain.AccountStatusActive,
		AIEnabled:         aiEnabled,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("connect account: %w", err)
	}

	slog.Info("WhatsApp account connected",
		"organization_id", in.OrganizationID,
		"phone_id", in.PhoneID,
	)
	return account, nil
}

// Disconnect marks every account of the organization inactive; rows are kept
func (s *AccountService) Disconnect(ctx context.Context, orgID string) (int64, error) {
	n, err := s.accounts.DeactivateAll(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("disconnect accounts: %w", err)
	}
	slog.Info("WhatsApp accounts disconnected", "organization_id", orgID, "count", n)
	return n, nil
}

func (s *AccountService) List(ctx context.Context, orgID string) ([]domain.Account, error) {
	return s.accounts.ListByOrganization(ctx, orgID)
}

// VerifyToken reports whether a webhook handshake token is known
func (s *AccountService) VerifyToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if s.staticVerifyToken != "" && token == s.staticVerifyToken {
		return true, nil
	}
	return s.accounts.VerifyTokenExists(ctx, token)
}

// newVerifyToken returns 12 random bytes as hex
func newVerifyToken() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verify token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
