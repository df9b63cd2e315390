package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crm-whatsapp/internal/core/domain"
)

func TestConnect_DefaultsAndFreshVerifyToken(t *testing.T) {
	repo := new(MockAccountRepository)
	svc := NewAccountService(repo, "")
	ctx := context.Background()

	repo.On("Upsert", ctx, mock.AnythingOfType("*domain.Account")).Return(nil).Twice()

	first, err := svc.Connect(ctx, ConnectAccountInput{
		OrganizationID: "org-1",
		PhoneNumber:    "+5511999990000",
		PhoneID:        "ph-1",
		AccessToken:    "tok",
	})
	require.NoError(t, err)
	second, err := svc.Connect(ctx, ConnectAccountInput{
		OrganizationID: "org-1",
		PhoneNumber:    "+5511999990000",
		PhoneID:        "ph-1",
		AccessToken:    "tok",
	})
	require.NoError(t, err)

	assert.True(t, first.AIEnabled)
	assert.Equal(t, domain.AccountStatusActive, first.Status)
	assert.Len(t, first.VerifyToken, 24)
	assert.NotEqual(t, first.VerifyToken, second.VerifyToken)
}

func TestConnect_ExplicitAIDisabled(t *testing.T) {
	repo := new(MockAccountRepository)
	svc := NewAccountService(repo, "")
	ctx := context.Background()
	off := false

	repo.On("Upsert", ctx, mock.MatchedBy(func(a *domain.Account) bool { return !a.AIEnabled })).Return(nil)

	account, err := svc.Connect(ctx, ConnectAccountInput{OrganizationID: "org-1", PhoneID: "ph-1", AIEnabled: &off})

	require.NoError(t, err)
	assert.False(t, account.AIEnabled)
}

func TestDisconnect_DeactivatesAll(t *testing.T) {
	repo := new(MockAccountRepository)
	svc := NewAccountService(repo, "")
	ctx := context.Background()

	repo.On("DeactivateAll", ctx, "org-1").Return(int64(2), nil)

	n, err := svc.Disconnect(ctx, "org-1")

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestVerifyToken(t *testing.T) {
	repo := new(MockAccountRepository)
	svc := NewAccountService(repo, "static-token")
	ctx := context.Background()

	repo.On("VerifyTokenExists", ctx, "account-token").Return(true, nil)
	repo.On("VerifyTokenExists", ctx, "unknown").Return(false, nil)
	repo.On("VerifyTokenExists", ctx, "broken").Return(false, errors.New("db down"))

	ok, err := svc.VerifyToken(ctx, "static-token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyToken(ctx, "account-token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyToken(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifyToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.VerifyToken(ctx, "broken")
	assert.Error(t, err)
}
