package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crm-whatsapp/internal/core/domain"
)

func TestInbox_MessagesChecksOwnership(t *testing.T) {
	convs := new(MockConversationRepository)
	messages := new(MockMessageRepository)
	svc := NewInboxService(convs, messages, new(MockHandoffRepository))
	ctx := context.Background()

	convs.On("Get", ctx, "org-2", "conv-1").Return(nil, domain.ErrConversationNotFound)

	_, err := svc.Messages(ctx, "org-2", "conv-1")

	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	messages.AssertNotCalled(t, "ListByConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestInbox_ListLimits(t *testing.T) {
	convs := new(MockConversationRepository)
	messages := new(MockMessageRepository)
	handoffs := new(MockHandoffRepository)
	svc := NewInboxService(convs, messages, handoffs)
	ctx := context.Background()

	convs.On("List", ctx, "org-1", 50).Return([]domain.ConversationSummary{}, nil)
	handoffs.On("ListLogs", ctx, "org-1", 100).Return([]domain.HandoffLogView{}, nil)
	messages.On("ListLogs", ctx, "org-1", 200).Return([]domain.MessageLog{}, nil)

	_, err := svc.Conversations(ctx, "org-1")
	require.NoError(t, err)
	_, err = svc.HandoffLogs(ctx, "org-1")
	require.NoError(t, err)
	_, err = svc.MessageLogs(ctx, "org-1")
	require.NoError(t, err)

	convs.AssertExpectations(t)
	handoffs.AssertExpectations(t)
	messages.AssertExpectations(t)
}
