package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crm-whatsapp/internal/core/domain"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func createTestWriter(withDedup bool) (*MessageWriter, *MockMessageRepository, *MockConversationRepository, *MockDedupRepository) {
	messages := new(MockMessageRepository)
	convs := new(MockConversationRepository)
	dedup := new(MockDedupRepository)

	var w *MessageWriter
	if withDedup {
		w = NewMessageWriter(messages, convs, dedup, time.Hour)
	} else {
		w = NewMessageWriter(messages, convs, nil, time.Hour)
	}
	w.now = func() time.Time { return fixedNow }
	return w, messages, convs, dedup
}

func TestAppend_InboundSetsReceivedAt(t *testing.T) {
	w, messages, convs, dedup := createTestWriter(true)
	ctx := context.Background()
	ts := time.Unix(1715342400, 0).UTC()

	dedup.On("IsDuplicate", ctx, "wamid.1").Return(false, nil)
	messages.On("Insert", ctx, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Direction == domain.DirectionIn &&
			m.ReceivedAt != nil && m.ReceivedAt.Equal(ts) &&
			m.SentAt == nil &&
			m.Type == domain.MessageTypeText
	})).Return(nil)
	dedup.On("MarkProcessed", ctx, "wamid.1", time.Hour).Return(nil)
	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", ts).Return(nil)

	res, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionIn,
		WAMessageID:    strPtr("wamid.1"),
		Text:           strPtr("oi"),
		Timestamp:      &ts,
	})

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	messages.AssertExpectations(t)
	dedup.AssertExpectations(t)
	convs.AssertExpectations(t)
}

func TestAppend_OutboundWithoutTimestampUsesNow(t *testing.T) {
	w, messages, convs, _ := createTestWriter(false)
	ctx := context.Background()

	messages.On("Insert", ctx, mock.MatchedBy(func(m *domain.Message) bool {
		return m.SentAt != nil && m.SentAt.Equal(fixedNow) && m.ReceivedAt == nil
	})).Return(nil)
	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", fixedNow).Return(nil)

	res, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionOut,
		Text:           strPtr("olá"),
	})

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestAppend_UniqueViolationIsBenignAndStillTouches(t *testing.T) {
	w, messages, convs, dedup := createTestWriter(true)
	ctx := context.Background()

	dedup.On("IsDuplicate", ctx, "wamid.dup").Return(false, nil)
	messages.On("Insert", ctx, mock.Anything).Return(domain.ErrDuplicate)
	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", fixedNow).Return(nil)

	res, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionIn,
		WAMessageID:    strPtr("wamid.dup"),
	})

	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	dedup.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	convs.AssertExpectations(t)
}

func TestAppend_CacheHitSkipsInsert(t *testing.T) {
	w, messages, convs, dedup := createTestWriter(true)
	ctx := context.Background()

	dedup.On("IsDuplicate", ctx, "wamid.seen").Return(true, nil)
	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", fixedNow).Return(nil)

	res, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionIn,
		WAMessageID:    strPtr("wamid.seen"),
	})

	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	messages.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAppend_DedupErrorFailsOpen(t *testing.T) {
	w, messages, convs, dedup := createTestWriter(true)
	ctx := context.Background()

	dedup.On("IsDuplicate", ctx, "wamid.2").Return(false, errors.New("redis connection error"))
	messages.On("Insert", ctx, mock.Anything).Return(nil)
	dedup.On("MarkProcessed", ctx, "wamid.2", time.Hour).Return(errors.New("redis connection error"))
	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", fixedNow).Return(nil)

	res, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionIn,
		WAMessageID:    strPtr("wamid.2"),
	})

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	messages.AssertExpectations(t)
}

func TestAppend_OtherInsertErrorsAreFatal(t *testing.T) {
	w, messages, convs, _ := createTestWriter(false)
	ctx := context.Background()

	messages.On("Insert", ctx, mock.Anything).Return(errors.New("data too long"))

	_, err := w.Append(ctx, MessageInput{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Direction:      domain.DirectionIn,
		WAMessageID:    strPtr("wamid.3"),
	})

	assert.ErrorContains(t, err, "save message")
	convs.AssertNotCalled(t, "TouchLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSeen(t *testing.T) {
	w, _, _, dedup := createTestWriter(true)
	ctx := context.Background()

	dedup.On("IsDuplicate", ctx, "wamid.seen").Return(true, nil)
	dedup.On("IsDuplicate", ctx, "wamid.new").Return(false, nil)
	dedup.On("IsDuplicate", ctx, "wamid.err").Return(false, errors.New("redis connection error"))

	assert.True(t, w.Seen(ctx, "wamid.seen"))
	assert.False(t, w.Seen(ctx, "wamid.new"))
	assert.False(t, w.Seen(ctx, "wamid.err"))
	assert.False(t, w.Seen(ctx, ""))

	noCache, _, _, _ := createTestWriter(false)
	assert.False(t, noCache.Seen(ctx, "wamid.seen"))
}

func TestTouch_UsesProviderTimestamp(t *testing.T) {
	w, _, convs, _ := createTestWriter(false)
	ctx := context.Background()
	ts := time.Unix(1715342400, 0)

	convs.On("TouchLastMessage", ctx, "org-1", "conv-1", ts.UTC()).Return(nil).Once()
	convs.On("TouchLastMessage", ctx, "org-1", "conv-2", fixedNow).Return(errors.New("db down")).Once()

	require.NoError(t, w.Touch(ctx, "org-1", "conv-1", &ts))
	assert.ErrorContains(t, w.Touch(ctx, "org-1", "conv-2", nil), "touch conversation")
	convs.AssertExpectations(t)
}
