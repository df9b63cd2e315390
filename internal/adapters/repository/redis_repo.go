package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"crm-whatsapp/internal/core/ports"
)

// Ensure RedisDedupRepository implements DedupRepository
var _ ports.DedupRepository = (*RedisDedupRepository)(nil)

// RedisDedupRepository remembers recently stored WhatsApp message ids so a
// redelivered webhook skips the database round trip
type RedisDedupRepository struct {
	client *redis.Client
}

// NewRedisDedupRepository creates a new Redis dedup repository
func NewRedisDedupRepository(client *redis.Client) *RedisDedupRepository {
	return &RedisDedupRepository{
		client: client,
	}
}

// IsDuplicate checks if a message id was already stored
func (r *RedisDedupRepository) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	key := buildDedupKey(messageID)

	_, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		slog.Error("Failed to check deduplication",
			"error", err,
			"wa_message_id", messageID,
		)
		return false, fmt.Errorf("check duplicate: %w", err)
	}

	slog.Warn("Duplicate WhatsApp message detected",
		"wa_message_id", messageID,
		"key", key,
	)
	return true, nil
}

// MarkProcessed stores the message id with a TTL.
// The value is the unix time of the first delivery, for debugging.
func (r *RedisDedupRepository) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	key := buildDedupKey(messageID)

	if err := r.client.SetNX(ctx, key, time.Now().Unix(), ttl).Err(); err != nil {
		slog.Error("Failed to mark message as processed",
			"error", err,
			"wa_message_id", messageID,
			"ttl", ttl,
		)
		return fmt.Errorf("mark processed: %w", err)
	}

	slog.Debug("Message marked as processed",
		"wa_message_id", messageID,
		"key", key,
		"ttl", ttl,
	)
	return nil
}

// buildDedupKey: dedup:msg:{wa_message_id}
func buildDedupKey(messageID string) string {
	return fmt.Sprintf("dedup:msg:%s", messageID)
}
