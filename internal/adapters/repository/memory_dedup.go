package repository

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"crm-whatsapp/internal/core/ports"
)

var _ ports.DedupRepository = (*MemoryDedupRepository)(nil)

// MemoryDedupRepository is the in-process dedup cache used when Redis is not
// configured. Entries are per instance; the messages unique index still
// guards across instances.
type MemoryDedupRepository struct {
	cache *cache.Cache
}

// NewMemoryDedupRepository creates a cache whose entries expire after defaultTTL
func NewMemoryDedupRepository(defaultTTL time.Duration) *MemoryDedupRepository {
	return &MemoryDedupRepository{
		cache: cache.New(defaultTTL, 2*defaultTTL),
	}
}

func (r *MemoryDedupRepository) IsDuplicate(_ context.Context, messageID string) (bool, error) {
	_, found := r.cache.Get(buildDedupKey(messageID))
	return found, nil
}

func (r *MemoryDedupRepository) MarkProcessed(_ context.Context, messageID string, ttl time.Duration) error {
	// Add keeps the first delivery's timestamp
	_ = r.cache.Add(buildDedupKey(messageID), time.Now().Unix(), ttl)
	return nil
}
