package redis

import (
	"context"
	"time"
)

// UpdateDeduplicator claims Telegram update ids so a redelivered update
// is acknowledged without being handled twice.
type UpdateDeduplicator struct {
	cache *Cache
	ttl   time.Duration
}

// NewUpdateDeduplicator creates a deduplicator. ttl <= 0 uses TTLProcessedUpdate.
func NewUpdateDeduplicator(cache *Cache, ttl time.Duration) *UpdateDeduplicator {
	if ttl <= 0 {
		ttl = TTLProcessedUpdate
	}
	return &UpdateDeduplicator{cache: cache, ttl: ttl}
}

// Claim returns true the first time an update id is seen.
func (d *UpdateDeduplicator) Claim(ctx context.Context, updateID int) (bool, error) {
	return d.cache.SetNX(ctx, UpdateKey(updateID), time.Now().Unix(), d.ttl)
}

// Release forgets an update id so Telegram's next redelivery is processed.
func (d *UpdateDeduplicator) Release(ctx context.Context, updateID int) error {
	return d.cache.Delete(ctx, UpdateKey(updateID))
}
