package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"commerce-agent/internal/core/ports"
)

var _ ports.DedupRepository = (*RedisRepository)(nil)

// RedisRepository remembers processed webhook event ids
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// IsDuplicate checks if an event ID has already been processed
func (r *RedisRepository) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, buildDedupKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records an event id with a TTL. The value is the unix time for debugging.
func (r *RedisRepository) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	key := buildDedupKey(eventID)
	if err := r.client.Set(ctx, key, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	slog.Debug("Event marked as processed",
		"event_id", eventID,
		"ttl", ttl,
	)
	return nil
}

// buildDedupKey constructs the Redis key for an event id (message mid or comment id)
func buildDedupKey(eventID string) string {
	return fmt.Sprintf("dedup:event:%s", eventID)
}
