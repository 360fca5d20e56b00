package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "icqueue:seen:"

type (
	dedupClient interface {
		SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
	}

	// DedupRepository remembers relayed message ids in Redis for ttl.
	DedupRepository struct {
		client dedupClient
		ttl    time.Duration
	}
)

func NewDedupRepository(client dedupClient, ttl time.Duration) *DedupRepository {
	return &DedupRepository{
		client: client,
		ttl:    ttl,
	}
}

// MarkSeen stores id and reports whether it had already been stored.
func (r *DedupRepository) MarkSeen(ctx context.Context, id string) (bool, error) {
	stored, err := r.client.SetNX(ctx, dedupKey(id), time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id %s: %w", id, err)
	}

	return !stored, nil
}

func (r *DedupRepository) Forget(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, dedupKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to forget message id %s: %w", id, err)
	}

	return nil
}

func dedupKey(id string) string {
	return dedupKeyPrefix + id
}
