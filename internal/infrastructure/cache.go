package infrastructure

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/architeacher/svc-icqueue/internal/config"
)

// CacheClient is the Redis client used for message deduplication.
type CacheClient struct {
	*redis.Client
}

func NewCacheClient(cfg config.CacheConfig) *CacheClient {
	return &CacheClient{
		Client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
		}),
	}
}

func (c *CacheClient) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
