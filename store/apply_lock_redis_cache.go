package store

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/domain"
)

// lockTTL caps how long a crashed apply can keep a record locked.
const lockTTL = 30 * time.Second

type ApplyLockRedisCache struct {
	client *redis.Client
	tracer trace.Tracer
}

func NewApplyLockRedisCache(client *redis.Client, tracer trace.Tracer) domain.ApplyLockCache {
	return &ApplyLockRedisCache{
		client: client,
		tracer: tracer,
	}
}

func (cache *ApplyLockRedisCache) Acquire(ctx context.Context, recordID string) (bool, error) {
	ctx, span := cache.tracer.Start(ctx, "ApplyLockRedisCache.Acquire")
	defer span.End()

	result := cache.client.SetNX("apply:"+recordID, "1", lockTTL)
	if result.Err() != nil {
		span.SetStatus(codes.Error, "Error acquiring apply lock")
		log.Printf("redis setnx error: %s", result.Err())
		return false, result.Err()
	}

	return result.Val(), nil
}

func (cache *ApplyLockRedisCache) Release(ctx context.Context, recordID string) error {
	ctx, span := cache.tracer.Start(ctx, "ApplyLockRedisCache.Release")
	defer span.End()

	result := cache.client.Del("apply:" + recordID)
	if result.Err() != nil {
		span.SetStatus(codes.Error, "Error releasing apply lock")
		log.Println(result.Err())
		return result.Err()
	}

	return nil
}
