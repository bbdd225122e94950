package candidate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/reel-comb/app/spec"
)

const poolKeyPrefix = "reel-comb:pool:"

// RedisPoolCache caches raw candidate pools by spec signature in front of
// another Source. Redis failures degrade to a pass-through.
type RedisPoolCache struct {
	next   Source
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPoolCache(next Source, client *redis.Client, ttl time.Duration) *RedisPoolCache {
	return &RedisPoolCache{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisPoolCache) Search(ctx context.Context, q spec.QuerySpec) ([]Video, error) {
	signature, err := q.Signature()
	if err != nil {
		return c.next.Search(ctx, q)
	}
	key := poolKeyPrefix + signature

	if !cacheBypassed(ctx) {
		data, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var videos []Video
			if err := json.Unmarshal(data, &videos); err == nil {
				slog.Debug("Candidate pool cache hit", "signature", signature, "candidates", len(videos))
				return videos, nil
			}
			slog.Warn("Discarding unreadable cached pool", "signature", signature)
		case errors.Is(err, redis.Nil):
		default:
			slog.Warn("Candidate pool cache read failed", "error", err)
		}
	}

	videos, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(videos)
	if err != nil {
		slog.Warn("Failed to encode candidate pool", "error", err)
		return videos, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("Candidate pool cache write failed", "error", err)
	}

	return videos, nil
}
