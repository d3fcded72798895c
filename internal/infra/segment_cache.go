package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/redis/go-redis/v9"
)

type RedisSegmentCache struct {
	rdb *redis.Client
}

func NewRedisSegmentCache(rdb *redis.Client) *RedisSegmentCache {
	return &RedisSegmentCache{rdb: rdb}
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *RedisSegmentCache) Get(ctx context.Context, key string) ([]models.TranscriptSegment, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var segs []models.TranscriptSegment
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil, false, fmt.Errorf("decode cached segments: %w", err)
	}
	return segs, true, nil
}

func (c *RedisSegmentCache) Set(ctx context.Context, key string, segs []models.TranscriptSegment, ttl time.Duration) error {
	raw, err := json.Marshal(segs)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
