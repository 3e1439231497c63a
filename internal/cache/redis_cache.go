package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slackpost/internal/model"
)

type RedisChannelCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisChannelCache(rdb *redis.Client, ttl time.Duration) *RedisChannelCache {
	return &RedisChannelCache{rdb: rdb, ttl: ttl}
}

func channelKey(workspaceID string) string {
	return fmt.Sprintf("channels:%s", workspaceID)
}

func (c *RedisChannelCache) Get(ctx context.Context, workspaceID string) ([]model.Channel, error) {
	raw, err := c.rdb.Get(ctx, channelKey(workspaceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var channels []model.Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *RedisChannelCache) Set(ctx context.Context, workspaceID string, channels []model.Channel) error {
	b, err := json.Marshal(channels)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, channelKey(workspaceID), b, c.ttl).Err()
}
