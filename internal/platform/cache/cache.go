// Package cache wraps github.com/redis/go-redis/v9 for every TTL-keyed
// piece of state: the frequency gate, the one-shot login-code handshake,
// the refresh-token store, and a short-lived cache over PricingTier
// reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func New(dsn string) (*Cache, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// SetJSON stores v as JSON under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// GetDelJSON atomically fetches and removes key, giving one-shot-use
// semantics: once consumed, a repeat lookup misses.
func (c *Cache) GetDelJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := c.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (c *Cache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SeenRecently reports whether key was marked within window, and marks it
// as seen now regardless. Backs the ad server's frequency gate: a stale
// miss under race costs at most one extra impression.
func (c *Cache) SeenRecently(ctx context.Context, key string, window time.Duration) (bool, error) {
	wasSet, err := c.client.SetNX(ctx, key, time.Now().UTC().Unix(), window).Result()
	if err != nil {
		return false, err
	}
	if wasSet {
		return false, nil
	}
	return true, nil
}

// MarkSeen forces the frequency-gate key, used after a delivery even when
// the initial SeenRecently probe raced another request.
func (c *Cache) MarkSeen(ctx context.Context, key string, window time.Duration) error {
	return c.client.Set(ctx, key, time.Now().UTC().Unix(), window).Err()
}

// AllowSlidingWindow implements a ZSET sliding-window counter: at most
// limit events per window for key. Used by the per-client-IP rate limit
// middleware, which answers 429 when exceeded.
func (c *Cache) AllowSlidingWindow(ctx context.Context, key string, window time.Duration, limit int64) (bool, error) {
	now := time.Now()
	redisKey := fmt.Sprintf("ratelimit:%s", key)
	windowStart := now.Add(-window).UnixNano()

	pipe := c.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart))
	zcard := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return zcard.Val() < limit, nil
}

// Idempotent keys for the ad server's requestId replay window.
func IdempotencyKey(botID, requestID string) string {
	return "idem:adserver:" + botID + ":" + requestID
}

func FrequencyKey(botID, telegramUserID string) string {
	return "freq:" + botID + ":" + telegramUserID
}

func LoginSessionKey(token string) string {
	return "login:session:" + token
}

func RefreshTokenKey(userID string) string {
	return "refresh:" + userID
}

func SettingsKey(key string) string {
	return "settings:" + key
}

func PricingTiersKey() string {
	return "pricing:tiers"
}
