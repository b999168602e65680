package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A missing key is reported as (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// SetOnce stores a marker only if absent and reports whether it was stored.
// With Redis disabled every call reports true.
func (c *Cache) SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !c.client.Enabled() {
		return true, nil
	}

	ok, err := c.client.Redis().SetNX(ctx, c.key(key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute
	TTLMedium = 30 * time.Minute // 종목 선정 주기
	TTLLong   = 1 * time.Hour
	TTLWeek   = 7 * 24 * time.Hour
)

// SectorReturnKey identifies a sector ETF trailing return for one trading day
func SectorReturnKey(etf string, window int, date string) string {
	return fmt.Sprintf("sector:return:%s:%d:%s", etf, window, date)
}

// ReportSentKey marks a periodic report as delivered
func ReportSentKey(kind string, period string) string {
	return fmt.Sprintf("report:sent:%s:%s", kind, period)
}
