package rates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis helpers for cached override payloads. A non-positive TTL
// disables caching entirely: reads miss and writes are dropped.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes individual keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePattern scans for keys matching pattern and removes them in batches.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil || pattern == "" {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// InvalidatePair drops the cached entry for one product/country pair plus the
// product mapping that embeds it.
func (c *Cache) InvalidatePair(ctx context.Context, key Key) error {
	return c.Delete(ctx, key.String(), ProductKey(key.ProductID))
}

// InvalidateProduct drops everything cached for one product.
func (c *Cache) InvalidateProduct(ctx context.Context, productID int64) error {
	if err := c.DeletePattern(ctx, ProductPattern(productID)); err != nil {
		return err
	}
	return c.Delete(ctx, ProductKey(productID))
}

// InvalidateAll flushes the whole rates namespace.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.DeletePattern(ctx, Pattern())
}

// SyncSettings compares the stored settings fingerprint against the current
// one and flushes the namespace when they differ, so entries cached under
// the previous settings never survive a settings change. The fingerprint is
// rewritten after the flush; it reports whether a flush happened.
func (c *Cache) SyncSettings(ctx context.Context, fingerprint string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	stored, err := c.client.Get(ctx, SettingsKey()).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	if stored == fingerprint {
		return false, nil
	}
	if err := c.InvalidateAll(ctx); err != nil {
		return false, err
	}
	if err := c.client.Set(ctx, SettingsKey(), fingerprint, 0).Err(); err != nil {
		return true, err
	}
	return true, nil
}
