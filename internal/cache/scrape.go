package cache

import (
	"context"
	"time"
)

const scrapeCachePrefix = "scrape:"

// GetScrape returns extracted page text cached under key.
func (c *Cache) GetScrape(ctx context.Context, key string) (string, bool) {
	text, err := c.client.Get(ctx, scrapeCachePrefix+key).Result()
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

// SetScrape caches extracted page text for ttl.
func (c *Cache) SetScrape(ctx context.Context, key, text string, ttl time.Duration) error {
	return c.client.Set(ctx, scrapeCachePrefix+key, text, ttl).Err()
}
