package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const (
	keyPrefix  = "listings:page:"
	scanBatch  = 100
	defaultTTL = 30 * time.Second
)

// ListingPageCache implements repository.ListingPageCache using Redis.
type ListingPageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingPageCache creates a cache whose entries live for ttl.
func NewListingPageCache(client *redis.Client, ttl time.Duration) *ListingPageCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ListingPageCache{client: client, ttl: ttl}
}

// Key returns the cache key of a page.
func Key(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, page, limit)
}

// Get returns a cached page, or a NotFound error on a miss.
func (c *ListingPageCache) Get(ctx context.Context, page, limit int) (*domain.ListingPage, error) {
	key := Key(page, limit)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("listing page", key)
		}
		return nil, fmt.Errorf("redis get listing page: %w", err)
	}

	var p domain.ListingPage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal listing page: %w", err)
	}
	return &p, nil
}

// Set stores a page with the configured TTL.
func (c *ListingPageCache) Set(ctx context.Context, page, limit int, p *domain.ListingPage) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal listing page: %w", err)
	}
	if err := c.client.Set(ctx, Key(page, limit), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set listing page: %w", err)
	}
	return nil
}

// Invalidate drops every cached page.
func (c *ListingPageCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan listing pages: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del listing pages: %w", err)
	}
	return nil
}
