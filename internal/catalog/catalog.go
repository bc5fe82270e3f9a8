// Package catalog is the register's product lookup. Search results are
// cached in Redis so repeated searches while building baskets do not hit the
// store; the cache is flushed after every commit so the next search sees
// trigger-adjusted stock. Single-product lookups always read the store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-pos-register/internal/models"
)

const keyPrefix = "catalog:"

// Source is the authoritative product store.
type Source interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type Catalog struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a catalog reading through the given Redis client. A nil client
// disables caching.
func New(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func searchKey(query string, limit int) string {
	return fmt.Sprintf("%ssearch:%d:%s", keyPrefix, limit, strings.ToLower(strings.TrimSpace(query)))
}

// Search returns up to limit products matching query, each carrying a stock
// snapshot from the time it was fetched.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	if limit < 1 {
		return nil, fmt.Errorf("search limit must be positive, got %d", limit)
	}

	key := searchKey(query, limit)
	var products []models.Product
	if c.getCached(ctx, key, &products) {
		return products, nil
	}

	products, err := c.source.SearchProducts(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	c.setCached(ctx, key, products)
	return products, nil
}

// Lookup returns a single product by id with its current stock quantity. It
// bypasses the cache: the result becomes a line's stock snapshot.
func (c *Catalog) Lookup(ctx context.Context, id string) (*models.Product, error) {
	p, err := c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup product %s: %w", id, err)
	}
	return p, nil
}

// Invalidate drops every cached search.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan catalog keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del catalog keys: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.DebugContext(ctx, "catalog cache invalidated", slog.Int("keys", removed))
	return nil
}

// getCached reports whether key was found and decoded. Cache failures are
// logged and treated as a miss so lookups fall through to the store.
func (c *Catalog) getCached(ctx context.Context, key string, dst any) bool {
	if c.client == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "catalog cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.WarnContext(ctx, "catalog cache entry unreadable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (c *Catalog) setCached(ctx context.Context, key string, value any) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog cache encode failed", slog.String("error", err.Error()))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
