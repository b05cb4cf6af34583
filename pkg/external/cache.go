package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dpr-plan-engine/internal/domain"
)

// QuoteCache keeps quote responses in Redis, keyed per applicant.
type QuoteCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewQuoteCache connects to Redis.
func NewQuoteCache(config domain.CacheConfig) (*QuoteCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewQuoteCacheWithClient(client, config.DefaultTTL), nil
}

// NewQuoteCacheWithClient wraps an existing client.
func NewQuoteCacheWithClient(client *redis.Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &QuoteCache{redis: client, defaultTTL: ttl}
}

type cachedQuoteSet struct {
	Data      *domain.QuoteSet `json:"data"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Get returns a cached quote set for the applicant.
func (c *QuoteCache) Get(ctx context.Context, applicant *domain.Applicant) (*domain.QuoteSet, bool, error) {
	key := QuoteCacheKey(applicant)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get quote cache: %w", err)
	}

	var cached cachedQuoteSet
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Data == nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set caches a quote set. A zero ttl uses the default.
func (c *QuoteCache) Set(ctx context.Context, applicant *domain.Applicant, set *domain.QuoteSet, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedQuoteSet{
		Data:      set,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal quote cache data: %w", err)
	}

	return c.redis.Set(ctx, QuoteCacheKey(applicant), jsonData, ttl).Err()
}

// Close closes the Redis connection.
func (c *QuoteCache) Close() error {
	return c.redis.Close()
}

// Cacheable reports whether quotes for the applicant may be cached. Cached quote
// sets carry confirmation numbers, so they are only reused for the same
// applicant, identified by email.
func Cacheable(applicant *domain.Applicant) bool {
	return applicant != nil && normalizeEmail(applicant.Email) != ""
}

// QuoteCacheKey hashes the applicant's quoting inputs and identity.
func QuoteCacheKey(applicant *domain.Applicant) string {
	keyed := *applicant
	keyed.UpdatedAt = time.Time{}
	keyed.Email = normalizeEmail(applicant.Email)

	raw, _ := json.Marshal(keyed)
	sum := sha256.Sum256(raw)
	return "dpr:quote:" + hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
