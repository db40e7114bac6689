// Package cache provides an optional Redis lookaside cache for attestations.
//
// The ledger remains the source of truth. Cache misses and Redis errors
// both fall through to the ledger, so a down Redis never blocks a decision.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "axiomd:att:"

// AttestationCache caches signed attestation bodies keyed by
// (axiom_set_hash, input_digest). Safe for concurrent use.
type AttestationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(opts Options, logger *zap.Logger) *AttestationCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &AttestationCache{client: client, ttl: ttl, logger: logger}
}

// NewWithClient wraps an already configured client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AttestationCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AttestationCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(axiomSetHash, inputDigest string) string {
	return keyPrefix + axiomSetHash + ":" + inputDigest
}

// Get returns the cached attestation body, or ok=false on miss or error.
func (c *AttestationCache) Get(ctx context.Context, axiomSetHash, inputDigest string) ([]byte, bool) {
	body, err := c.client.Get(ctx, cacheKey(axiomSetHash, inputDigest)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("attestation cache get failed", zap.Error(err))
		}
		return nil, false
	}
	return body, true
}

// Put stores the attestation body. Failures are logged and swallowed.
func (c *AttestationCache) Put(ctx context.Context, axiomSetHash, inputDigest string, body []byte) {
	if err := c.client.Set(ctx, cacheKey(axiomSetHash, inputDigest), body, c.ttl).Err(); err != nil {
		c.logger.Warn("attestation cache put failed", zap.Error(err))
	}
}

func (c *AttestationCache) Close() error {
	return c.client.Close()
}
