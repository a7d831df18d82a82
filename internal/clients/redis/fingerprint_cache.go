package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

// FingerprintCache maps a document content hash to the extraction payload
// computed for it. Writes are plain SETs: last write wins, no locking.
// Concurrent misses may both call the extraction service; that costs one
// redundant API call and nothing else.
type FingerprintCache interface {
	Get(ctx context.Context, hash string) (*types.ExtractionPayload, bool, error)
	Set(ctx context.Context, hash string, payload *types.ExtractionPayload) error
	Close() error
}

type fingerprintCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewFingerprintCache(log *logger.Logger) (FingerprintCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_FINGERPRINT_PREFIX"))
	if prefix == "" {
		prefix = "fp"
	}

	ttl := 30 * 24 * time.Hour
	if v := strings.TrimSpace(os.Getenv("REDIS_FINGERPRINT_TTL_HOURS")); v != "" {
		var hours int
		if _, err := fmt.Sscanf(v, "%d", &hours); err == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &fingerprintCache{
		log:    log.Client("FingerprintCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *fingerprintCache) key(hash string) string {
	return c.prefix + ":" + hash
}

func (c *fingerprintCache) Get(ctx context.Context, hash string) (*types.ExtractionPayload, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var payload types.ExtractionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// a corrupt entry is treated as a miss; the next Set repairs it
		c.log.Warn("fingerprint cache entry failed to decode, treating as miss", "hash", hash, "error", err)
		return nil, false, nil
	}
	return &payload, true, nil
}

func (c *fingerprintCache) Set(ctx context.Context, hash string, payload *types.ExtractionPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(hash), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *fingerprintCache) Close() error {
	return c.rdb.Close()
}
