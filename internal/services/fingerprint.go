package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/verdantiq/carbonmrv-backend/internal/clients/redis"
	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

// FingerprintService answers "have we extracted these exact bytes before".
// The hash covers raw bytes only — never filename or mime type — so
// byte-identical re-uploads hit the cache across sessions. Lookup consults
// the redis cache first and falls through to the documents table, which is
// the durable copy of every extraction ever stored.
type FingerprintService interface {
	Hash(data []byte) string
	Lookup(ctx context.Context, hash string) (*types.ExtractionPayload, bool, error)
	Store(ctx context.Context, hash string, payload *types.ExtractionPayload) error
}

type fingerprintService struct {
	log          *logger.Logger
	cache        redis.FingerprintCache
	documentRepo repos.DocumentRepo
}

func NewFingerprintService(log *logger.Logger, cache redis.FingerprintCache, documentRepo repos.DocumentRepo) FingerprintService {
	return &fingerprintService{
		log:          log.Service("FingerprintService"),
		cache:        cache,
		documentRepo: documentRepo,
	}
}

func (s *fingerprintService) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *fingerprintService) Lookup(ctx context.Context, hash string) (*types.ExtractionPayload, bool, error) {
	if s.cache != nil {
		payload, ok, err := s.cache.Get(ctx, hash)
		if err != nil {
			// cache trouble degrades to the durable layer
			s.log.Warn("fingerprint cache lookup failed, falling through to documents", "hash", hash, "error", err)
		} else if ok {
			return payload, true, nil
		}
	}

	if s.documentRepo == nil {
		return nil, false, nil
	}
	doc, err := s.documentRepo.GetByHash(ctx, nil, hash)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, nil
	}
	var payload types.ExtractionPayload
	if err := json.Unmarshal(doc.Extraction, &payload); err != nil {
		s.log.Warn("stored extraction payload failed to decode", "document_id", doc.ID, "error", err)
		return nil, false, nil
	}
	// repopulate the cache so the next lookup is cheap
	if s.cache != nil {
		if cErr := s.cache.Set(ctx, hash, &payload); cErr != nil {
			s.log.Warn("fingerprint cache repopulate failed", "hash", hash, "error", cErr)
		}
	}
	return &payload, true, nil
}

func (s *fingerprintService) Store(ctx context.Context, hash string, payload *types.ExtractionPayload) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, hash, payload)
}

// MemoryFingerprintCache is the in-process fallback used when REDIS_ADDR
// is not configured, and in tests. Same last-write-wins semantics.
type MemoryFingerprintCache struct {
	mu      sync.RWMutex
	entries map[string]types.ExtractionPayload
}

func NewMemoryFingerprintCache() *MemoryFingerprintCache {
	return &MemoryFingerprintCache{entries: map[string]types.ExtractionPayload{}}
}

func (m *MemoryFingerprintCache) Get(ctx context.Context, hash string) (*types.ExtractionPayload, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.entries[hash]
	if !ok {
		return nil, false, nil
	}
	out := payload
	return &out, true, nil
}

func (m *MemoryFingerprintCache) Set(ctx context.Context, hash string, payload *types.ExtractionPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = *payload
	return nil
}

func (m *MemoryFingerprintCache) Close() error { return nil }
