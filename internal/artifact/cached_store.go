package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	memcache "genstudio/internal/cache/memory"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	BlobMaxBytes   int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		BlobMaxBytes:   64 * 1024 * 1024,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 128,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  256,
	}
}

func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.BlobTTL <= 0 {
		c.BlobTTL = def.BlobTTL
	}
	if c.BlobMaxEntries <= 0 {
		c.BlobMaxEntries = def.BlobMaxEntries
	}
	if c.BlobMaxBytes < 0 {
		c.BlobMaxBytes = def.BlobMaxBytes
	}
	if c.ListTTL <= 0 {
		c.ListTTL = def.ListTTL
	}
	if c.ListMaxEntries <= 0 {
		c.ListMaxEntries = def.ListMaxEntries
	}
	if c.URLTTL <= 0 {
		c.URLTTL = def.URLTTL
	}
	if c.URLMaxEntries <= 0 {
		c.URLMaxEntries = def.URLMaxEntries
	}
	return c
}

// CacheStats counts cache outcomes and origin traffic.
type CacheStats struct {
	Hits         uint64
	Misses       uint64
	OriginReads  uint64
	OriginWrites uint64
	OriginErrors uint64
}

type cacheCounters struct {
	hits, misses, reads, writes, errors atomic.Uint64
}

// CachedStore is a read-through, write-through cache in front of another
// Store. Puts invalidate the run's listing and URL.
type CachedStore struct {
	origin Store

	blobs    *memcache.LRUTTL[string, []byte]
	listings *memcache.LRUTTL[string, []string]
	urls     *memcache.LRUTTL[string, string]
	counters cacheCounters
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	cfg = cfg.withDefaults()
	return &CachedStore{
		origin:   origin,
		blobs:    memcache.NewLRUTTL[string, []byte](cfg.BlobMaxEntries, cfg.BlobMaxBytes, cfg.BlobTTL),
		listings: memcache.NewLRUTTL[string, []string](cfg.ListMaxEntries, 0, cfg.ListTTL),
		urls:     memcache.NewLRUTTL[string, string](cfg.URLMaxEntries, 0, cfg.URLTTL),
	}
}

func (s *CachedStore) hit() {
	s.counters.hits.Add(1)
}

func (s *CachedStore) miss() {
	s.counters.misses.Add(1)
	s.counters.reads.Add(1)
}

func (s *CachedStore) Put(ctx context.Context, runID, path string, content []byte) error {
	s.counters.writes.Add(1)
	if err := s.origin.Put(ctx, runID, path, content); err != nil {
		s.counters.errors.Add(1)
		return err
	}
	key := objectKey(runID, path)
	copied := append([]byte(nil), content...)
	s.blobs.Set(key, copied, len(copied))
	s.listings.Delete(strings.TrimSpace(runID))
	s.urls.Delete(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, path string) ([]byte, error) {
	key := objectKey(runID, path)
	if raw, ok := s.blobs.Get(key); ok {
		s.hit()
		return append([]byte(nil), raw...), nil
	}
	s.miss()
	raw, err := s.origin.Get(ctx, runID, path)
	if err != nil {
		s.counters.errors.Add(1)
		return nil, err
	}
	copied := append([]byte(nil), raw...)
	s.blobs.Set(key, copied, len(copied))
	return append([]byte(nil), copied...), nil
}

func (s *CachedStore) GetURL(ctx context.Context, runID, path string) (string, error) {
	key := objectKey(runID, path)
	if u, ok := s.urls.Get(key); ok {
		s.hit()
		return u, nil
	}
	s.miss()
	u, err := s.origin.GetURL(ctx, runID, path)
	if err != nil {
		s.counters.errors.Add(1)
		return "", err
	}
	if strings.TrimSpace(u) != "" {
		s.urls.Set(key, u, len(u))
	}
	return u, nil
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if list, ok := s.listings.Get(runID); ok {
		s.hit()
		return append([]string(nil), list...), nil
	}
	s.miss()
	list, err := s.origin.List(ctx, runID)
	if err != nil {
		s.counters.errors.Add(1)
		return nil, err
	}
	copied := append([]string(nil), list...)
	size := 0
	for _, p := range copied {
		size += len(p)
	}
	s.listings.Set(runID, copied, size)
	return append([]string(nil), copied...), nil
}

func (s *CachedStore) Stats() CacheStats {
	if s == nil {
		return CacheStats{}
	}
	return CacheStats{
		Hits:         s.counters.hits.Load(),
		Misses:       s.counters.misses.Load(),
		OriginReads:  s.counters.reads.Load(),
		OriginWrites: s.counters.writes.Load(),
		OriginErrors: s.counters.errors.Load(),
	}
}
