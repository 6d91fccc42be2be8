// Package idempotency provides effectively-once processing over an
// at-least-once bus: consumers claim an event id before performing side
// effects and duplicates are discarded.
package idempotency

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL ages records out after a day; redeliveries older than
	// that are rare enough to accept a duplicate.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries bounds memory; oldest records are evicted first
	// under capacity pressure, trading memory for a bounded false-negative
	// rate on very old duplicates.
	DefaultMaxEntries = 10_000
)

type status string

const (
	statusInProgress status = "IN_PROGRESS"
	statusProcessed  status = "PROCESSED"
)

// Store tracks which event ids have been claimed or fully processed.
type Store interface {
	// TryStart atomically claims an event id. Exactly one caller observes
	// true for a given id while it is IN_PROGRESS or PROCESSED.
	TryStart(eventID string) bool
	// MarkProcessed transitions a claimed id to PROCESSED.
	MarkProcessed(eventID string)
}

// CacheStore is an in-process Store backed by a TTL cache.
type CacheStore struct {
	cache      *gocache.Cache
	maxEntries int
	logger     *slog.Logger

	evictMu sync.Mutex
}

// Option configures a CacheStore.
type Option func(*CacheStore)

// WithLogger sets the logger used for degraded-case warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *CacheStore) { s.logger = l }
}

// NewCacheStore creates a store with the given TTL and capacity.
// Non-positive arguments fall back to the defaults.
func NewCacheStore(ttl time.Duration, maxEntries int, opts ...Option) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &CacheStore{
		cache:      gocache.New(ttl, ttl/2),
		maxEntries: maxEntries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryStart claims eventID. An empty id cannot be deduplicated and is
// always allowed through: availability wins over consistency here, at the
// cost of possible duplicate processing for id-less events.
func (s *CacheStore) TryStart(eventID string) bool {
	if eventID == "" {
		s.logger.Warn("event without id, skipping idempotency check")
		return true
	}

	// Add fails if the key already exists, which gives us the atomic
	// putIfAbsent this store is built on.
	if err := s.cache.Add(eventID, statusInProgress, gocache.DefaultExpiration); err != nil {
		return false
	}
	s.enforceCapacity()
	return true
}

// MarkProcessed records that eventID completed successfully. The TTL
// restarts so a late redelivery within the window is still suppressed.
func (s *CacheStore) MarkProcessed(eventID string) {
	if eventID == "" {
		return
	}
	s.cache.Set(eventID, statusProcessed, gocache.DefaultExpiration)
}

// Forget drops a claim so a future delivery may retry. Used by the
// webhook receiver when publish fails after the delivery id was claimed.
func (s *CacheStore) Forget(eventID string) {
	if eventID == "" {
		return
	}
	s.cache.Delete(eventID)
}

// Len returns the current record count, expired entries included until
// the janitor sweeps them.
func (s *CacheStore) Len() int {
	return s.cache.ItemCount()
}

// enforceCapacity evicts the records closest to expiry (the oldest, since
// every record gets the same TTL) until the store fits the bound again.
func (s *CacheStore) enforceCapacity() {
	if s.cache.ItemCount() <= s.maxEntries {
		return
	}

	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	over := s.cache.ItemCount() - s.maxEntries
	if over <= 0 {
		return
	}

	type aged struct {
		key string
		exp int64
	}
	items := s.cache.Items()
	candidates := make([]aged, 0, len(items))
	for k, it := range items {
		candidates = append(candidates, aged{key: k, exp: it.Expiration})
	}
	// Partial selection would do, but the store only crosses capacity by
	// one entry per TryStart, so a full scan stays cheap and rare.
	for i := 0; i < over; i++ {
		oldest := -1
		for j, c := range candidates {
			if c.key == "" {
				continue
			}
			if oldest < 0 || c.exp < candidates[oldest].exp {
				oldest = j
			}
		}
		if oldest < 0 {
			return
		}
		s.cache.Delete(candidates[oldest].key)
		candidates[oldest].key = ""
	}
}
