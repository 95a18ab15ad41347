// Package cache provides cache.Store backends and the typed result cache
// used by the retrieval services.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helixml/cinerag/domain/cache"
)

// DefaultJanitorInterval is how often expired entries are swept from memory.
const DefaultJanitorInterval = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process cache.Store. Expiry is checked on every read
// and a background janitor reclaims expired entries.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	janitorInterval time.Duration
	now             func() time.Time
}

// WithJanitorInterval sets the sweep interval. Zero disables the janitor.
func WithJanitorInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) { o.janitorInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewMemoryStore creates a MemoryStore. Call Close to stop the janitor.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{janitorInterval: DefaultJanitorInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     o.now,
		stop:    make(chan struct{}),
	}
	if o.janitorInterval > 0 {
		go s.janitor(o.janitorInterval)
	}
	return s
}

// Get returns the value for key, or cache.ErrMiss when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || entry.expired(s.now()) {
		return nil, cache.ErrMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes keys. Absent keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return nil
}

// Keys returns the live keys matching pattern in lexical order.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := s.now()

	s.mu.RLock()
	keys := make([]string, 0)
	for key, entry := range s.entries {
		if !entry.expired(now) && cache.Match(pattern, key) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

var _ cache.Store = (*MemoryStore)(nil)
