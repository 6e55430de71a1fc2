package cache

import (
	"context"
	"sync"
	"time"
)

type MemoryOption func(*memoryStore)

// WithClock overrides the clock used to sweep expired entries.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryStore) {
		s.now = now
	}
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	now     func() time.Time
}

// MemoryStore is the process-local store. Entries live until they are
// overwritten or removed by Sweep.
type MemoryStore interface {
	Store
	Sweep() int
	Len() int
	RunJanitor(ctx context.Context, interval time.Duration)
}

func NewMemoryStore(opts ...MemoryOption) MemoryStore {
	s := &memoryStore{
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

func (s *memoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	s.mu.Lock()
	s.entries[key] = *entry
	s.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *memoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !entry.Live(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RunJanitor sweeps every interval until ctx is done.
func (s *memoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
