package counter

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process [Store]. Expiry is lazy: an expired entry is
// treated as absent and replaced on the next write.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// live returns the entry for key if it exists and has not expired.
// Caller holds s.mu.
func (s *MemoryStore) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !now.Before(e.expiresAt) {
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key, s.now())
	if !ok || e.count <= 0 {
		return 0, false, nil
	}
	return e.count, true, nil
}

func (s *MemoryStore) IncrementOrCreate(_ context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error) {
	if err := checkIncrement(key, ttlOnCreate); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		e = memoryEntry{expiresAt: now.Add(ttlOnCreate)}
	}
	e.count += delta
	s.entries[key] = e
	return e.count, nil
}

func (s *MemoryStore) RemainingTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		return nil
	}
	e.expiresAt = now.Add(ttl)
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep drops expired entries.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
