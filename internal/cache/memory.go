package cache

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type entry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore implements Store in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	gens      map[string]int64
	now       func() time.Time
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its expiry sweeper.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		gens:    make(map[string]int64),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLocked(key, val, ttl)
	return nil
}

func (s *MemoryStore) setLocked(key string, val []byte, ttl time.Duration) {
	cp := make([]byte, len(val))
	copy(cp, val)
	s.entries[key] = entry{val: cp, expiresAt: s.now().Add(ttl)}
}

func (s *MemoryStore) Generation(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[key], nil
}

func (s *MemoryStore) SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[key] != gen {
		return false, nil
	}
	s.setLocked(key, val, ttl)
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.entries, k)
		s.gens[k]++
	}
	return nil
}

// Close stops the sweeper.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
