package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the fallback Store when Redis is disabled or unreachable.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (s *MemoryStore) set(key string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{data: data, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *MemoryStore) GetBrawlers(_ context.Context) ([]byte, bool) {
	return s.get(keyBrawlers)
}

func (s *MemoryStore) SetBrawlers(_ context.Context, data []byte, ttl time.Duration) {
	s.set(keyBrawlers, data, ttl)
}

func (s *MemoryStore) GetEvents(_ context.Context) ([]byte, bool) {
	return s.get(keyEvents)
}

func (s *MemoryStore) SetEvents(_ context.Context, data []byte, ttl time.Duration) {
	s.set(keyEvents, data, ttl)
}
