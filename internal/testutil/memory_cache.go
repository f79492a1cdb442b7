package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrStoreUnavailable = errors.New("idempotency store unavailable")

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryIdempotencyStore behaves like a single Redis node. SetUnavailable simulates an outage.
type MemoryIdempotencyStore struct {
	mu          sync.Mutex
	items       map[string]cacheItem
	unavailable bool
	nowFn       func() time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		items: map[string]cacheItem{},
		nowFn: time.Now,
	}
}

func (s *MemoryIdempotencyStore) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

func (s *MemoryIdempotencyStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return false, ErrStoreUnavailable
	}
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = cacheItem{value: append([]byte(nil), value...), expiresAt: s.nowFn().Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrStoreUnavailable
	}
	s.items[key] = cacheItem{value: append([]byte(nil), value...), expiresAt: s.nowFn().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, false, ErrStoreUnavailable
	}
	item, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (s *MemoryIdempotencyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrStoreUnavailable
	}
	delete(s.items, key)
	return nil
}

// SetClock replaces the clock used for expiry.
func (s *MemoryIdempotencyStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// Flush drops every key, as after a cache node restart without persistence.
func (s *MemoryIdempotencyStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]cacheItem{}
}

func (s *MemoryIdempotencyStore) live(key string) (cacheItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return cacheItem{}, false
	}
	if !item.expiresAt.After(s.nowFn()) {
		delete(s.items, key)
		return cacheItem{}, false
	}
	return item, true
}
