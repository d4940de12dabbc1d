package cache

import (
	"context"
	"sync"
	"time"
)

// CodeStore holds short-lived one-time codes (password reset, account
// verification) keyed by purpose and email.
type CodeStore interface {
	Set(ctx context.Context, key string, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore is the fallback when Redis is not configured. Codes
// survive only as long as the process.
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryCodeStore) Set(_ context.Context, key string, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.code, true, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
