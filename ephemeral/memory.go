package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authsession/internal"
)

// MemoryStore is an in-process Store. Entries are keyed by token hash.
//
// Expired entries are removed when presented. Tokens that are never
// presented stay until Sweep removes them; Run calls Sweep periodically.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     now,
	}
}

// Create stores a new entry and returns its token.
func (s *MemoryStore) Create(ctx context.Context, purpose Purpose, principalID string, ttl time.Duration) (string, error) {
	if err := validateCreate(purpose, principalID); err != nil {
		return "", err
	}
	token, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[internal.HashToken(token)] = Entry{
		PrincipalID: principalID,
		Purpose:     purpose,
		ExpiresAt:   s.now().Add(ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Consume removes the entry for token and returns it. An expired entry is
// removed too and reported as ErrExpired.
func (s *MemoryStore) Consume(ctx context.Context, token string) (Entry, error) {
	key := internal.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	delete(s.entries, key)

	if entry.expired(s.now()) {
		return Entry{}, ErrExpired
	}
	return entry, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep deletes entries that expired more than retention ago and returns
// how many were removed. Until swept, an expired token reports ErrExpired.
func (s *MemoryStore) Sweep(retention time.Duration) int {
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.expired(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(retention)
		}
	}
}
