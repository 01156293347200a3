package refresh

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// HashRepository reads and writes the refresh hash field of a principal
// record. An empty hash means no token is live.
type HashRepository interface {
	RefreshTokenHash(ctx context.Context, principalID string) (string, error)
	UpdateRefreshTokenHash(ctx context.Context, principalID, hash string) error
}

// PrincipalStore is a Store that writes through to the principal record.
//
// Operations on the same principal are serialised in process. Several
// processes sharing one database need RedisStore instead.
type PrincipalStore struct {
	repo  HashRepository
	locks [lockStripes]sync.Mutex
}

// NewPrincipalStore returns a PrincipalStore backed by repo.
func NewPrincipalStore(repo HashRepository) *PrincipalStore {
	return &PrincipalStore{repo: repo}
}

func (s *PrincipalStore) lock(principalID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Rotate replaces the stored hash with the hash of token.
func (s *PrincipalStore) Rotate(ctx context.Context, principalID, token string) error {
	defer s.lock(principalID)()
	return s.write(ctx, principalID, HashToken(token))
}

// Validate reports whether presented matches the stored hash.
func (s *PrincipalStore) Validate(ctx context.Context, principalID, presented string) (bool, error) {
	defer s.lock(principalID)()

	stored, err := s.read(ctx, principalID)
	if err != nil {
		return false, err
	}
	return matches(stored, presented), nil
}

// Swap stores the hash of next only if presented matches the current
// hash. The compare and the write happen under the principal's lock.
func (s *PrincipalStore) Swap(ctx context.Context, principalID, presented, next string) (bool, error) {
	defer s.lock(principalID)()

	stored, err := s.read(ctx, principalID)
	if err != nil {
		return false, err
	}
	if !matches(stored, presented) {
		return false, nil
	}
	if err := s.write(ctx, principalID, HashToken(next)); err != nil {
		return false, err
	}
	return true, nil
}

// Revoke clears the stored hash.
func (s *PrincipalStore) Revoke(ctx context.Context, principalID string) error {
	defer s.lock(principalID)()
	return s.write(ctx, principalID, "")
}

func (s *PrincipalStore) read(ctx context.Context, principalID string) (string, error) {
	stored, err := s.repo.RefreshTokenHash(ctx, principalID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return stored, nil
}

func (s *PrincipalStore) write(ctx context.Context, principalID, hash string) error {
	if err := s.repo.UpdateRefreshTokenHash(ctx, principalID, hash); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
