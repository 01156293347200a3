package refresh

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/authsession/internal"
)

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("refresh store unavailable")

// Store persists the refresh token hash of each principal.
type Store interface {
	// Rotate replaces whatever is stored for principalID with the hash of token.
	Rotate(ctx context.Context, principalID, token string) error
	// Validate reports whether presented matches the stored hash. It returns
	// false without error when nothing is stored.
	Validate(ctx context.Context, principalID, presented string) (bool, error)
	// Swap replaces the stored hash with the hash of next only if presented
	// currently matches. It reports whether the swap happened.
	Swap(ctx context.Context, principalID, presented, next string) (bool, error)
	// Revoke clears the stored hash.
	Revoke(ctx context.Context, principalID string) error
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	return internal.HashToken(token)
}

func matches(storedHash, presented string) bool {
	if storedHash == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashToken(presented))) == 1
}
