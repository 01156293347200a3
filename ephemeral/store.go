package ephemeral

import (
	"context"
	"errors"
	"time"
)

// Purpose names the flow a token was minted for.
type Purpose string

const (
	PurposePasswordReset     Purpose = "password-reset"
	PurposeEmailVerification Purpose = "email-verification"
)

// Default lifetimes per purpose.
const (
	PasswordResetTTL     = time.Hour
	EmailVerificationTTL = 24 * time.Hour
)

var (
	// ErrNotFound is returned for tokens that were never issued or were already consumed.
	ErrNotFound = errors.New("ephemeral token not found")
	// ErrExpired is returned once for a token presented after its expiry.
	ErrExpired = errors.New("ephemeral token expired")
	// ErrInvalidPurpose is returned by Create for an unknown purpose.
	ErrInvalidPurpose = errors.New("invalid ephemeral token purpose")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("ephemeral store unavailable")
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposePasswordReset, PurposeEmailVerification:
		return true
	}
	return false
}

// DefaultTTL returns the standard lifetime for p, or zero for unknown purposes.
func (p Purpose) DefaultTTL() time.Duration {
	switch p {
	case PurposePasswordReset:
		return PasswordResetTTL
	case PurposeEmailVerification:
		return EmailVerificationTTL
	}
	return 0
}

// Entry is what a token resolves to.
type Entry struct {
	PrincipalID string
	Purpose     Purpose
	ExpiresAt   time.Time
}

// expired uses a strict comparison: a token is still valid at the exact
// instant of its expiry.
func (e Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store creates and consumes ephemeral tokens. Implementations must make
// Consume atomic so that concurrent callers see at most one success.
type Store interface {
	// Create mints a token bound to principalID that expires ttl from now.
	// A non-positive ttl yields a token that is already expired.
	Create(ctx context.Context, purpose Purpose, principalID string, ttl time.Duration) (string, error)
	// Consume resolves and deletes token.
	Consume(ctx context.Context, token string) (Entry, error)
}

func validateCreate(purpose Purpose, principalID string) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	if principalID == "" {
		return errors.New("ephemeral: empty principal id")
	}
	return nil
}
