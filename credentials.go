package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidateCredentials checks email and password against the principal
// store. An unknown email and a wrong password both return
// ErrInvalidCredentials; only the log says which one happened.
//
// Inactive accounts are not rejected here. Callers that open a session do
// that check.
func (e *Engine) ValidateCredentials(ctx context.Context, email, pass string) (Principal, error) {
	if !e.ready() {
		return Principal{}, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	principal, err := e.principals.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			e.logger.ErrorContext(ctx, "credential lookup failed",
				"event", "validate_credentials", "reason", "lookup_error", "error", err)
			return Principal{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
		}
		_, _ = e.verifyPassword(ctx, pass, e.decoyHash)
		e.logger.InfoContext(ctx, "credential check failed",
			"event", "validate_credentials", "reason", "principal_not_found")
		return Principal{}, ErrInvalidCredentials
	}

	ok, err := e.verifyPassword(ctx, pass, principal.PasswordHash)
	if err != nil {
		if ctx.Err() != nil {
			return Principal{}, ctx.Err()
		}
		e.logger.WarnContext(ctx, "credential check failed",
			"event", "validate_credentials", "reason", "hash_error",
			"principal_id", principal.ID, "error", err)
		return Principal{}, ErrInvalidCredentials
	}
	if !ok {
		e.logger.InfoContext(ctx, "credential check failed",
			"event", "validate_credentials", "reason", "password_mismatch",
			"principal_id", principal.ID)
		return Principal{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, principal, pass)
	}
	return principal, nil
}

// verifyPassword runs the comparison inside the bounded verification pool.
func (e *Engine) verifyPassword(ctx context.Context, pass, encodedHash string) (bool, error) {
	if err := e.verifyPool.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer e.verifyPool.Release(1)

	return e.hasher.Verify(pass, encodedHash)
}

func (e *Engine) hashPassword(ctx context.Context, pass string) (string, error) {
	if err := e.verifyPool.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.verifyPool.Release(1)

	return e.hasher.Hash(pass)
}

// upgradeHash is best effort: a failure is logged and the login proceeds.
func (e *Engine) upgradeHash(ctx context.Context, principal Principal, pass string) {
	needs, err := e.hasher.NeedsRehash(principal.PasswordHash)
	if err != nil || !needs {
		return
	}

	upgraded, err := e.hashPassword(ctx, pass)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed",
			"event", "password_rehash", "principal_id", principal.ID, "error", err)
		return
	}
	if err := e.principals.UpdatePasswordHash(ctx, principal.ID, upgraded); err != nil {
		e.logger.WarnContext(ctx, "password rehash update failed",
			"event", "password_rehash", "principal_id", principal.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
