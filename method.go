package authsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authsession/jwt"
)

// AuthenticationMethod is one of [LocalPassword], [RefreshCookie] or
// [ExternalIdentity]. The set is closed.
type AuthenticationMethod interface {
	methodName() string
}

// LocalPassword authenticates with an email and password.
type LocalPassword struct {
	Email    string
	Password string
}

// RefreshCookie authenticates with a refresh token, usually read from the
// refresh cookie.
type RefreshCookie struct {
	Token string
}

// ExternalIdentity is an identity already verified by an external provider.
type ExternalIdentity struct {
	Provider   string
	Email      string
	ExternalID string
}

func (LocalPassword) methodName() string    { return "password" }
func (RefreshCookie) methodName() string    { return "refresh" }
func (ExternalIdentity) methodName() string { return "external" }

// Authenticate resolves method to a principal that may hold a session. It
// has no side effects beyond an opportunistic password rehash; use Login,
// Refresh or LoginExternal to open a session.
//
// Verification failures are returned as *AuthError.
func (e *Engine) Authenticate(ctx context.Context, method AuthenticationMethod) (Principal, error) {
	if !e.ready() {
		return Principal{}, ErrEngineNotReady
	}

	var (
		principal Principal
		err       error
	)
	switch m := method.(type) {
	case LocalPassword:
		principal, err = e.ValidateCredentials(ctx, m.Email, m.Password)
	case RefreshCookie:
		principal, err = e.authenticateRefresh(ctx, m.Token)
	case ExternalIdentity:
		principal, err = e.resolveExternal(ctx, m)
	default:
		return Principal{}, ErrUnsupportedMethod
	}
	if err != nil {
		return Principal{}, e.surface(err)
	}

	if err := e.checkActive(ctx, principal); err != nil {
		return Principal{}, e.surface(err)
	}
	return principal, nil
}

// authenticateRefresh checks a refresh token without rotating it.
func (e *Engine) authenticateRefresh(ctx context.Context, token string) (Principal, error) {
	claims, err := e.tokens.ParseRefresh(token)
	if err != nil {
		return Principal{}, tokenCause(err)
	}

	principal, err := e.lookupPrincipal(ctx, claims.Subject)
	if err != nil {
		return Principal{}, err
	}

	ok, err := e.refresh.Validate(ctx, claims.Subject, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}
	if !ok {
		return Principal{}, ErrTokenNotFound
	}
	return principal, nil
}

func (e *Engine) resolveExternal(ctx context.Context, identity ExternalIdentity) (Principal, error) {
	if e.resolver == nil {
		return Principal{}, ErrUnsupportedMethod
	}
	principal, err := e.resolver.ResolveExternal(ctx, identity)
	if err != nil {
		e.logger.ErrorContext(ctx, "external identity resolution failed",
			"event", "resolve_external", "provider", identity.Provider, "error", err)
		return Principal{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}
	return principal, nil
}

func (e *Engine) lookupPrincipal(ctx context.Context, id string) (Principal, error) {
	principal, err := e.principals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}
	return principal, nil
}

func (e *Engine) checkActive(ctx context.Context, principal Principal) error {
	if principal.canAuthenticate() {
		return nil
	}
	e.logger.InfoContext(ctx, "inactive principal rejected",
		"event", "check_active", "reason", "inactive_account", "principal_id", principal.ID)
	return ErrInactiveAccount
}

// surface converts a flow error into what callers see: verification
// failures become *AuthError, internal failures and context errors pass
// through.
func (e *Engine) surface(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInternalFailure),
		errors.Is(err, ErrEngineNotReady),
		errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return unauthorized(err)
	}
}

// tokenCause maps a jwt package error onto the engine taxonomy.
func tokenCause(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrPurposeMismatch):
		return fmt.Errorf("%w: %v", ErrTokenPurposeMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
