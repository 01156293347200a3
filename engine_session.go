package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/authsession/session"
)

// Login validates credentials and opens a session: it issues a token pair,
// stores the refresh hash and, when w is non-nil, writes the session
// cookies.
func (e *Engine) Login(ctx context.Context, w http.ResponseWriter, email, pass string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	method := LocalPassword{Email: email, Password: pass}

	principal, err := e.Authenticate(ctx, method)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitTransition(ctx, auditEventLoginFailure, method.methodName(), principal.ID,
			session.StateAuthenticating, session.EventFail, err)
		return TokenPair{}, err
	}

	pair, err := e.establish(ctx, w, principal, false)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitTransition(ctx, auditEventLoginFailure, method.methodName(), principal.ID,
			session.StateAuthenticating, session.EventFail, err)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitTransition(ctx, auditEventLoginSuccess, method.methodName(), principal.ID,
		session.StateAuthenticating, session.EventSucceed, nil)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The stored hash is
// swapped atomically, so when the same token is presented concurrently
// exactly one call succeeds. A superseded token fails as unauthorized.
func (e *Engine) Refresh(ctx context.Context, w http.ResponseWriter, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	return e.rotateSession(ctx, w, refreshToken, false)
}

// RefreshRequest is Refresh with the token taken from the refresh cookie
// of r. When r still carries the authenticated marker, the marker is
// re-issued with the new refresh expiry so it lives as long as the session.
func (e *Engine) RefreshRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	_, token := e.cookies.Read(r)
	return e.rotateSession(ctx, w, token, e.cookies.HasMarker(r))
}

func (e *Engine) rotateSession(ctx context.Context, w http.ResponseWriter, refreshToken string, marker bool) (TokenPair, error) {
	pair, principalID, err := e.refreshInternal(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitTransition(ctx, auditEventRefreshFailure, RefreshCookie{}.methodName(), principalID,
			session.StateRefreshing, session.EventFail, err)
		return TokenPair{}, e.surface(err)
	}

	if w != nil {
		e.cookies.Write(w, sessionTokens(pair), marker)
	}
	e.metricInc(MetricRefreshSuccess)
	e.emitTransition(ctx, auditEventRefreshSuccess, RefreshCookie{}.methodName(), principalID,
		session.StateRefreshing, session.EventSucceed, nil)
	return pair, nil
}

func (e *Engine) refreshInternal(ctx context.Context, presented string) (TokenPair, string, error) {
	claims, err := e.tokens.ParseRefresh(presented)
	if err != nil {
		e.logger.InfoContext(ctx, "refresh rejected", "event", "refresh", "reason", "token_invalid", "error", err)
		return TokenPair{}, "", tokenCause(err)
	}
	principalID := claims.Subject

	principal, err := e.lookupPrincipal(ctx, principalID)
	if err != nil {
		return TokenPair{}, principalID, err
	}
	if err := e.checkActive(ctx, principal); err != nil {
		return TokenPair{}, principalID, err
	}

	issued, err := e.tokens.IssuePair(principalID)
	if err != nil {
		e.logger.ErrorContext(ctx, "token issue failed", "event", "refresh", "principal_id", principalID, "error", err)
		return TokenPair{}, principalID, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}

	swapped, err := e.refresh.Swap(ctx, principalID, presented, issued.Refresh)
	if err != nil {
		e.logger.ErrorContext(ctx, "refresh swap failed", "event", "refresh", "principal_id", principalID, "error", err)
		return TokenPair{}, principalID, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}
	if !swapped {
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, principalID, ErrTokenNotFound, nil)
		e.logger.WarnContext(ctx, "refresh rejected", "event", "refresh", "reason", "hash_mismatch", "principal_id", principalID)
		return TokenPair{}, principalID, ErrTokenNotFound
	}

	return tokenPair(issued.Access, issued.AccessExpiresAt, issued.Refresh, issued.RefreshExpiresAt), principalID, nil
}

// Logout revokes the principal's refresh token and clears the cookies.
// Access tokens already issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.refresh.Revoke(ctx, principalID); err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			e.logger.ErrorContext(ctx, "refresh revoke failed", "event", "logout", "principal_id", principalID, "error", err)
			return fmt.Errorf("%w: %v", ErrInternalFailure, err)
		}
		// Nothing left to revoke.
		e.logger.InfoContext(ctx, "logout for unknown principal", "event", "logout", "principal_id", principalID)
	}
	if w != nil {
		e.cookies.Clear(w)
	}

	e.metricInc(MetricLogout)
	e.emitTransition(ctx, auditEventLogout, "", principalID,
		session.StateAuthenticated, session.EventLogout, nil)
	return nil
}

// ValidateAccess verifies an access token. It performs no storage lookups.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (Claims, error) {
	if !e.ready() {
		return Claims{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.tokens.ParseAccess(token)
	if err != nil {
		return Claims{}, unauthorized(tokenCause(err))
	}

	out := Claims{PrincipalID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// establish is the entry action of the Authenticated state, shared by every
// way in: issue a pair, rotate the stored refresh hash, write cookies.
func (e *Engine) establish(ctx context.Context, w http.ResponseWriter, principal Principal, redirect bool) (TokenPair, error) {
	issued, err := e.tokens.IssuePair(principal.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "token issue failed", "event", "establish", "principal_id", principal.ID, "error", err)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}

	if err := e.refresh.Rotate(ctx, principal.ID, issued.Refresh); err != nil {
		e.logger.ErrorContext(ctx, "refresh rotate failed", "event", "establish", "principal_id", principal.ID, "error", err)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}

	pair := tokenPair(issued.Access, issued.AccessExpiresAt, issued.Refresh, issued.RefreshExpiresAt)
	if w != nil {
		e.cookies.Write(w, sessionTokens(pair), redirect)
	}
	return pair, nil
}

func tokenPair(access string, accessExp time.Time, refreshToken string, refreshExp time.Time) TokenPair {
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}
}

func sessionTokens(p TokenPair) session.Tokens {
	return session.Tokens{
		Access:           p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		Refresh:          p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
