package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authsession/session"
)

const handoffCallbackPath = "/auth-callback"

// StartHandoff issues a two-minute handoff token for principal and returns
// the frontend callback URL carrying it in the fragment. Fragments are not
// sent to servers, so the token stays out of access logs and Referer
// headers.
func (e *Engine) StartHandoff(ctx context.Context, principal Principal) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	redirectURL, err := e.handoffURL(ctx, principal)
	if err != nil {
		return "", err
	}
	e.recordHandoffStarted(ctx, principal)
	return redirectURL, nil
}

func (e *Engine) handoffURL(ctx context.Context, principal Principal) (string, error) {
	token, _, err := e.tokens.IssueHandoff(principal.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "handoff issue failed", "event", "handoff_start", "principal_id", principal.ID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}
	return e.config.Handoff.FrontendBaseURL + handoffCallbackPath + "#token=" + token, nil
}

func (e *Engine) recordHandoffStarted(ctx context.Context, principal Principal) {
	e.metricInc(MetricHandoffStarted)
	e.emitAudit(ctx, auditEventHandoffStarted, true, principal.ID, nil, nil)
}

// CompleteHandoff exchanges a handoff token for a real session on the
// frontend's origin. The purpose claim is checked before the principal is
// looked up. The handoff token is not revoked and stays usable until it
// expires.
func (e *Engine) CompleteHandoff(ctx context.Context, w http.ResponseWriter, token string) (Principal, TokenPair, error) {
	if !e.ready() {
		return Principal{}, TokenPair{}, ErrEngineNotReady
	}

	principal, pair, err := e.completeHandoff(ctx, w, token)
	if err != nil {
		e.metricInc(MetricHandoffRejected)
		e.emitTransition(ctx, auditEventHandoffRejected, "handoff", principal.ID,
			session.StateAuthenticating, session.EventFail, err)
		return Principal{}, TokenPair{}, e.surface(err)
	}

	e.metricInc(MetricHandoffCompleted)
	e.emitTransition(ctx, auditEventHandoffCompleted, "handoff", principal.ID,
		session.StateAuthenticating, session.EventSucceed, nil)
	return principal, pair, nil
}

func (e *Engine) completeHandoff(ctx context.Context, w http.ResponseWriter, token string) (Principal, TokenPair, error) {
	claims, err := e.tokens.ParseHandoff(token)
	if err != nil {
		e.logger.InfoContext(ctx, "handoff rejected", "event", "handoff_complete", "reason", "token_invalid", "error", err)
		return Principal{}, TokenPair{}, tokenCause(err)
	}

	principal, err := e.lookupPrincipal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.logger.InfoContext(ctx, "handoff rejected", "event", "handoff_complete",
				"reason", "principal_not_found", "principal_id", claims.Subject)
		}
		return Principal{}, TokenPair{}, err
	}
	if err := e.checkActive(ctx, principal); err != nil {
		return principal, TokenPair{}, err
	}

	pair, err := e.establish(ctx, w, principal, false)
	if err != nil {
		return principal, TokenPair{}, err
	}
	return principal, pair, nil
}

// LoginExternal opens a session for an identity verified by an external
// provider and redirects the browser to the frontend callback. All three
// cookies, the marker included, are written before the redirect. On error
// nothing is written and the caller renders the failure.
func (e *Engine) LoginExternal(ctx context.Context, w http.ResponseWriter, r *http.Request, identity ExternalIdentity) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	principal, err := e.Authenticate(ctx, identity)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitTransition(ctx, auditEventLoginFailure, identity.methodName(), "",
			session.StateAuthenticating, session.EventFail, err)
		return err
	}

	// Minted before establish so a signing failure leaves w untouched.
	redirectURL, err := e.handoffURL(ctx, principal)
	if err == nil {
		_, err = e.establish(ctx, w, principal, true)
	}
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitTransition(ctx, auditEventLoginFailure, identity.methodName(), principal.ID,
			session.StateAuthenticating, session.EventFail, err)
		return err
	}

	e.recordHandoffStarted(ctx, principal)
	e.metricInc(MetricLoginSuccess)
	e.emitTransition(ctx, auditEventLoginSuccess, identity.methodName(), principal.ID,
		session.StateAuthenticating, session.EventSucceed, nil)
	http.Redirect(w, r, redirectURL, http.StatusFound)
	return nil
}
