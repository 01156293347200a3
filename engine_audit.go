package authsession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsession/internal/limiters"
	"github.com/MrEthical07/authsession/session"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshFailure           = "refresh_failure"
	auditEventRefreshReuseDetected     = "refresh_reuse_detected"
	auditEventLogout                   = "logout"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventHandoffStarted           = "handoff_started"
	auditEventHandoffCompleted         = "handoff_completed"
	auditEventHandoffRejected          = "handoff_rejected"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
)

// AuditErrorCode is the machine-readable failure reason carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInactiveAccount    AuditErrorCode = "inactive_account"
	auditErrTokenNotFound      AuditErrorCode = "token_not_found"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrPurposeMismatch    AuditErrorCode = "token_purpose_mismatch"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrPrincipalNotFound  AuditErrorCode = "principal_not_found"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		IP:          ClientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitTransition records a session state change driven by ev.
func (e *Engine) emitTransition(
	ctx context.Context,
	eventType string,
	method string,
	principalID string,
	from session.State,
	ev session.Event,
	err error,
) {
	if e == nil || e.audit == nil {
		return
	}

	to, terr := from.Transition(ev)
	if terr != nil {
		e.logger.ErrorContext(ctx, "invalid session transition",
			"event", eventType, "from", from.String(), "on", ev.String())
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Method:      method,
		IP:          ClientIPFromContext(ctx),
		Success:     err == nil,
		FromState:   from.String(),
		ToState:     to.String(),
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", nil, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

// auditErrorCode checks specific causes before ErrUnauthorized, which every
// AuthError also matches.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInactiveAccount):
		return auditErrInactiveAccount
	case errors.Is(err, ErrTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenPurposeMismatch):
		return auditErrPurposeMismatch
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrPrincipalNotFound
	case errors.Is(err, limiters.ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInternalFailure):
		return auditErrInternal
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
