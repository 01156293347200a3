package authsession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authsession/ephemeral"
)

// ForgotPassword sends a reset link to email if it belongs to a principal
// that can sign in. The acknowledgement is identical whether or not
// anything was sent.
func (e *Engine) ForgotPassword(ctx context.Context, email string) Acknowledgement {
	if !e.ready() {
		return Acknowledgement{Message: resetAcknowledgement}
	}
	return e.requestLink(ctx, linkFlow{
		name:          "password_reset_request",
		purpose:       ephemeral.PurposePasswordReset,
		ttl:           e.config.PasswordReset.TTL,
		path:          "/reset-password",
		ack:           resetAcknowledgement,
		limiter:       e.resetLimiter,
		eligible:      Principal.canAuthenticate,
		send:          e.sendResetLink,
		auditEvent:    auditEventPasswordResetRequest,
		requestMetric: MetricPasswordResetRequest,
		limitedMetric: MetricPasswordResetRateLimited,
	}, email)
}

// ResetPassword redeems a reset token, stores the new password hash and
// revokes the principal's refresh token. The token is single use whatever
// the outcome.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	principalID, err := e.resetPassword(ctx, token, newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, principalID, err, nil)
		return e.surface(err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, principalID, nil, nil)
	return nil
}

func (e *Engine) resetPassword(ctx context.Context, token, newPassword string) (string, error) {
	principalID, err := e.consumeFor(ctx, token, ephemeral.PurposePasswordReset)
	if err != nil {
		e.logger.InfoContext(ctx, "password reset rejected", "event", "password_reset_confirm", "error", err)
		return "", err
	}

	hash, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		e.logger.ErrorContext(ctx, "password hash failed", "event", "password_reset_confirm",
			"principal_id", principalID, "error", err)
		return principalID, fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}

	if err := e.principals.UpdatePasswordHash(ctx, principalID, hash); err != nil {
		e.logger.ErrorContext(ctx, "password update failed", "event", "password_reset_confirm",
			"principal_id", principalID, "error", err)
		return principalID, storeUpdateError(err)
	}

	if err := e.refresh.Revoke(ctx, principalID); err != nil {
		e.logger.ErrorContext(ctx, "refresh revoke after reset failed", "event", "password_reset_confirm",
			"principal_id", principalID, "error", err)
		return principalID, storeUpdateError(err)
	}
	return principalID, nil
}

func (e *Engine) sendResetLink(ctx context.Context, email, token, link string) error {
	return e.sender.SendResetLink(ctx, email, token, link)
}
