package authsession

import (
	"context"

	"github.com/MrEthical07/authsession/ephemeral"
)

// RequestEmailVerification sends a verification link to email if it
// belongs to a principal that is not yet active. The acknowledgement is
// identical whether or not anything was sent.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) Acknowledgement {
	if !e.ready() {
		return Acknowledgement{Message: verificationAcknowledgement}
	}
	return e.requestLink(ctx, linkFlow{
		name:          "email_verification_request",
		purpose:       ephemeral.PurposeEmailVerification,
		ttl:           e.config.EmailVerification.TTL,
		path:          "/verify-email",
		ack:           verificationAcknowledgement,
		limiter:       e.verificationLimiter,
		eligible:      func(p Principal) bool { return !p.Active },
		send:          e.sendVerificationLink,
		auditEvent:    auditEventEmailVerificationRequest,
		requestMetric: MetricEmailVerificationRequest,
		limitedMetric: MetricEmailVerificationRateLimited,
	}, email)
}

// VerifyEmail redeems a verification token and marks the principal active.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	principalID, err := e.consumeFor(ctx, token, ephemeral.PurposeEmailVerification)
	if err == nil {
		if uerr := e.principals.UpdateActiveFlag(ctx, principalID, true); uerr != nil {
			e.logger.ErrorContext(ctx, "activate principal failed", "event", "email_verification_confirm",
				"principal_id", principalID, "error", uerr)
			err = storeUpdateError(uerr)
		}
	} else {
		e.logger.InfoContext(ctx, "email verification rejected", "event", "email_verification_confirm", "error", err)
	}

	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, principalID, err, nil)
		return e.surface(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, principalID, nil, nil)
	return nil
}

func (e *Engine) sendVerificationLink(ctx context.Context, email, token, link string) error {
	return e.sender.SendVerificationLink(ctx, email, token, link)
}
