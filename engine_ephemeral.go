package authsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authsession/ephemeral"
	"github.com/MrEthical07/authsession/internal/limiters"
)

// linkFlow describes one "email me a link" flow.
type linkFlow struct {
	name          string
	purpose       ephemeral.Purpose
	ttl           time.Duration
	path          string
	ack           string
	limiter       *limiters.RequestLimiter
	eligible      func(Principal) bool
	send          func(ctx context.Context, email, token, link string) error
	auditEvent    string
	requestMetric MetricID
	limitedMetric MetricID
}

// requestLink runs a link flow. Every outcome returns the same
// acknowledgement; the cause only reaches the log.
func (e *Engine) requestLink(ctx context.Context, f linkFlow, email string) Acknowledgement {
	ack := Acknowledgement{Message: f.ack}
	email = normalizeEmail(email)
	e.metricInc(f.requestMetric)

	if err := f.limiter.CheckRequest(ctx, email, ClientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrRateLimited) {
			e.metricInc(f.limitedMetric)
			e.emitRateLimit(ctx, f.name)
			e.logger.InfoContext(ctx, "link request throttled", "event", f.name, "reason", "rate_limited")
			return ack
		}
		e.logger.ErrorContext(ctx, "link request limiter failed", "event", f.name, "reason", "limiter_error", "error", err)
		return ack
	}

	principal, err := e.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.logger.InfoContext(ctx, "link request ignored", "event", f.name, "reason", "principal_not_found")
		} else {
			e.logger.ErrorContext(ctx, "link request lookup failed", "event", f.name, "reason", "lookup_error", "error", err)
		}
		return ack
	}
	if f.eligible != nil && !f.eligible(principal) {
		e.logger.InfoContext(ctx, "link request ignored", "event", f.name, "reason", "not_eligible", "principal_id", principal.ID)
		return ack
	}

	token, err := e.ephemeral.Create(ctx, f.purpose, principal.ID, f.ttl)
	if err != nil {
		e.logger.ErrorContext(ctx, "link token create failed", "event", f.name, "reason", "store_error",
			"principal_id", principal.ID, "error", err)
		return ack
	}

	link := e.config.Handoff.FrontendBaseURL + f.path + "#token=" + token
	if e.sender == nil {
		e.logger.ErrorContext(ctx, "link not sent", "event", f.name, "reason", "no_sender", "principal_id", principal.ID)
		return ack
	}
	if err := f.send(ctx, principal.Email, token, link); err != nil {
		e.logger.ErrorContext(ctx, "link send failed", "event", f.name, "reason", "send_error",
			"principal_id", principal.ID, "error", err)
		e.emitAudit(ctx, f.auditEvent, false, principal.ID, fmt.Errorf("%w: %v", ErrInternalFailure, err), nil)
		return ack
	}

	e.emitAudit(ctx, f.auditEvent, true, principal.ID, nil, nil)
	return ack
}

// consumeFor redeems token and requires it to have been minted for want.
// A token with the wrong purpose is still burned.
func (e *Engine) consumeFor(ctx context.Context, token string, want ephemeral.Purpose) (string, error) {
	entry, err := e.ephemeral.Consume(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, ephemeral.ErrNotFound):
		return "", ErrTokenNotFound
	case errors.Is(err, ephemeral.ErrExpired):
		e.metricInc(MetricEphemeralExpired)
		return "", ErrTokenExpired
	default:
		e.logger.ErrorContext(ctx, "ephemeral consume failed", "event", string(want), "error", err)
		return "", fmt.Errorf("%w: %v", ErrInternalFailure, err)
	}

	if entry.Purpose != want {
		e.logger.WarnContext(ctx, "ephemeral token purpose mismatch", "event", string(want),
			"reason", "purpose_mismatch", "got", string(entry.Purpose), "principal_id", entry.PrincipalID)
		return "", ErrTokenPurposeMismatch
	}
	return entry.PrincipalID, nil
}

func storeUpdateError(err error) error {
	if errors.Is(err, ErrPrincipalNotFound) {
		return ErrPrincipalNotFound
	}
	return fmt.Errorf("%w: %v", ErrInternalFailure, err)
}
