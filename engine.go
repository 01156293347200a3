package authsession

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrEthical07/authsession/ephemeral"
	internalaudit "github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/limiters"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/password"
	"github.com/MrEthical07/authsession/refresh"
	"github.com/MrEthical07/authsession/session"
)

// Engine runs every authentication flow. It is safe for concurrent use once
// returned by [Builder.Build].
type Engine struct {
	config Config
	logger *slog.Logger

	tokens     *jwt.Manager
	hasher     password.Hasher
	verifyPool *semaphore.Weighted
	// decoyHash is verified against when the email is unknown so both
	// failure causes cost one hash computation.
	decoyHash string

	principals PrincipalStore
	refresh    refresh.Store
	ephemeral  ephemeral.Store
	cookies    *session.CookieManager
	sender     MessageSender
	resolver   IdentityResolver

	resetLimiter        *limiters.RequestLimiter
	verificationLimiter *limiters.RequestLimiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	stopJanitor context.CancelFunc
	janitorDone chan struct{}
}

// Close stops background work and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.stopJanitor != nil {
		e.stopJanitor()
		<-e.janitorDone
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// Cookies exposes the cookie manager so HTTP handlers can read tokens from
// requests with the configured names.
func (e *Engine) Cookies() *session.CookieManager {
	return e.cookies
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.tokens != nil && e.principals != nil
}

func (e *Engine) now() time.Time {
	return time.Now()
}
