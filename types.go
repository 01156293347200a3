package authsession

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/authsession/internal/audit"
)

// Role distinguishes ordinary principals from administrators.
type Role string

const (
	// RoleOrdinary is the default role.
	RoleOrdinary Role = "ordinary"
	// RoleAdmin bypasses the inactive-account check.
	RoleAdmin Role = "admin"
)

// Principal is the identity record owned by the external [PrincipalStore].
// This package only reads it and requests updates to RefreshTokenHash,
// PasswordHash and Active.
type Principal struct {
	ID               string
	Email            string
	PasswordHash     string
	Active           bool
	Role             Role
	RefreshTokenHash string
}

// canAuthenticate reports whether the principal may hold a session.
func (p Principal) canAuthenticate() bool {
	return p.Active || p.Role == RoleAdmin
}

// TokenPair is an access token and a refresh token issued together.
// Only the hash of RefreshToken is ever persisted.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	PrincipalID string
	TokenID     string
	ExpiresAt   time.Time
}

// Acknowledgement is the fixed response of the reset and verification
// request paths. It never depends on whether the email exists.
type Acknowledgement struct {
	Message string `json:"message"`
}

const (
	resetAcknowledgement        = "The password reset link has been sent."
	verificationAcknowledgement = "The verification link has been sent."
)

// PrincipalStore is the persistence collaborator for principals.
//
// GetByEmail receives the email lowercased and trimmed. GetByID and GetByEmail
// must return an error wrapping [ErrPrincipalNotFound]
// when nothing matches. An empty hash passed to UpdateRefreshTokenHash clears
// the stored value.
type PrincipalStore interface {
	GetByID(ctx context.Context, id string) (Principal, error)
	GetByEmail(ctx context.Context, email string) (Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateRefreshTokenHash(ctx context.Context, id, hash string) error
	UpdateActiveFlag(ctx context.Context, id string, active bool) error
}

// MessageSender delivers reset and verification links. Delivery transport
// is the caller's concern.
type MessageSender interface {
	SendResetLink(ctx context.Context, email, token, link string) error
	SendVerificationLink(ctx context.Context, email, token, link string) error
}

// IdentityResolver turns an identity already verified by an external
// provider into a principal, creating one if needed.
type IdentityResolver interface {
	ResolveExternal(ctx context.Context, identity ExternalIdentity) (Principal, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that writes events to a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] that logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
