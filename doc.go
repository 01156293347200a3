// Package authsession implements the session and token lifecycle of a web
// application: password login, JWT access and refresh tokens with rotation,
// single-use password reset and email verification links, a cross-origin
// login handoff, and the cookies that carry tokens to the browser.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authsession is the public surface. It exposes [Engine], [Builder],
// [Config] and value types such as [TokenPair] and [Claims]. Token signing
// lives in jwt, hashing in password, storage in refresh and ephemeral, and
// cookie attributes in session. Principal persistence and message delivery
// are supplied by the caller through [PrincipalStore] and [MessageSender].
//
// # Errors
//
// Every verification failure is returned as an [*AuthError] whose message is
// "unauthorized". errors.Is still matches the specific cause, for example
// [ErrTokenExpired] or [ErrInactiveAccount], so callers can log it without
// leaking it. Persistence failures surface as [ErrInternalFailure].
//
// The reset and verification request paths never fail: they return the same
// [Acknowledgement] whether or not the email belongs to anyone.
package authsession
