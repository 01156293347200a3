// Package middleware exposes HTTP middleware built on authsession.Engine.
//
// # Guards
//
//   - [Guard] verifies the access token from the Authorization header or
//     the access cookie and injects the claims into the request context.
//   - [ClientIP] attaches the remote address for per-IP throttling.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens itself; every decision is delegated to Engine.ValidateAccess.
package middleware
