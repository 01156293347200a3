// Package session owns the browser-facing half of a login: the cookies
// that carry tokens and the state machine a session moves through.
//
// # Cookie attributes
//
// [AttributesFor] is the only place Secure and SameSite are decided, and
// both [CookieManager.Write] and [CookieManager.Clear] go through it. A
// browser only deletes a cookie when the clearing Set-Cookie carries the
// same name, path and domain, so the two paths must never diverge.
//
// # Architecture boundaries
//
// This package does not verify tokens and does not talk to storage. It
// receives already-issued token values and expiry times.
//
// # What this package must NOT do
//
//   - Import authsession, jwt, refresh or ephemeral.
//   - Log cookie values.
package session
