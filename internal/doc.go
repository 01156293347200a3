// Package internal holds helpers private to authsession: opaque token
// generation and hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: request throttling for reset and verification links
//
// Nothing here appears in the public API.
package internal
