// Package audit relays security-relevant session events to a sink without
// blocking the request path.
//
// The engine decides which events to emit; this package only buffers and
// delivers them. It must not import the root package.
package audit
