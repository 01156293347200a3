// Package jwt issues and verifies the signed, self-contained tokens of a
// session: access tokens, refresh tokens and cross-origin handoff tokens.
//
// Access and handoff tokens share the access secret. A handoff token is told
// apart by its purpose claim; an access token never carries one.
package jwt
