package authsession

import "errors"

var (
	// ErrUnauthorized is the single caller-visible outcome for every credential
	// and token verification failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount is returned for inactive non-admin principals.
	ErrInactiveAccount = errors.New("inactive account")
	// ErrTokenNotFound is returned when a token was never issued or was already consumed.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned when a token is presented after its TTL lapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for tokens with a bad signature or malformed claims.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenPurposeMismatch is returned when a token minted for one flow is used in another.
	ErrTokenPurposeMismatch = errors.New("token purpose mismatch")
	// ErrInternalFailure wraps persistence and signing failures.
	ErrInternalFailure = errors.New("internal failure")
	// ErrPrincipalNotFound must be returned by PrincipalStore lookups that find nothing.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrEngineNotReady is returned by methods called on an engine that was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnsupportedMethod is returned by Authenticate for an unknown AuthenticationMethod.
	ErrUnsupportedMethod = errors.New("unsupported authentication method")
)

// AuthError is the error type returned by Engine verification paths.
//
// Its message is always "unauthorized" so it is safe to render to clients.
// errors.Is matches both ErrUnauthorized and the specific cause.
type AuthError struct {
	cause error
}

func unauthorized(cause error) error {
	return &AuthError{cause: cause}
}

func (e *AuthError) Error() string {
	return ErrUnauthorized.Error()
}

// Unwrap exposes ErrUnauthorized and the underlying cause.
func (e *AuthError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrUnauthorized}
	}
	return []error{ErrUnauthorized, e.cause}
}

// Cause returns the specific failure reason hidden behind the generic message.
func (e *AuthError) Cause() error {
	return e.cause
}
