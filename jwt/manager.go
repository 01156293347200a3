package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// PurposeAuthRedirect is the only purpose a handoff token may carry.
	PurposeAuthRedirect = "auth-redirect"
	// HandoffTTL is the fixed lifetime of a handoff token.
	HandoffTTL = 2 * time.Minute

	minSecretBytes = 16
)

var (
	// ErrMissingSecret is returned by NewManager when a signing secret is absent.
	ErrMissingSecret = errors.New("jwt: signing secret is required")
	// ErrInvalidTTL is returned by NewManager when the TTLs are unusable.
	ErrInvalidTTL = errors.New("jwt: access ttl must be > 0 and shorter than refresh ttl")
	// ErrTokenExpired wraps every expired-token rejection.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid wraps every other signature or claim rejection.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrPurposeMismatch is returned when a validly signed token has the wrong purpose claim.
	ErrPurposeMismatch = errors.New("jwt: token purpose mismatch")
)

// Config holds the signing material and lifetimes. AccessSecret and
// RefreshSecret must differ so one can never verify the other's tokens.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager signs and parses HS256 tokens. Safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the minimal claim set of every token this package mints.
type Claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Pair is a freshly signed access/refresh pair.
type Pair struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// NewManager validates cfg and returns a Manager holding its own copy of
// the secrets. Both TTLs must be set and AccessTTL must be the shorter.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrMissingSecret
	}
	if len(cfg.AccessSecret) < minSecretBytes || len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("jwt: secrets must be at least %d bytes", minSecretBytes)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, ErrInvalidTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("jwt: invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cfg.AccessSecret = append([]byte(nil), cfg.AccessSecret...)
	cfg.RefreshSecret = append([]byte(nil), cfg.RefreshSecret...)
	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration  { return m.config.AccessTTL }
// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssuePair signs an access and a refresh token for principalID with
// independent secrets and lifetimes.
func (m *Manager) IssuePair(principalID string) (Pair, error) {
	if principalID == "" {
		return Pair{}, errors.New("jwt: empty principal id")
	}
	now := m.config.Now()

	access, accessExp, err := m.sign(principalID, "", m.config.AccessSecret, now, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.sign(principalID, "", m.config.RefreshSecret, now, m.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueHandoff signs a short-lived auth-redirect token with the access secret.
func (m *Manager) IssueHandoff(principalID string) (string, time.Time, error) {
	if principalID == "" {
		return "", time.Time{}, errors.New("jwt: empty principal id")
	}
	return m.sign(principalID, PurposeAuthRedirect, m.config.AccessSecret, m.config.Now(), HandoffTTL)
}

// ParseAccess verifies an access token. Tokens carrying any purpose claim
// are rejected.
func (m *Manager) ParseAccess(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, fmt.Errorf("%w: purpose %q on access token", ErrPurposeMismatch, claims.Purpose)
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token signed with the refresh secret.
func (m *Manager) ParseRefresh(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, fmt.Errorf("%w: purpose %q on refresh token", ErrPurposeMismatch, claims.Purpose)
	}
	return claims, nil
}

// ParseHandoff verifies signature and expiry, then requires the purpose
// claim to equal PurposeAuthRedirect exactly.
func (m *Manager) ParseHandoff(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAuthRedirect {
		return nil, fmt.Errorf("%w: got %q", ErrPurposeMismatch, claims.Purpose)
	}
	return claims, nil
}

func (m *Manager) sign(subject, purpose string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *Manager) parse(token string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
		}
	}
	return claims, nil
}
