package jwt

import (
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-0123456789abcdef")
	testRefreshSecret = []byte("refresh-secret-0123456789abcdef")
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()

	cfg := Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authsession",
		Audience:      "web",
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerRejectsMisconfiguration(t *testing.T) {
	base := Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}

	cases := map[string]func(*Config){
		"missing access secret":  func(c *Config) { c.AccessSecret = nil },
		"missing refresh secret": func(c *Config) { c.RefreshSecret = nil },
		"short secret":           func(c *Config) { c.AccessSecret = []byte("short") },
		"shared secret":          func(c *Config) { c.RefreshSecret = c.AccessSecret },
		"access equals refresh":  func(c *Config) { c.RefreshTTL = c.AccessTTL },
		"access longer":          func(c *Config) { c.AccessTTL = 2 * time.Hour },
		"zero access":            func(c *Config) { c.AccessTTL = 0 },
		"negative leeway":        func(c *Config) { c.Leeway = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}

	if _, err := NewManager(Config{RefreshSecret: testRefreshSecret, AccessTTL: time.Minute, RefreshTTL: time.Hour}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestIssuePairUsesIndependentSecretsAndTTLs(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	pair, err := m.IssuePair("p1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(clock.now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected refresh expiry %v", pair.RefreshExpiresAt)
	}

	access, err := m.ParseAccess(pair.Access)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if access.Subject != "p1" {
		t.Fatalf("unexpected subject %q", access.Subject)
	}
	if _, err := m.ParseRefresh(pair.Refresh); err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}

	if _, err := m.ParseAccess(pair.Refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token must not verify as access token, got %v", err)
	}
	if _, err := m.ParseRefresh(pair.Access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token must not verify as refresh token, got %v", err)
	}
}

func TestIssuePairIsUniqueWithinSameSecond(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	first, err := m.IssuePair("p1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	second, err := m.IssuePair("p1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if first.Refresh == second.Refresh || first.Access == second.Access {
		t.Fatal("expected distinct tokens for pairs minted at the same instant")
	}
}

func TestAccessTokenExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	pair, err := m.IssuePair("p1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(pair.Access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := m.ParseRefresh(pair.Refresh); err != nil {
		t.Fatalf("refresh should outlive access: %v", err)
	}
}

func TestHandoffPurposeEnforcement(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	handoff, exp, err := m.IssueHandoff("p1")
	if err != nil {
		t.Fatalf("IssueHandoff: %v", err)
	}
	if !exp.Equal(clock.now.Add(HandoffTTL)) {
		t.Fatalf("unexpected handoff expiry %v", exp)
	}

	claims, err := m.ParseHandoff(handoff)
	if err != nil {
		t.Fatalf("ParseHandoff: %v", err)
	}
	if claims.Purpose != PurposeAuthRedirect || claims.Subject != "p1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := m.ParseAccess(handoff); !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("handoff token must not be accepted as access token, got %v", err)
	}

	pair, err := m.IssuePair("p1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := m.ParseHandoff(pair.Access); !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("access token must not be accepted as handoff, got %v", err)
	}

	forged := signWithPurpose(t, clock.now, "password-reset")
	if _, err := m.ParseHandoff(forged); !errors.Is(err, ErrPurposeMismatch) {
		t.Fatalf("expected purpose mismatch for validly signed foreign purpose, got %v", err)
	}

	clock.now = clock.now.Add(HandoffTTL + time.Second)
	if _, err := m.ParseHandoff(handoff); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired handoff, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "p1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		Issuer:    "authsession",
		Audience:  gjwt.ClaimStrings{"web"},
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	m := newTestManager(t, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "p1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		Issuer:    "someone-else",
		Audience:  gjwt.ClaimStrings{"web"},
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected foreign issuer to be rejected")
	}
}

func signWithPurpose(t *testing.T, now time.Time, purpose string) string {
	t.Helper()

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "p1",
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
			Issuer:    "authsession",
			Audience:  gjwt.ClaimStrings{"web"},
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func FuzzParseHandoff(f *testing.F) {
	m, err := NewManager(Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := m.IssueHandoff("seed")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := m.ParseHandoff(token)
		if err == nil && claims.Purpose != PurposeAuthRedirect {
			t.Fatalf("accepted token with purpose %q", claims.Purpose)
		}
	})
}
