package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authsession"
)

type onePrincipal struct {
	principal authsession.Principal
}

func (s *onePrincipal) GetByID(_ context.Context, id string) (authsession.Principal, error) {
	if id != s.principal.ID {
		return authsession.Principal{}, authsession.ErrPrincipalNotFound
	}
	return s.principal, nil
}

func (s *onePrincipal) GetByEmail(_ context.Context, email string) (authsession.Principal, error) {
	if email != s.principal.Email {
		return authsession.Principal{}, authsession.ErrPrincipalNotFound
	}
	return s.principal, nil
}

func (s *onePrincipal) UpdatePasswordHash(context.Context, string, string) error { return nil }

func (s *onePrincipal) UpdateRefreshTokenHash(_ context.Context, _ string, hash string) error {
	s.principal.RefreshTokenHash = hash
	return nil
}

func (s *onePrincipal) UpdateActiveFlag(context.Context, string, bool) error { return nil }

type resolver struct {
	principal authsession.Principal
}

func (r resolver) ResolveExternal(context.Context, authsession.ExternalIdentity) (authsession.Principal, error) {
	return r.principal, nil
}

func newGuardEngine(t *testing.T) (*authsession.Engine, *http.Cookie) {
	t.Helper()

	principal := authsession.Principal{ID: "p1", Email: "alice@example.com", Active: true}
	cfg := authsession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Handoff.FrontendBaseURL = "https://app.example.com"
	cfg.Cookie.Environment = "test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Ephemeral.SweepInterval = 0

	engine, err := authsession.New().
		WithConfig(cfg).
		WithPrincipalStore(&onePrincipal{principal: principal}).
		WithIdentityResolver(resolver{principal: principal}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
	if err := engine.LoginExternal(req.Context(), rec, req, authsession.ExternalIdentity{Provider: "test"}); err != nil {
		t.Fatalf("LoginExternal failed: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == engine.Cookies().Names().Access {
			return engine, c
		}
	}
	t.Fatal("no access cookie written")
	return nil, nil
}

func protected(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.PrincipalID != "p1" {
			t.Errorf("expected claims for p1, got %+v (ok=%v)", claims, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGuardAcceptsBearerHeader(t *testing.T) {
	engine, access := newGuardEngine(t)
	h := Guard(engine)(protected(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestGuardFallsBackToAccessCookie(t *testing.T) {
	engine, access := newGuardEngine(t)
	h := Guard(engine)(protected(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: access.Name, Value: access.Value})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestGuardRejects(t *testing.T) {
	engine, _ := newGuardEngine(t)
	h := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestGuardNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	Guard(nil)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientIPStripsPort(t *testing.T) {
	var seen string
	h := ClientIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = authsession.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "198.51.100.4" {
		t.Fatalf("expected host without port, got %q", seen)
	}
}
