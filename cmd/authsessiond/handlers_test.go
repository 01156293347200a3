package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/password"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct horse battery"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	cfg := serverConfig{
		Database:         filepath.Join(t.TempDir(), "auth.db"),
		Environment:      "development",
		FrontendURL:      "https://app.example.com",
		AccessSecret:     "access-secret-0123456789abcdef",
		RefreshSecret:    "refresh-secret-0123456789abcdef",
		AccessTTL:        authsession.DefaultConfig().JWT.AccessTTL,
		RefreshTTL:       authsession.DefaultConfig().JWT.RefreshTTL,
		EphemeralBackend: authsession.BackendRedis,
		RefreshBackend:   authsession.BackendPrincipal,
		AuditLog:         true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(cfg, logger)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(a.Close)

	hasher, err := password.NewArgon2(password.Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	err = a.store.CreatePrincipal(context.Background(), authsession.Principal{
		ID:           "p1",
		Email:        testEmail,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreatePrincipal failed: %v", err)
	}
	return a
}

func do(t *testing.T, h http.Handler, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginMeRefreshLogout(t *testing.T) {
	a := newTestApp(t)
	names := a.engine.Cookies().Names()

	rec := do(t, a.handler, http.MethodPost, "/auth/login", credentialsRequest{Email: testEmail, Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var login sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	access := cookieNamed(rec, names.Access)
	refresh := cookieNamed(rec, names.Refresh)
	if access == nil || refresh == nil {
		t.Fatal("expected access and refresh cookies")
	}

	rec = do(t, a.handler, http.MethodGet, "/auth/me", nil, access)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"principal_id":"p1"`) {
		t.Fatalf("me status %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, a.handler, http.MethodPost, "/auth/refresh", nil, refresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status %d: %s", rec.Code, rec.Body.String())
	}
	rotated := cookieNamed(rec, names.Refresh)
	if rotated == nil || rotated.Value == refresh.Value {
		t.Fatal("expected a rotated refresh cookie")
	}

	rec = do(t, a.handler, http.MethodPost, "/auth/refresh", nil, refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	out := httptest.NewRecorder()
	a.handler.ServeHTTP(out, req)
	if out.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", out.Code)
	}

	rec = do(t, a.handler, http.MethodPost, "/auth/refresh", nil, rotated)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status %d, want 401", rec.Code)
	}
}

func TestLoginFailureIsUnauthorized(t *testing.T) {
	a := newTestApp(t)

	for _, req := range []credentialsRequest{
		{Email: testEmail, Password: "wrong"},
		{Email: "nobody@example.com", Password: testPassword},
	} {
		rec := do(t, a.handler, http.MethodPost, "/auth/login", req)
		if rec.Code != http.StatusUnauthorized || strings.TrimSpace(rec.Body.String()) != "unauthorized" {
			t.Fatalf("login(%q) = %d %q", req.Email, rec.Code, rec.Body.String())
		}
	}
}

func TestMeRequiresToken(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a.handler, http.MethodGet, "/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestForgotPasswordAcknowledgesUnknownEmail(t *testing.T) {
	a := newTestApp(t)

	known := do(t, a.handler, http.MethodPost, "/auth/forgot-password", emailRequest{Email: testEmail})
	unknown := do(t, a.handler, http.MethodPost, "/auth/forgot-password", emailRequest{Email: "ghost@example.com"})

	if known.Code != http.StatusAccepted || unknown.Code != http.StatusAccepted {
		t.Fatalf("status %d / %d, want 202", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("acknowledgements differ: %q vs %q", known.Body.String(), unknown.Body.String())
	}
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a.handler, http.MethodPost, "/auth/reset-password", resetRequest{Token: strings.Repeat("ab", 32), Password: "new password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}

	rec = do(t, a.handler, http.MethodPost, "/auth/reset-password", resetRequest{Token: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestExternalCallbackThenHandoff(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a.handler, http.MethodGet, "/auth/external/callback?email=Bob@Example.com&sub=42", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status %d: %s", rec.Code, rec.Body.String())
	}
	if cookieNamed(rec, a.engine.Cookies().Names().Marker) == nil {
		t.Fatal("expected marker cookie on redirect")
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	fragment, err := url.ParseQuery(loc.Fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	token := fragment.Get("token")
	if token == "" {
		t.Fatalf("no token in %q", loc.String())
	}

	rec = do(t, a.handler, http.MethodPost, "/auth/handoff", tokenRequest{Token: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("handoff status %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode handoff: %v", err)
	}

	created, err := a.store.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("resolver did not create principal: %v", err)
	}
	if resp.PrincipalID != created.ID {
		t.Fatalf("handoff principal %q, want %q", resp.PrincipalID, created.ID)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)

	do(t, a.handler, http.MethodPost, "/auth/login", credentialsRequest{Email: testEmail, Password: testPassword})

	rec := do(t, a.handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authsession_login_success_total 1") {
		t.Fatalf("login counter missing:\n%s", rec.Body.String())
	}
}

func TestInvalidJSON(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}
