package authsession

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authsession/ephemeral"
)

const resetLinkPrefix = testFrontend + "/reset-password#token="

func TestForgotPasswordSendsFragmentLink(t *testing.T) {
	env := newTestEngine(t)
	env.addPrincipal(t, "p1", "alice@example.com")

	ack := env.engine.ForgotPassword(context.Background(), "Alice@example.com")
	if ack.Message != "The password reset link has been sent." {
		t.Fatalf("unexpected ack %q", ack.Message)
	}

	sent := env.sender.lastReset(t)
	if sent.email != "alice@example.com" {
		t.Fatalf("expected link sent to alice, got %q", sent.email)
	}
	token := tokenFromFragment(t, sent.link, resetLinkPrefix)
	if token != sent.token {
		t.Fatalf("link token %q differs from sent token %q", token, sent.token)
	}
	if raw, err := hex.DecodeString(token); err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 random bytes hex-encoded, got %q", token)
	}
}

func TestForgotPasswordAckDoesNotRevealAccounts(t *testing.T) {
	env := newTestEngine(t)
	env.addPrincipal(t, "p1", "alice@example.com")
	env.principals.add(Principal{ID: "ghost", Email: "ghost@example.com", Role: RoleOrdinary})
	ctx := context.Background()

	known := env.engine.ForgotPassword(ctx, "alice@example.com")
	unknown := env.engine.ForgotPassword(ctx, "nobody@example.com")
	inactive := env.engine.ForgotPassword(ctx, "ghost@example.com")

	if known != unknown || known != inactive {
		t.Fatalf("acks differ: %+v %+v %+v", known, unknown, inactive)
	}
	if resets, _ := env.sender.counts(); resets != 1 {
		t.Fatalf("expected only the active principal to get a link, got %d", resets)
	}
}

func TestForgotPasswordSendFailureStillAcks(t *testing.T) {
	env := newTestEngine(t)
	env.addPrincipal(t, "p1", "alice@example.com")
	env.sender.err = errors.New("smtp unavailable")

	ack := env.engine.ForgotPassword(context.Background(), "alice@example.com")
	if ack.Message != resetAcknowledgement {
		t.Fatalf("unexpected ack %q", ack.Message)
	}
}

func TestForgotPasswordRateLimited(t *testing.T) {
	env := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.PasswordReset.RequestLimit = 2
		cfg.PasswordReset.RequestWindow = time.Hour
		b.WithConfig(cfg)
	})
	env.addPrincipal(t, "p1", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ack := env.engine.ForgotPassword(ctx, "alice@example.com"); ack.Message != resetAcknowledgement {
			t.Fatalf("request %d: unexpected ack %q", i, ack.Message)
		}
	}

	if resets, _ := env.sender.counts(); resets != 2 {
		t.Fatalf("expected 2 links before throttling, got %d", resets)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordResetRateLimited]; got != 1 {
		t.Fatalf("expected one throttled request, got %d", got)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEngine(t)
	env.addPrincipal(t, "p1", "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, nil, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	env.engine.ForgotPassword(ctx, "alice@example.com")
	token := env.sender.lastReset(t).token

	if err := env.engine.ResetPassword(ctx, token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := env.engine.Login(ctx, nil, "alice@example.com", testPassword); err == nil {
		t.Fatal("old password must stop working")
	}
	if _, err := env.engine.Login(ctx, nil, "alice@example.com", "a brand new password"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}

	_, err = env.engine.Refresh(ctx, nil, pair.RefreshToken)
	assertUnauthorized(t, err, ErrTokenNotFound)

	err = env.engine.ResetPassword(ctx, token, "another password")
	assertUnauthorized(t, err, ErrTokenNotFound)
}

func TestResetPasswordRevokesRefreshSlot(t *testing.T) {
	env := newTestEngine(t)
	env.addPrincipal(t, "p1", "alice@example.com")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, nil, "alice@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.engine.ForgotPassword(ctx, "alice@example.com")

	if err := env.engine.ResetPassword(ctx, env.sender.lastReset(t).token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if got := env.principals.get("p1").RefreshTokenHash; got != "" {
		t.Fatalf("expected refresh slot cleared, got %q", got)
	}
}

func TestResetPasswordExpiredThenNotFound(t *testing.T) {
	stores := map[string]func(t *testing.T, clock *testClock) ephemeral.Store{
		"memory": func(t *testing.T, clock *testClock) ephemeral.Store {
			return ephemeral.NewMemoryStore(clock.Now)
		},
		"redis": func(t *testing.T, clock *testClock) ephemeral.Store {
			_, rdb := newTestRedis(t)
			return ephemeral.NewRedisStore(rdb, ephemeral.RedisConfig{Prefix: "test", Now: clock.Now})
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			clock := newTestClock()
			store := newStore(t, clock)
			env := newTestEngine(t, func(b *Builder) { b.WithEphemeralStore(store) })
			env.addPrincipal(t, "p1", "alice@example.com")
			ctx := context.Background()

			env.engine.ForgotPassword(ctx, "alice@example.com")
			token := env.sender.lastReset(t).token

			clock.Advance(2 * time.Hour)

			err := env.engine.ResetPassword(ctx, token, "a brand new password")
			assertUnauthorized(t, err, ErrTokenExpired)

			err = env.engine.ResetPassword(ctx, token, "a brand new password")
			assertUnauthorized(t, err, ErrTokenNotFound)

			if got := env.engine.MetricsSnapshot().Counters[MetricEphemeralExpired]; got != 1 {
				t.Fatalf("expected one expired token, got %d", got)
			}
		})
	}
}

func TestResetPasswordRejectsVerificationToken(t *testing.T) {
	env := newTestEngine(t)
	env.principals.add(Principal{ID: "p1", Email: "new@example.com", Role: RoleOrdinary})
	ctx := context.Background()

	env.engine.RequestEmailVerification(ctx, "new@example.com")
	token := env.sender.lastVerification(t).token

	err := env.engine.ResetPassword(ctx, token, "a brand new password")
	assertUnauthorized(t, err, ErrTokenPurposeMismatch)
	if got := env.principals.get("p1").PasswordHash; got != "" {
		t.Fatal("a mismatched token must not change the password")
	}

	// The mismatched attempt burned the token.
	err = env.engine.VerifyEmail(ctx, token)
	assertUnauthorized(t, err, ErrTokenNotFound)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	env := newTestEngine(t)

	err := env.engine.ResetPassword(context.Background(), "deadbeef", "a brand new password")
	assertUnauthorized(t, err, ErrTokenNotFound)
}
