package authsession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authsession/password"
)

const (
	testFrontend = "https://app.example.com"
	testPassword = "correct horse battery"
)

type memoryPrincipals struct {
	mu        sync.Mutex
	byID      map[string]Principal
	lookupErr error

	getByIDCalls    int
	getByEmailCalls int
}

func newMemoryPrincipals() *memoryPrincipals {
	return &memoryPrincipals{byID: map[string]Principal{}}
}

func (m *memoryPrincipals) add(p Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = p
}

func (m *memoryPrincipals) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func (m *memoryPrincipals) get(id string) Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memoryPrincipals) lookups() (byID, byEmail int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getByIDCalls, m.getByEmailCalls
}

func (m *memoryPrincipals) GetByID(_ context.Context, id string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	if m.lookupErr != nil {
		return Principal{}, m.lookupErr
	}
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (m *memoryPrincipals) GetByEmail(_ context.Context, email string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++
	if m.lookupErr != nil {
		return Principal{}, m.lookupErr
	}
	for _, p := range m.byID {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (m *memoryPrincipals) update(id string, fn func(*Principal)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	fn(&p)
	m.byID[id] = p
	return nil
}

func (m *memoryPrincipals) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return m.update(id, func(p *Principal) { p.PasswordHash = hash })
}

func (m *memoryPrincipals) UpdateRefreshTokenHash(_ context.Context, id, hash string) error {
	return m.update(id, func(p *Principal) { p.RefreshTokenHash = hash })
}

func (m *memoryPrincipals) UpdateActiveFlag(_ context.Context, id string, active bool) error {
	return m.update(id, func(p *Principal) { p.Active = active })
}

type sentLink struct {
	email string
	token string
	link  string
}

type recordingSender struct {
	mu            sync.Mutex
	resets        []sentLink
	verifications []sentLink
	err           error
}

func (s *recordingSender) SendResetLink(_ context.Context, email, token, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.resets = append(s.resets, sentLink{email: email, token: token, link: link})
	return nil
}

func (s *recordingSender) SendVerificationLink(_ context.Context, email, token, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.verifications = append(s.verifications, sentLink{email: email, token: token, link: link})
	return nil
}

func (s *recordingSender) lastReset(t *testing.T) sentLink {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resets) == 0 {
		t.Fatal("expected a reset link to be sent")
	}
	return s.resets[len(s.resets)-1]
}

func (s *recordingSender) lastVerification(t *testing.T) sentLink {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.verifications) == 0 {
		t.Fatal("expected a verification link to be sent")
	}
	return s.verifications[len(s.verifications)-1]
}

func (s *recordingSender) counts() (resets, verifications int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets), len(s.verifications)
}

type staticResolver struct {
	principal Principal
	err       error
}

func (r staticResolver) ResolveExternal(context.Context, ExternalIdentity) (Principal, error) {
	return r.principal, r.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Handoff.FrontendBaseURL = testFrontend
	cfg.Cookie.Environment = "test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Ephemeral.SweepInterval = 0
	return cfg
}

type testEnv struct {
	engine     *Engine
	principals *memoryPrincipals
	sender     *recordingSender
}

// newTestEngine builds an engine over in-memory collaborators. configure
// may adjust the builder before Build.
func newTestEngine(t *testing.T, configure ...func(*Builder)) testEnv {
	t.Helper()

	principals := newMemoryPrincipals()
	sender := &recordingSender{}

	b := New().
		WithConfig(testConfig()).
		WithPrincipalStore(principals).
		WithMessageSender(sender).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return testEnv{engine: engine, principals: principals, sender: sender}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func hashFor(t *testing.T, e *Engine, pass string) string {
	t.Helper()

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}

func bcryptHash(t *testing.T, pass string) string {
	t.Helper()

	b, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	hash, err := b.Hash(pass)
	if err != nil {
		t.Fatalf("bcrypt Hash failed: %v", err)
	}
	return hash
}

// addPrincipal stores an active ordinary principal with testPassword.
func (env testEnv) addPrincipal(t *testing.T, id, email string) Principal {
	t.Helper()

	p := Principal{
		ID:           id,
		Email:        email,
		PasswordHash: hashFor(t, env.engine, testPassword),
		Active:       true,
		Role:         RoleOrdinary,
	}
	env.principals.add(p)
	return p
}

func assertUnauthorized(t *testing.T, err error, cause error) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected unauthorized error with cause %v", cause)
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if err.Error() != "unauthorized" {
		t.Fatalf("expected message \"unauthorized\", got %q", err.Error())
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("expected errors.Is(err, ErrUnauthorized)")
	}
	if cause != nil && !errors.Is(err, cause) {
		t.Fatalf("expected cause %v, got %v", cause, authErr.Cause())
	}
}

func tokenFromFragment(t *testing.T, link, prefix string) string {
	t.Helper()

	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("expected link %q to start with %q", link, prefix)
	}
	return strings.TrimPrefix(link, prefix)
}
