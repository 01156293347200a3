package authsession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/MrEthical07/authsession/ephemeral"
	"github.com/MrEthical07/authsession/internal"
	internalaudit "github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/limiters"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/password"
	"github.com/MrEthical07/authsession/refresh"
	"github.com/MrEthical07/authsession/session"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger

	principals PrincipalStore
	sender     MessageSender
	resolver   IdentityResolver
	auditSink  AuditSink

	ephemeralStore ephemeral.Store
	refreshStore   refresh.Store

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig sets the engine configuration. The config is copied, secrets
// included, so later changes to cfg have no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by every Redis backend and by the
// request limiters. Without it, limiters count in process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore is required.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

// WithMessageSender sets the transport for reset and verification links.
// Without one, link requests still acknowledge but nothing is sent.
func (b *Builder) WithMessageSender(sender MessageSender) *Builder {
	b.sender = sender
	return b
}

// WithIdentityResolver enables [ExternalIdentity] authentication.
func (b *Builder) WithIdentityResolver(resolver IdentityResolver) *Builder {
	b.resolver = resolver
	return b
}

// WithLogger sets the structured logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go. It only matters when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEphemeralStore overrides the store selected by Config.Ephemeral.
func (b *Builder) WithEphemeralStore(store ephemeral.Store) *Builder {
	b.ephemeralStore = store
	return b
}

// WithRefreshStore overrides the store selected by Config.Refresh.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// Build validates the configuration and returns a ready Engine. Call
// [Engine.Close] when done.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if b.redis == nil &&
		((cfg.Ephemeral.Backend == BackendRedis && b.ephemeralStore == nil) ||
			(cfg.Refresh.Backend == BackendRedis && b.refreshStore == nil)) {
		return nil, errors.New("redis backend selected but no redis client provided")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:     cfg,
		logger:     logger,
		principals: b.principals,
		sender:     b.sender,
		resolver:   b.resolver,
		verifyPool: semaphore.NewWeighted(int64(cfg.Password.MaxConcurrentVerifications)),
		metrics:    NewMetrics(cfg.Metrics),
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(cfg.jwtConfig())
	if err != nil {
		return nil, err
	}
	engine.tokens = tokens

	// -------- PASSWORD HASHING --------
	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	decoySeed, err := internal.NewToken()
	if err != nil {
		return nil, err
	}
	if engine.decoyHash, err = hasher.Hash(decoySeed); err != nil {
		return nil, err
	}

	// -------- STORES --------
	engine.refresh = b.refreshStore
	if engine.refresh == nil {
		switch cfg.Refresh.Backend {
		case BackendRedis:
			engine.refresh = refresh.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix, cfg.JWT.RefreshTTL)
		default:
			engine.refresh = refresh.NewPrincipalStore(principalHashes{store: b.principals})
		}
	}

	engine.ephemeral = b.ephemeralStore
	if engine.ephemeral == nil {
		switch cfg.Ephemeral.Backend {
		case BackendRedis:
			engine.ephemeral = ephemeral.NewRedisStore(b.redis, ephemeral.RedisConfig{
				Prefix:           cfg.Ephemeral.RedisPrefix,
				ExpiredRetention: cfg.Ephemeral.ExpiredRetention,
			})
		default:
			mem := ephemeral.NewMemoryStore(nil)
			engine.ephemeral = mem
			if cfg.Ephemeral.SweepInterval > 0 {
				ctx, cancel := context.WithCancel(context.Background())
				engine.stopJanitor = cancel
				engine.janitorDone = make(chan struct{})
				go func() {
					defer close(engine.janitorDone)
					mem.Run(ctx, cfg.Ephemeral.SweepInterval, cfg.Ephemeral.ExpiredRetention)
				}()
			}
		}
	}

	// -------- COOKIES --------
	env, err := session.ParseEnvironment(cfg.Cookie.Environment)
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.cookies = session.NewCookieManager(env, session.CookieNames{
		Access:  cfg.Cookie.AccessName,
		Refresh: cfg.Cookie.RefreshName,
		Marker:  cfg.Cookie.MarkerName,
	}, cfg.Cookie.Domain)

	// -------- LIMITERS --------
	engine.resetLimiter = b.requestLimiter("arl:reset", cfg.PasswordReset.RequestLimit,
		cfg.PasswordReset.RequestWindow, cfg.PasswordReset.EnableIPThrottle)
	engine.verificationLimiter = b.requestLimiter("arl:verify", cfg.EmailVerification.RequestLimit,
		cfg.EmailVerification.RequestWindow, cfg.EmailVerification.EnableIPThrottle)

	// -------- AUDIT --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}

func (b *Builder) requestLimiter(prefix string, limit int, window time.Duration, ipThrottle bool) *limiters.RequestLimiter {
	if limit <= 0 {
		return nil
	}
	var counter limiters.Counter
	if b.redis != nil {
		counter = limiters.NewRedisCounter(b.redis, limit, window)
	} else {
		counter = limiters.NewLocalCounter(limit, window)
	}
	return limiters.NewRequestLimiter(counter, prefix, ipThrottle)
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	argon, err := password.NewArgon2(password.Argon2Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	if cfg.Algorithm == AlgorithmBcrypt {
		return password.NewMulti(bc, argon), nil
	}
	return password.NewMulti(argon, bc), nil
}

// principalHashes exposes the refresh hash field of a PrincipalStore to
// refresh.PrincipalStore.
type principalHashes struct {
	store PrincipalStore
}

func (p principalHashes) RefreshTokenHash(ctx context.Context, principalID string) (string, error) {
	principal, err := p.store.GetByID(ctx, principalID)
	if err != nil {
		return "", err
	}
	return principal.RefreshTokenHash, nil
}

func (p principalHashes) UpdateRefreshTokenHash(ctx context.Context, principalID, hash string) error {
	return p.store.UpdateRefreshTokenHash(ctx, principalID, hash)
}
