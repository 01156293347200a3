package authsession

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/MrEthical07/authsession/ephemeral"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/session"
)

// Storage backends selectable in [EphemeralConfig] and [RefreshConfig].
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPrincipal = "principal"
)

// Password hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Config is the complete engine configuration. Start from [DefaultConfig],
// set the secrets and frontend URL, then pass it to [Builder.WithConfig].
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Handoff           HandoffConfig
	Cookie            CookieConfig
	Ephemeral         EphemeralConfig
	Refresh           RefreshConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. The two secrets must differ and
// AccessTTL must be shorter than RefreshTTL.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures hashing. Memory is in KiB. Bcrypt hashes are
// always accepted for verification; Algorithm only selects what new hashes use.
type PasswordConfig struct {
	Algorithm      string
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	UpgradeOnLogin bool
	// MaxConcurrentVerifications bounds simultaneous hash computations.
	MaxConcurrentVerifications int
}

/*
====================================
EPHEMERAL FLOW CONFIG
====================================
*/

// PasswordResetConfig configures reset links.
type PasswordResetConfig struct {
	TTL              time.Duration
	RequestLimit     int
	RequestWindow    time.Duration
	EnableIPThrottle bool
}

// EmailVerificationConfig configures verification links.
type EmailVerificationConfig struct {
	TTL              time.Duration
	RequestLimit     int
	RequestWindow    time.Duration
	EnableIPThrottle bool
}

// HandoffConfig configures the cross-origin login redirect.
type HandoffConfig struct {
	// FrontendBaseURL is the origin of the frontend, without a trailing slash.
	FrontendBaseURL string
}

// CookieConfig configures session cookies. Empty names keep the defaults.
type CookieConfig struct {
	Environment string
	AccessName  string
	RefreshName string
	MarkerName  string
	Domain      string
}

// EphemeralConfig selects where single-use tokens live.
type EphemeralConfig struct {
	Backend          string
	RedisPrefix      string
	ExpiredRetention time.Duration
	SweepInterval    time.Duration
}

// RefreshConfig selects where refresh token hashes live.
type RefreshConfig struct {
	Backend     string
	RedisPrefix string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field but the JWT
// secrets and the frontend URL populated.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authsession",
		},
		Password: PasswordConfig{
			Algorithm:                  AlgorithmArgon2id,
			Memory:                     65536,
			Time:                       3,
			Parallelism:                2,
			SaltLength:                 16,
			KeyLength:                  32,
			BcryptCost:                 12,
			UpgradeOnLogin:             true,
			MaxConcurrentVerifications: runtime.GOMAXPROCS(0),
		},
		PasswordReset: PasswordResetConfig{
			TTL:              ephemeral.PasswordResetTTL,
			RequestLimit:     5,
			RequestWindow:    time.Hour,
			EnableIPThrottle: true,
		},
		EmailVerification: EmailVerificationConfig{
			TTL:              ephemeral.EmailVerificationTTL,
			RequestLimit:     5,
			RequestWindow:    time.Hour,
			EnableIPThrottle: true,
		},
		Cookie: CookieConfig{
			Environment: string(session.EnvDevelopment),
			AccessName:  session.DefaultAccessCookie,
			RefreshName: session.DefaultRefreshCookie,
			MarkerName:  session.DefaultMarkerCookie,
		},
		Ephemeral: EphemeralConfig{
			Backend:          BackendMemory,
			RedisPrefix:      "aset",
			ExpiredRetention: 24 * time.Hour,
			SweepInterval:    time.Minute,
		},
		Refresh: RefreshConfig{
			Backend:     BackendPrincipal,
			RedisPrefix: "arf",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) jwtConfig() jwt.Config {
	return jwt.Config{
		AccessSecret:  c.JWT.AccessSecret,
		RefreshSecret: c.JWT.RefreshSecret,
		AccessTTL:     c.JWT.AccessTTL,
		RefreshTTL:    c.JWT.RefreshTTL,
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		Leeway:        c.JWT.Leeway,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Password
	switch c.Password.Algorithm {
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return fmt.Errorf("Password Algorithm %q is not supported", c.Password.Algorithm)
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxConcurrentVerifications < 1 {
		return errors.New("Password MaxConcurrentVerifications must be >= 1")
	}

	// Ephemeral flows
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}
	if c.PasswordReset.RequestLimit < 0 || c.EmailVerification.RequestLimit < 0 {
		return errors.New("RequestLimit must be >= 0")
	}
	if c.PasswordReset.RequestLimit > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when RequestLimit is set")
	}
	if c.EmailVerification.RequestLimit > 0 && c.EmailVerification.RequestWindow <= 0 {
		return errors.New("EmailVerification RequestWindow must be > 0 when RequestLimit is set")
	}

	// Handoff
	if c.Handoff.FrontendBaseURL == "" {
		return errors.New("Handoff FrontendBaseURL is required")
	}
	u, err := url.Parse(c.Handoff.FrontendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Handoff FrontendBaseURL must be an absolute URL")
	}
	if u.RawQuery != "" || u.Fragment != "" || strings.HasSuffix(c.Handoff.FrontendBaseURL, "/") {
		return errors.New("Handoff FrontendBaseURL must not carry a query, fragment or trailing slash")
	}

	// Cookies
	env, err := session.ParseEnvironment(c.Cookie.Environment)
	if err != nil {
		return err
	}
	if (env == session.EnvStaging || env == session.EnvProduction) && u.Scheme != "https" {
		return errors.New("Handoff FrontendBaseURL must use https outside development and test")
	}

	// Stores
	switch c.Ephemeral.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("Ephemeral Backend %q is not supported", c.Ephemeral.Backend)
	}
	if c.Ephemeral.ExpiredRetention < 0 || c.Ephemeral.SweepInterval < 0 {
		return errors.New("Ephemeral durations must be >= 0")
	}
	switch c.Refresh.Backend {
	case BackendPrincipal, BackendRedis:
	default:
		return fmt.Errorf("Refresh Backend %q is not supported", c.Refresh.Backend)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
