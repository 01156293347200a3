package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authsession"
)

// serverConfig is the daemon configuration. Keys match flag names, so the
// YAML file and the command line share one vocabulary.
type serverConfig struct {
	Addr      string `koanf:"addr"`
	Database  string `koanf:"database"`
	RedisAddr string `koanf:"redis-addr"`

	Environment string `koanf:"environment"`
	FrontendURL string `koanf:"frontend-url"`

	AccessSecret  string        `koanf:"access-secret"`
	RefreshSecret string        `koanf:"refresh-secret"`
	AccessTTL     time.Duration `koanf:"access-ttl"`
	RefreshTTL    time.Duration `koanf:"refresh-ttl"`

	EphemeralBackend string `koanf:"ephemeral-backend"`
	RefreshBackend   string `koanf:"refresh-backend"`

	LogLevel  string `koanf:"log-level"`
	LogFormat string `koanf:"log-format"`
	AuditLog  bool   `koanf:"audit-log"`
}

// registerServerFlags declares every serverConfig key with its default.
func registerServerFlags(fs *pflag.FlagSet) {
	defaults := authsession.DefaultConfig()

	fs.String("addr", "127.0.0.1:8080", "HTTP listen address")
	fs.String("database", "authsession.db", "SQLite database path")
	fs.String("redis-addr", "", "Redis address; empty starts an in-process miniredis")
	fs.String("environment", "development", "cookie environment: development, test, staging, production")
	fs.String("frontend-url", "http://localhost:5173", "frontend origin used in emailed links and redirects")
	fs.String("access-secret", "", "HMAC secret for access tokens (>= 16 bytes)")
	fs.String("refresh-secret", "", "HMAC secret for refresh tokens (>= 16 bytes)")
	fs.Duration("access-ttl", defaults.JWT.AccessTTL, "access token lifetime")
	fs.Duration("refresh-ttl", defaults.JWT.RefreshTTL, "refresh token lifetime")
	fs.String("ephemeral-backend", authsession.BackendRedis, "single-use token store: memory or redis")
	fs.String("refresh-backend", authsession.BackendPrincipal, "refresh hash store: principal or redis")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "text", "log format: text or json")
	fs.Bool("audit-log", true, "write audit events to the log")
}

// loadServerConfig layers the YAML file under flags that were set
// explicitly. Unset flags only supply defaults for keys the file lacks.
func loadServerConfig(path string, fs *pflag.FlagSet) (serverConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return serverConfig{}, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return serverConfig{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg serverConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return serverConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// engineConfig maps the daemon configuration onto the engine's.
func (c serverConfig) engineConfig() (authsession.Config, error) {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return authsession.Config{}, errors.New("access-secret and refresh-secret are required")
	}

	cfg := authsession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshSecret)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Handoff.FrontendBaseURL = strings.TrimRight(c.FrontendURL, "/")
	cfg.Cookie.Environment = c.Environment
	cfg.Ephemeral.Backend = c.EphemeralBackend
	cfg.Refresh.Backend = c.RefreshBackend
	cfg.Audit.Enabled = c.AuditLog

	if err := cfg.Validate(); err != nil {
		return authsession.Config{}, err
	}
	return cfg, nil
}

func (c serverConfig) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("log-format %q is not supported", c.LogFormat)
	}
}
