package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auth HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	registerServerFlags(cmd.Flags())
	return cmd
}

// app holds everything a running server owns and must release.
type app struct {
	engine  *authsession.Engine
	store   *sqlite.Store
	redis   *redis.Client
	mini    *miniredis.Miniredis
	handler http.Handler
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mini != nil {
		a.mini.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// newApp opens the stores and builds the engine and router.
func newApp(cfg serverConfig, logger *slog.Logger) (*app, error) {
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}

	a := &app{}
	a.store, err = sqlite.NewStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := a.store.ApplyMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		a.mini, err = miniredis.Run()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		redisAddr = a.mini.Addr()
		logger.Warn("using in-process miniredis; state is lost on exit", "addr", redisAddr)
	}
	a.redis = redis.NewClient(&redis.Options{Addr: redisAddr})

	builder := authsession.New().
		WithConfig(engineCfg).
		WithRedis(a.redis).
		WithPrincipalStore(a.store).
		WithMessageSender(logSender{logger: logger}).
		WithIdentityResolver(sqliteResolver{store: a.store}).
		WithLogger(logger)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(authsession.NewSlogSink(logger.With("component", "audit")))
	}

	a.engine, err = builder.Build()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	exporter := prometheus.NewPrometheusExporter(a.engine)
	a.handler = newRouter(a.engine, logger, exporter.Handler(), cfg.Environment == "development")
	return a, nil
}

func runServe(ctx context.Context, cfg serverConfig) error {
	logger, err := cfg.logger()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
