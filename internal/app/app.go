// Package app bootstraps the BetweenUs backend: configuration, logging,
// dependency wiring, and process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/betweenus/backend/internal/capability"
	"github.com/betweenus/backend/internal/collections"
	"github.com/betweenus/backend/internal/config"
	"github.com/betweenus/backend/internal/db"
	"github.com/betweenus/backend/internal/handlers"
	"github.com/betweenus/backend/internal/httpserver"
	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/middleware"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/repositories"
)

const issuedTokenTTL = 30 * 24 * time.Hour

// Run bootstraps the BetweenUs backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, init-schema, or issue-token")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "init-schema":
		return initSchema(ctx)
	case "issue-token":
		return issueToken(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := connectRecordStore(cfg)
	if err != nil {
		return err
	}

	var pool db.Pool
	if cfg.SessionDatabaseURL != "" {
		pgPool, err := db.Connect(ctx, cfg.SessionDatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		pool = pgPool
	}

	deps, err := buildDependencies(ctx, cfg, store, pool)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "port", cfg.AppPort)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// initSchema creates the record store collections the service depends on,
// plus the sessions table when a session database is configured. It is
// idempotent, so deploys can run it unconditionally before serve.
func initSchema(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	ctx = logging.WithLogger(ctx, logger)

	store, err := connectRecordStore(cfg)
	if err != nil {
		return err
	}

	if err := collections.Ensure(ctx, store); err != nil {
		return err
	}

	if cfg.SessionDatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.SessionDatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repositories.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}

	return nil
}

// issueToken mints a capability token for another service and prints it.
func issueToken(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	generatedFrom := "cli"
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		generatedFrom = strings.TrimSpace(args[0])
	}

	store, err := connectRecordStore(cfg)
	if err != nil {
		return err
	}

	issuer := capability.Issuer{Store: store}
	token, err := issuer.Issue(ctx, generatedFrom, "", time.Now().UTC().Add(issuedTokenTTL))
	if err != nil {
		return fmt.Errorf("issue capability token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func connectRecordStore(cfg config.Config) (*recordstore.PocketBase, error) {
	return recordstore.NewPocketBase(recordstore.PocketBaseConfig{
		URL:           cfg.RecordStoreURL,
		AdminEmail:    cfg.RecordStoreAdminEmail,
		AdminPassword: cfg.RecordStoreAdminPassword,
		CallTimeout:   cfg.RecordStoreTimeout,
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}
