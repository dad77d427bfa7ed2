package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"share-drop/internal/catalog"
	"share-drop/internal/config"
	"share-drop/internal/credentials"
	"share-drop/internal/files"
	"share-drop/internal/logging"
	"share-drop/internal/server"
	"share-drop/internal/session"
	"share-drop/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "invalid_config", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "logger_init_failed", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "backend"))

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	srv, closeAll, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting",
			zap.String("addr", cfg.Addr),
			zap.String("version", cfg.Build.Version),
			zap.String("commit", cfg.Build.Commit))
		errCh <- srv.Start()
	}()

	// Graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (container stop).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		// Give in-flight requests (large uploads included) time to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}

// setup opens every dependency and wires the HTTP server. The returned
// func releases the catalog.
func setup(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.Server, func(), error) {
	users, err := credentials.Load(cfg.UsersFile, logger.Named("credentials"))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("credentials loaded", zap.Int("users", users.Len()))

	secret, err := session.LoadOrCreateSecret(cfg.SecretFile)
	if err != nil {
		return nil, nil, fmt.Errorf("session secret: %w", err)
	}
	sessions, err := session.NewManager(secret, cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}

	disk, err := storage.New(cfg.UploadDir)
	if err != nil {
		return nil, nil, err
	}

	cat, err := catalog.Open(ctx, catalog.Options{
		SQLitePath:  cfg.DatabasePath,
		DatabaseURL: cfg.DatabaseURL,
	}, logger.Named("catalog"))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("catalog ready", zap.String("dialect", cat.Dialect().Name()), zap.String("upload_dir", disk.Dir()))

	srv := server.New(server.Config{
		Addr:  cfg.Addr,
		Build: cfg.Build,
		Auth: server.AuthConfig{
			Users:        users,
			Sessions:     sessions,
			CookieName:   cfg.CookieName,
			CookieSecure: cfg.CookieSecure,
		},
		Files:          files.New(cat, disk, logger.Named("files")),
		Catalog:        cat,
		MaxUploadBytes: cfg.MaxUploadBytes,
		LoginRate:      cfg.LoginRate,
		Logger:         logger.Named("http"),
	})

	closeAll := func() {
		if err := cat.Close(); err != nil {
			logger.Warn("closing catalog", zap.Error(err))
		}
	}
	return srv, closeAll, nil
}
