package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/manage"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/migrate"
	"github.com/legit-games/authcode-service/server"
	"github.com/legit-games/authcode-service/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger.Sugar())
		},
	}
}

func serve(ctx context.Context, cfg *server.AppConfig, log *zap.SugaredLogger) error {
	if cfg.Migrate.OnStart && cfg.Storage.PostgresDSN != "" {
		err := migrate.Run(ctx, migrate.Options{
			Driver:  "postgres",
			DSN:     cfg.Storage.PostgresDSN,
			Command: "up",
			Logger:  log,
		})
		if err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	stores, err := store.Open(ctx, cfg.StoreOptions(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warnw("close stores", "error", err)
		}
	}()

	key, err := loadKey(cfg.Keys.PrivateKeyPath, log)
	if err != nil {
		return err
	}

	mt := metrics.New()
	manager, err := manage.NewManager(cfg.ManagerConfig(), key, manage.WithLogger(log), manage.WithMetrics(mt))
	if err != nil {
		return err
	}
	manager.MapStores(stores)

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(cfg.ServerConfig(), manager, stores, key,
		server.WithLogger(log),
		server.WithMetrics(mt),
	)
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.NewGinEngine(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(stores.Sweepers) > 0 && cfg.Storage.SweepEvery > 0 {
		go sweep(ctx, stores, cfg.Storage.SweepEvery, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.HTTP.Addr, "kid", key.KeyID())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// loadKey reads the signing key, or generates a throwaway one when no path
// is configured.
func loadKey(path string, log *zap.SugaredLogger) (*generates.SigningKey, error) {
	if path != "" {
		return generates.LoadSigningKeyFile(path)
	}
	log.Warnw("keys.private_key_path not set, using an ephemeral signing key; tokens will not survive a restart")
	return generates.GenerateSigningKey()
}

// sweep purges expired codes and tokens from backends without native expiry.
func sweep(ctx context.Context, stores *store.Stores, every time.Duration, log *zap.SugaredLogger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := stores.Sweep(ctx, time.Now().UTC())
			if err != nil {
				log.Warnw("sweep expired records", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("swept expired records", "count", n)
			}
		}
	}
}
