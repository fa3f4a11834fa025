package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/config"
	"github.com/kailas-cloud/papershelf/internal/metrics"
	chiTransport "github.com/kailas-cloud/papershelf/internal/transport/chi"
	"github.com/kailas-cloud/papershelf/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting papershelf API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", config.GetEnv()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{chat: true})
	if err != nil {
		return err
	}
	defer a.Close()

	server := chiTransport.NewServer(a.ingest, a.pipeline, a.library, a.chats, a.health, logger).
		WithMaxUploadSize(int64(cfg.HTTP.MaxUploadMB) << 20)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, metrics.Middleware(), logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       seconds(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      seconds(cfg.HTTP.WriteTimeoutSec),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
