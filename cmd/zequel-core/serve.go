package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/zequel-labs/zequel/internal/adapter/httpserver"
	"github.com/zequel-labs/zequel/internal/adapter/store"
	"github.com/zequel-labs/zequel/internal/config"
	"github.com/zequel-labs/zequel/internal/crypto"
	"github.com/zequel-labs/zequel/internal/lifecycle"
	"github.com/zequel-labs/zequel/internal/status"
	"github.com/zequel-labs/zequel/internal/tunnel"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the connection core and its IPC surface",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("starting zequel-core",
		slog.String("version", version),
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("store_path", cfg.StorePath),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath, cipher)
	if err != nil {
		return err
	}

	// Event pipeline: structured logs + WebSocket feed + history persistence.
	hub := httpserver.NewEventHub(logger)
	history := status.NewHistoryWriter(st, logger)
	events := status.NewFanout(status.NewLogSink(logger), hub, history)

	tunnels := tunnel.NewManager(logger)
	manager := lifecycle.NewManager(tunnels, events, logger,
		lifecycle.WithHealthInterval(cfg.HealthInterval),
		lifecycle.WithConfigStore(st),
	)

	srv := httpserver.New(httpserver.Config{
		ListenAddr:        cfg.ListenAddr,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, manager, st, hub, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// --- Shutdown sequence ---
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Second signal during shutdown = hard exit.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sigCh:
			logger.Warn("forced shutdown", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	manager.DisconnectAll(shutdownCtx)
	tunnels.CloseAll()
	history.Close()

	logger.Info("shutdown complete")
	return nil
}
