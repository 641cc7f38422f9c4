package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicetriage/internal/config"
	"voicetriage/internal/devserver"
	"voicetriage/pkg/logger"
)

func main() {
	exitFn(run(os.Stderr))
}

var exitFn = os.Exit

func run(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
	if err != nil {
		fmt.Fprintln(stderr, "logger:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg.DevServer, log); err != nil {
		log.Error("devserver stopped", logger.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.DevServerConfig, log *logger.Logger) error {
	storage, err := devserver.OpenStorage(ctx, cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	server := devserver.NewServer(storage, devserver.Options{
		ProcessingDelay: cfg.ProcessingDelay(),
		AllowedOrigins:  cfg.AllowedOrigins,
	}, log)
	defer server.Close()

	httpServer := newHTTPServer(cfg.Addr, server.Routes())
	errCh := make(chan error, 1)
	go func() {
		log.Info("devserver listening",
			logger.String("addr", cfg.Addr),
			logger.String("database", cfg.DatabasePath),
			logger.Duration("processing_delay", cfg.ProcessingDelay()),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("devserver shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
