package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-roadmap/internal/api"
	"github.com/p-n-ai/pai-roadmap/internal/app"
	"github.com/p-n-ai/pai-roadmap/internal/platform/config"
	"github.com/p-n-ai/pai-roadmap/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := newServer(a, cfg.Server.CORSOrigins)
	defer server.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     server.Handler(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the events endpoint holds websocket connections open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newServer exposes every loaded track over HTTP.
func newServer(a *app.App, origins []string) *api.Server {
	var tracks []api.Track
	for _, t := range a.Tracks() {
		nav, ok := a.Navigator(t.Folder)
		if !ok {
			continue
		}
		tracks = append(tracks, api.Track{Track: t, Navigator: nav})
	}

	checks := make(map[string]api.HealthCheck, len(a.Checks))
	for name, check := range a.Checks {
		checks[name] = check
	}

	return api.New(api.Config{
		Tracks:      tracks,
		Content:     a.Content,
		Checks:      checks,
		CORSOrigins: origins,
	})
}
