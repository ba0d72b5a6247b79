// Package app assembles curriculum, content and progress storage from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-roadmap/internal/content"
	"github.com/p-n-ai/pai-roadmap/internal/curriculum"
	"github.com/p-n-ai/pai-roadmap/internal/navigator"
	"github.com/p-n-ai/pai-roadmap/internal/platform/cache"
	"github.com/p-n-ai/pai-roadmap/internal/platform/config"
	"github.com/p-n-ai/pai-roadmap/internal/platform/database"
	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

// App holds everything needed to serve one or more tracks.
type App struct {
	Curriculum *curriculum.Loader
	Content    *content.Registry
	KV         progress.KV
	Events     progress.EventLogger

	// Checks are readiness probes for the storage backend.
	Checks map[string]func(ctx context.Context) error

	navigators map[string]*navigator.Navigator
	closers    []func()
}

// Open loads the curriculum and content and connects the configured progress backend.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		return nil, err
	}

	registry := content.NewRegistry()
	if cfg.ContentPath != "" {
		if err := content.LoadDir(registry, cfg.ContentPath); err != nil {
			return nil, err
		}
	}

	a := &App{
		Curriculum: loader,
		Content:    registry,
		Events:     progress.NopEventLogger{},
		Checks:     make(map[string]func(ctx context.Context) error),
		navigators: make(map[string]*navigator.Navigator),
	}
	if err := a.openBackend(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if hc, ok := a.KV.(progress.HealthChecker); ok {
		a.Checks[cfg.Store.Backend] = hc.HealthCheck
	}

	for _, track := range loader.Tracks() {
		index, _ := loader.Index(track.Folder)
		store := progress.NewStore(a.KV, track.Folder)
		store.Subscribe(progress.LogTo(a.Events))
		a.navigators[track.Folder] = navigator.New(navigator.Config{
			Index:    index,
			Progress: store,
		})
		if dups := index.Duplicates(); len(dups) > 0 {
			slog.Warn("track has duplicate module slugs", "track", track.Folder, "slugs", dups)
		}
	}

	slog.Info("app ready",
		"backend", cfg.Store.Backend,
		"tracks", len(a.navigators),
		"content_units", registry.Len(),
	)
	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		a.KV = progress.NewMemoryKV()
		if cfg.Store.LogEvents {
			a.Events = progress.NewMemoryEventLogger()
		}

	case config.BackendSQLite:
		kv, err := progress.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.KV = kv
		a.closers = append(a.closers, func() { kv.Close() })

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		kv, err := progress.NewPostgresKV(db.Pool)
		if err != nil {
			return err
		}
		a.KV = kv
		if cfg.Store.LogEvents {
			a.Events = progress.NewPostgresEventLogger(db.Pool)
		}

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting to cache: %w", err)
		}
		a.KV = c
		a.closers = append(a.closers, func() { c.Close() })

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

// Navigator returns the navigator of a track.
func (a *App) Navigator(folder string) (*navigator.Navigator, bool) {
	n, ok := a.navigators[folder]
	return n, ok
}

// Tracks returns the loaded tracks sorted by folder.
func (a *App) Tracks() []*curriculum.Track {
	return a.Curriculum.Tracks()
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
