package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-roadmap/internal/app"
	"github.com/p-n-ai/pai-roadmap/internal/navigator"
	"github.com/p-n-ai/pai-roadmap/internal/platform/config"
	"github.com/p-n-ai/pai-roadmap/internal/platform/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roadmapctl",
		Short:         "Inspect and edit curriculum progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("curriculum", "", "Curriculum directory (overrides LEARN_CURRICULUM_PATH)")
	root.PersistentFlags().String("db", "", "SQLite progress database (overrides LEARN_STORE_SQLITE_PATH, forces the sqlite backend)")
	root.PersistentFlags().String("track", "", "Track folder")
	root.PersistentFlags().Bool("verbose", false, "Log at debug level")

	root.AddCommand(tracksCmd())
	root.AddCommand(modulesCmd())
	root.AddCommand(progressCmd())
	root.AddCommand(resetCmd())
	root.AddCommand(exportCmd())
	return root
}

// loadConfig applies command-line overrides on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("curriculum"); p != "" {
		cfg.CurriculumPath = p
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Backend = config.BackendSQLite
		cfg.Store.SQLitePath = p
	}
	cfg.Log.Format = "text"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	return cfg, cfg.Validate()
}

// openApp loads config, installs the logger and opens the backend.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Log))
	return app.Open(cmd.Context(), cfg)
}

// trackNavigator resolves --track, defaulting to the only loaded track.
func trackNavigator(cmd *cobra.Command, a *app.App) (*navigator.Navigator, string, error) {
	folder, _ := cmd.Flags().GetString("track")
	if folder == "" {
		tracks := a.Tracks()
		if len(tracks) != 1 {
			return nil, "", fmt.Errorf("--track is required when %d tracks are loaded", len(tracks))
		}
		folder = tracks[0].Folder
	}
	nav, ok := a.Navigator(folder)
	if !ok {
		return nil, "", fmt.Errorf("track %q not found", folder)
	}
	return nav, folder, nil
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
