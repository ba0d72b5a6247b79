package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var formats = map[string]string{
	".md":   "markdown",
	".html": "html",
	".txt":  "text",
}

// LoadDir registers every file laid out as <root>/<slug>/<topicIndex>.<ext>.
// Files are read lazily when resolved. A missing root is not an error.
func LoadDir(r *Registry, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		slog.Warn("content directory not found", "path", root)
		return nil
	}

	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		format, ok := formats[ext]
		if !ok {
			return nil
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if err != nil || idx < 0 {
			return nil // Not a topic file
		}
		slug := filepath.Base(filepath.Dir(path))

		r.Register(slug, idx, fileFactory(path, format))
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	slog.Info("content registered", "units", count)
	return nil
}

func fileFactory(path, format string) Factory {
	return func() (Unit, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return Unit{}, fmt.Errorf("reading %s: %w", path, err)
		}
		return Unit{Format: format, Body: string(data)}, nil
	}
}
