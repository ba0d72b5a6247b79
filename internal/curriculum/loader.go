package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader loads and caches curriculum tracks from the filesystem.
type Loader struct {
	rootDir string
	tracks  map[string]*Track
	indexes map[string]*Index
	mu      sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads every track under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		tracks:  make(map[string]*Track),
		indexes: make(map[string]*Index),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "tracks", len(l.tracks))
	return l, nil
}

// Track returns a track by folder.
func (l *Loader) Track(folder string) (*Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[folder]
	return t, ok
}

// Index returns the flattened module index of a track.
func (l *Loader) Index(folder string) (*Index, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.indexes[folder]
	return idx, ok
}

// Tracks returns all loaded tracks sorted by folder.
func (l *Loader) Tracks() []*Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tracks := make([]*Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Folder < tracks[j].Folder })
	return tracks
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			return l.loadTrack(path)
		}
		return nil
	})
}

func (l *Loader) loadTrack(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	track, err := ParseTrack(data, base)
	if err != nil {
		slog.Warn("skipping invalid curriculum", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tracks[track.Folder]; exists {
		slog.Warn("skipping curriculum with duplicate folder", "path", path, "folder", track.Folder)
		return nil
	}
	l.tracks[track.Folder] = track
	l.indexes[track.Folder] = BuildIndex(track.Segments)

	return nil
}

// ParseTrack decodes, validates and normalizes a JSON or YAML curriculum document.
// Missing folders fall back to defaultFolder; missing slugs are derived from titles.
func ParseTrack(data []byte, defaultFolder string) (*Track, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}

	normalizeIDs(doc)
	normalized, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var track Track
	if err := yaml.Unmarshal(normalized, &track); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if track.Folder == "" {
		track.Folder = defaultFolder
	}
	if track.Folder == "" {
		track.Folder = Slugify(track.Title)
	}
	for si := range track.Segments {
		for mi := range track.Segments[si].Modules {
			m := &track.Segments[si].Modules[mi]
			if m.Slug == "" {
				m.Slug = Slugify(m.Title)
			}
		}
	}

	if dups := BuildIndex(track.Segments).Duplicates(); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, strings.Join(dups, ", "))
	}

	return &track, nil
}

// decodeDocument accepts JSON (tabs and all) or YAML.
func decodeDocument(data []byte) (any, error) {
	var doc any
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// normalizeIDs rewrites numeric segmentId/moduleId values as strings.
func normalizeIDs(doc any) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	segments, _ := root["segments"].([]any)
	for _, s := range segments {
		seg, ok := s.(map[string]any)
		if !ok {
			continue
		}
		stringifyField(seg, "segmentId")
		modules, _ := seg["modules"].([]any)
		for _, m := range modules {
			if mod, ok := m.(map[string]any); ok {
				stringifyField(mod, "moduleId")
			}
		}
	}
}

func stringifyField(m map[string]any, key string) {
	switch v := m[key].(type) {
	case int:
		m[key] = strconv.Itoa(v)
	case float64:
		m[key] = strconv.FormatFloat(v, 'f', -1, 64)
	}
}
