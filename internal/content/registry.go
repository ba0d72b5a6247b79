// Package content resolves the renderable unit behind a (module slug, topic index) pair.
package content

import (
	"fmt"
	"log/slog"
	"sync"
)

// Unit is an opaque renderable content unit.
type Unit struct {
	Key    string `json:"key"`
	Format string `json:"format"` // "markdown", "html" or "text"
	Body   string `json:"body"`
}

// Factory produces a content unit on demand.
type Factory func() (Unit, error)

// State is the outcome of a content lookup.
type State string

const (
	StateLoading State = "loading"
	StateFound   State = "found"
	StateMissing State = "missing"
)

// Result is returned by Resolve. A missing result always carries the key
// that was looked up so callers can render a diagnostic placeholder.
type Result struct {
	State State
	Key   string
	Unit  Unit
	Err   error // set when a registered factory failed
}

// Key builds the registry key "<slug>/<topicIndex>".
func Key(slug string, topicIndex int) string {
	return fmt.Sprintf("%s/%d", slug, topicIndex)
}

// Registry maps content keys to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds or replaces the factory for (slug, topicIndex).
func (r *Registry) Register(slug string, topicIndex int, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[Key(slug, topicIndex)] = f
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Resolve looks up and runs the factory for (slug, topicIndex).
func (r *Registry) Resolve(slug string, topicIndex int) Result {
	key := Key(slug, topicIndex)

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return Result{State: StateMissing, Key: key}
	}

	unit, err := f()
	if err != nil {
		slog.Warn("content factory failed", "key", key, "error", err)
		return Result{State: StateMissing, Key: key, Err: err}
	}
	if unit.Key == "" {
		unit.Key = key
	}
	return Result{State: StateFound, Key: key, Unit: unit}
}
