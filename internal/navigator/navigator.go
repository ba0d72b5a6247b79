// Package navigator resolves modules and topics of a track and computes
// previous/next neighbors over the flattened module index.
package navigator

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/p-n-ai/pai-roadmap/internal/curriculum"
	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrTopicNotFound  = errors.New("topic not found")
)

// Config holds dependencies for a Navigator.
type Config struct {
	Index    *curriculum.Index
	Progress *progress.Store // defaults to an in-memory store
}

// Navigator answers navigation requests for one track.
type Navigator struct {
	index    *curriculum.Index
	progress *progress.Store
}

// TopicRef identifies a resolved topic.
type TopicRef struct {
	Module curriculum.Module
	Title  string
	Index  int
}

// ModuleStatus is one row of a track overview.
type ModuleStatus struct {
	Position int
	Module   curriculum.Module
	Progress progress.ModuleProgress
}

// New creates a navigator.
func New(cfg Config) *Navigator {
	index := cfg.Index
	if index == nil {
		index = curriculum.BuildIndex(nil)
	}
	store := cfg.Progress
	if store == nil {
		store = progress.NewStore(progress.NewMemoryKV(), "")
	}
	return &Navigator{
		index:    index,
		progress: store,
	}
}

// Progress returns the progress store the navigator writes to.
func (n *Navigator) Progress() *progress.Store {
	return n.progress
}

// ResolveModule looks a module up by slug.
func (n *Navigator) ResolveModule(slug string) (curriculum.Module, error) {
	m, ok := n.index.Lookup(slug)
	if !ok {
		return curriculum.Module{}, ErrModuleNotFound
	}
	return m, nil
}

// ResolveTopic looks a topic up by module slug and raw topic index.
// An index that is not a non-negative integer resolves as 0.
func (n *Navigator) ResolveTopic(slug, rawIndex string) (TopicRef, error) {
	m, err := n.ResolveModule(slug)
	if err != nil {
		return TopicRef{}, err
	}

	idx := ParseTopicIndex(rawIndex)
	title, ok := m.Topic(idx)
	if !ok {
		return TopicRef{}, ErrTopicNotFound
	}
	return TopicRef{Module: m, Title: title, Index: idx}, nil
}

// ParseTopicIndex parses a topic index, substituting 0 for anything that is
// not a non-negative integer.
func ParseTopicIndex(raw string) int {
	v, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return 0
	}
	return int(v)
}

// VisitTopic resolves a topic and records it as visited and as the module's
// last visited topic. Progress write failures are logged, not returned.
func (n *Navigator) VisitTopic(slug, rawIndex string) (TopicRef, error) {
	ref, err := n.ResolveTopic(slug, rawIndex)
	if err != nil {
		return TopicRef{}, err
	}

	if err := n.progress.MarkTopicVisited(ref.Module.ID, ref.Index); err != nil {
		slog.Warn("failed to mark topic visited", "module_id", ref.Module.ID, "topic", ref.Index, "error", err)
	}
	if err := n.progress.SetLastVisitedTopic(ref.Module.ID, ref.Index); err != nil {
		slog.Warn("failed to set last topic", "module_id", ref.Module.ID, "topic", ref.Index, "error", err)
	}

	return ref, nil
}

// PrevTopic returns the index before index, if any.
func (n *Navigator) PrevTopic(slug string, index int) (int, bool) {
	m, ok := n.index.Lookup(slug)
	if !ok || index <= 0 || index >= m.TopicCount() {
		return 0, false
	}
	return index - 1, true
}

// NextTopic returns the index after index, if any.
func (n *Navigator) NextTopic(slug string, index int) (int, bool) {
	m, ok := n.index.Lookup(slug)
	if !ok || index < 0 || index >= m.TopicCount()-1 {
		return 0, false
	}
	return index + 1, true
}

// PrevModule returns the module before slug in flattened order, if any.
func (n *Navigator) PrevModule(slug string) (curriculum.Module, bool) {
	pos, ok := n.index.Position(slug)
	if !ok {
		return curriculum.Module{}, false
	}
	return n.index.ModuleAt(pos - 1)
}

// NextModule returns the module after slug in flattened order, if any.
func (n *Navigator) NextModule(slug string) (curriculum.Module, bool) {
	pos, ok := n.index.Position(slug)
	if !ok {
		return curriculum.Module{}, false
	}
	return n.index.ModuleAt(pos + 1)
}

// SetModuleCompleted is the explicit, user-initiated completion toggle.
func (n *Navigator) SetModuleCompleted(slug string, completed bool) (progress.ModuleProgress, error) {
	m, err := n.ResolveModule(slug)
	if err != nil {
		return progress.ModuleProgress{}, err
	}
	if err := n.progress.SetModuleCompleted(m.ID, completed); err != nil {
		return progress.ModuleProgress{}, err
	}
	return n.progress.Summary(m.ID, m.TopicCount()), nil
}

// ResetModule clears all progress of the module.
func (n *Navigator) ResetModule(slug string) error {
	m, err := n.ResolveModule(slug)
	if err != nil {
		return err
	}
	return n.progress.ResetModule(m.ID)
}

// Resume returns the module's last visited topic. It reports false when the
// module was never visited or the stored index no longer exists.
func (n *Navigator) Resume(slug string) (TopicRef, bool, error) {
	m, err := n.ResolveModule(slug)
	if err != nil {
		return TopicRef{}, false, err
	}

	idx, ok := n.progress.LastVisitedTopic(m.ID)
	if !ok {
		return TopicRef{}, false, nil
	}
	title, ok := m.Topic(idx)
	if !ok {
		return TopicRef{}, false, nil
	}
	return TopicRef{Module: m, Title: title, Index: idx}, true, nil
}

// ModuleProgress summarizes the progress of one module.
func (n *Navigator) ModuleProgress(m curriculum.Module) progress.ModuleProgress {
	return n.progress.Summary(m.ID, m.TopicCount())
}

// Overview lists every module in flattened order with its progress.
func (n *Navigator) Overview() []ModuleStatus {
	modules := n.index.Modules()
	out := make([]ModuleStatus, 0, len(modules))
	for pos, m := range modules {
		out = append(out, ModuleStatus{
			Position: pos,
			Module:   m,
			Progress: n.ModuleProgress(m),
		})
	}
	return out
}
