package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTopicIndex is returned for negative topic indices.
var ErrInvalidTopicIndex = errors.New("invalid topic index")

// record is the JSON value stored under a module's progress key.
type record struct {
	Completed bool  `json:"completed"`
	Visited   []int `json:"visited"`
}

// ModuleProgress summarizes a module's progress for progress bars.
type ModuleProgress struct {
	ModuleID       string `json:"moduleId"`
	Completed      bool   `json:"completed"`
	CompletedCount int    `json:"completedCount"`
	TotalTopics    int    `json:"totalTopics"`
	Percent        int    `json:"percent"`
	LastTopic      *int   `json:"lastTopic,omitempty"`
}

type subscription struct {
	id int
	fn Listener
}

// Store tracks completion and visited topics for the modules of one track.
// Keys are prefixed with the track so tracks never collide in a shared KV.
type Store struct {
	kv        KV
	track     string
	listeners []subscription
	nextID    int
	mu        sync.RWMutex

	// writeMu serializes read-modify-write cycles on progress records.
	writeMu sync.Mutex
}

// NewStore creates a progress store for track on top of kv.
func NewStore(kv KV, track string) *Store {
	return &Store{
		kv:    kv,
		track: track,
	}
}

// Track returns the track this store is scoped to.
func (s *Store) Track() string {
	return s.track
}

// Subscribe registers a listener for change events. The returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

// IsModuleCompleted reports the module-level completed flag.
func (s *Store) IsModuleCompleted(moduleID string) bool {
	return s.load(moduleID).Completed
}

// SetModuleCompleted overwrites the module-level completed flag.
func (s *Store) SetModuleCompleted(moduleID string, completed bool) error {
	s.writeMu.Lock()
	rec := s.load(moduleID)
	rec.Completed = completed
	err := s.save(moduleID, rec)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.publish(Event{ModuleID: moduleID, Kind: EventModuleCompleted, TopicIndex: -1, Completed: completed})
	return nil
}

// IsTopicVisited reports whether topicIndex has been visited.
func (s *Store) IsTopicVisited(moduleID string, topicIndex int) bool {
	_, found := slices.BinarySearch(s.load(moduleID).Visited, topicIndex)
	return found
}

// VisitedTopics returns the visited topic indices in ascending order.
func (s *Store) VisitedTopics(moduleID string) []int {
	visited := s.load(moduleID).Visited
	if visited == nil {
		return []int{}
	}
	return visited
}

// MarkTopicVisited adds topicIndex to the module's visited set.
// Marking an already visited topic is a no-op.
func (s *Store) MarkTopicVisited(moduleID string, topicIndex int) error {
	if topicIndex < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopicIndex, topicIndex)
	}

	s.writeMu.Lock()
	rec := s.load(moduleID)
	pos, found := slices.BinarySearch(rec.Visited, topicIndex)
	if found {
		s.writeMu.Unlock()
		return nil
	}
	rec.Visited = slices.Insert(rec.Visited, pos, topicIndex)
	err := s.save(moduleID, rec)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.publish(Event{ModuleID: moduleID, Kind: EventTopicVisited, TopicIndex: topicIndex})
	return nil
}

// ResetModule removes all stored progress of a module, including the last visited topic.
func (s *Store) ResetModule(moduleID string) error {
	s.writeMu.Lock()
	err := s.kv.Delete(s.progressKey(moduleID), s.lastTopicKey(moduleID))
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("reset module %s: %w", moduleID, err)
	}

	s.publish(Event{ModuleID: moduleID, Kind: EventModuleReset, TopicIndex: -1})
	return nil
}

// LastVisitedTopic returns the last topic index opened in the module.
func (s *Store) LastVisitedTopic(moduleID string) (int, bool) {
	raw, found := s.read(s.lastTopicKey(moduleID))
	if !found {
		return 0, false
	}

	var idx int
	if err := json.Unmarshal([]byte(raw), &idx); err != nil || idx < 0 {
		slog.Warn("ignoring malformed last topic", "track", s.track, "module_id", moduleID, "value", raw)
		return 0, false
	}
	return idx, true
}

// SetLastVisitedTopic overwrites the last visited topic pointer.
func (s *Store) SetLastVisitedTopic(moduleID string, topicIndex int) error {
	if topicIndex < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopicIndex, topicIndex)
	}
	if err := s.kv.Set(s.lastTopicKey(moduleID), strconv.Itoa(topicIndex)); err != nil {
		return fmt.Errorf("set last topic: %w", err)
	}

	s.publish(Event{ModuleID: moduleID, Kind: EventLastTopic, TopicIndex: topicIndex})
	return nil
}

// Summary computes the progress of a module with topicCount topics.
// Visited indices outside 0..topicCount-1 are not counted.
func (s *Store) Summary(moduleID string, topicCount int) ModuleProgress {
	rec := s.load(moduleID)

	count := 0
	for _, i := range rec.Visited {
		if i < topicCount {
			count++
		}
	}

	p := ModuleProgress{
		ModuleID:       moduleID,
		Completed:      rec.Completed,
		CompletedCount: count,
		TotalTopics:    topicCount,
	}
	if topicCount > 0 {
		p.Percent = int(math.Round(float64(count) * 100 / float64(topicCount)))
	}
	if last, ok := s.LastVisitedTopic(moduleID); ok {
		p.LastTopic = &last
	}
	return p
}

func (s *Store) progressKey(moduleID string) string {
	return s.track + "_module_progress_" + moduleID
}

func (s *Store) lastTopicKey(moduleID string) string {
	return s.track + "_module_lastTopic_" + moduleID
}

// read returns a stored value; backend errors are logged and read as absent.
func (s *Store) read(key string) (string, bool) {
	raw, found, err := s.kv.Get(key)
	if err != nil {
		slog.Warn("progress read failed", "key", key, "error", err)
		return "", false
	}
	return raw, found
}

func (s *Store) load(moduleID string) record {
	raw, found := s.read(s.progressKey(moduleID))
	if !found {
		return record{}
	}

	rec, ok := decodeRecord(raw)
	if !ok {
		slog.Warn("ignoring malformed progress record", "track", s.track, "module_id", moduleID)
		return record{}
	}
	return rec
}

func (s *Store) save(moduleID string, rec record) error {
	if rec.Visited == nil {
		rec.Visited = []int{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.kv.Set(s.progressKey(moduleID), string(data)); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *Store) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.Track = s.track
	ev.CreatedAt = time.Now()

	s.mu.RLock()
	subs := append([]subscription{}, s.listeners...)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

// decodeRecord accepts the object form plus the legacy bare forms:
// a JSON array is a visited set, a JSON bool is the completed flag.
func decodeRecord(raw string) (record, bool) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err == nil {
		return normalize(rec), true
	}

	var visited []int
	if err := json.Unmarshal([]byte(raw), &visited); err == nil {
		return normalize(record{Visited: visited}), true
	}

	var completed bool
	if err := json.Unmarshal([]byte(raw), &completed); err == nil {
		return record{Completed: completed}, true
	}

	return record{}, false
}

func normalize(rec record) record {
	visited := slices.DeleteFunc(rec.Visited, func(i int) bool { return i < 0 })
	slices.Sort(visited)
	rec.Visited = slices.Compact(visited)
	return rec
}
