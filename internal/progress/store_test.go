package progress_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

func newTestStore(t *testing.T) (*progress.Store, *progress.MemoryKV) {
	t.Helper()
	kv := progress.NewMemoryKV()
	return progress.NewStore(kv, "track"), kv
}

func TestStore_Defaults(t *testing.T) {
	store, _ := newTestStore(t)

	assert.False(t, store.IsModuleCompleted("M1"))
	assert.False(t, store.IsTopicVisited("M1", 0))
	assert.Empty(t, store.VisitedTopics("M1"))

	_, found := store.LastVisitedTopic("M1")
	assert.False(t, found)
}

func TestStore_SetModuleCompleted(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SetModuleCompleted("M1", true))
	assert.True(t, store.IsModuleCompleted("M1"))

	require.NoError(t, store.SetModuleCompleted("M1", true))
	assert.True(t, store.IsModuleCompleted("M1"))

	require.NoError(t, store.SetModuleCompleted("M1", false))
	assert.False(t, store.IsModuleCompleted("M1"))
}

func TestStore_MarkTopicVisited_Idempotent(t *testing.T) {
	store, kv := newTestStore(t)

	require.NoError(t, store.MarkTopicVisited("M1", 2))
	once, _, _ := kv.Get("track_module_progress_M1")

	require.NoError(t, store.MarkTopicVisited("M1", 2))
	twice, _, _ := kv.Get("track_module_progress_M1")

	assert.Equal(t, once, twice)
	assert.Equal(t, []int{2}, store.VisitedTopics("M1"))
}

func TestStore_MarkTopicVisited_KeepsSortedUniqueSet(t *testing.T) {
	store, _ := newTestStore(t)

	for _, i := range []int{4, 0, 2, 0, 4} {
		require.NoError(t, store.MarkTopicVisited("M1", i))
	}

	assert.Equal(t, []int{0, 2, 4}, store.VisitedTopics("M1"))
	assert.True(t, store.IsTopicVisited("M1", 2))
	assert.False(t, store.IsTopicVisited("M1", 1))
}

func TestStore_MarkTopicVisited_Negative(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.MarkTopicVisited("M1", -1)
	assert.True(t, errors.Is(err, progress.ErrInvalidTopicIndex))
}

func TestStore_ResetModule(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SetModuleCompleted("M1", true))
	require.NoError(t, store.MarkTopicVisited("M1", 0))
	require.NoError(t, store.MarkTopicVisited("M1", 3))
	require.NoError(t, store.SetLastVisitedTopic("M1", 3))
	require.NoError(t, store.MarkTopicVisited("M2", 1))

	require.NoError(t, store.ResetModule("M1"))

	assert.False(t, store.IsModuleCompleted("M1"))
	for i := 0; i < 5; i++ {
		assert.False(t, store.IsTopicVisited("M1", i), "topic %d", i)
	}
	_, found := store.LastVisitedTopic("M1")
	assert.False(t, found)

	assert.True(t, store.IsTopicVisited("M2", 1), "other modules must be untouched")
}

func TestStore_LastVisitedTopic_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	for _, i := range []int{0, 1, 7, 1000} {
		require.NoError(t, store.SetLastVisitedTopic("M1", i))
		got, found := store.LastVisitedTopic("M1")
		require.True(t, found)
		assert.Equal(t, i, got)
	}

	assert.ErrorIs(t, store.SetLastVisitedTopic("M1", -3), progress.ErrInvalidTopicIndex)
}

func TestStore_Summary(t *testing.T) {
	store, _ := newTestStore(t)

	for _, i := range []int{4, 0, 2} {
		require.NoError(t, store.MarkTopicVisited("M1", i))
	}

	got := store.Summary("M1", 5)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Equal(t, 60, got.Percent)
	assert.Equal(t, 5, got.TotalTopics)
	assert.Nil(t, got.LastTopic)
}

func TestStore_Summary_IgnoresOutOfRangeAndEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.MarkTopicVisited("M1", 0))
	require.NoError(t, store.MarkTopicVisited("M1", 9))
	require.NoError(t, store.SetLastVisitedTopic("M1", 0))

	got := store.Summary("M1", 3)
	assert.Equal(t, 1, got.CompletedCount)
	assert.Equal(t, 33, got.Percent)
	require.NotNil(t, got.LastTopic)
	assert.Equal(t, 0, *got.LastTopic)

	assert.Equal(t, 0, store.Summary("M2", 0).Percent)
}

func TestStore_MalformedStorage(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"invalid json", "{not json"},
		{"wrong shape", `{"visited": "zero"}`},
		{"string", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, kv := newTestStore(t)
			require.NoError(t, kv.Set("track_module_progress_M1", tt.value))
			require.NoError(t, kv.Set("track_module_lastTopic_M1", tt.value))

			assert.False(t, store.IsTopicVisited("M1", 0))
			assert.False(t, store.IsModuleCompleted("M1"))
			_, found := store.LastVisitedTopic("M1")
			assert.False(t, found)

			// Writing over a malformed record starts from the default.
			require.NoError(t, store.MarkTopicVisited("M1", 1))
			assert.Equal(t, []int{1}, store.VisitedTopics("M1"))
		})
	}
}

func TestStore_LegacyValueForms(t *testing.T) {
	store, kv := newTestStore(t)

	require.NoError(t, kv.Set("track_module_progress_A", "[3, 1, 1, -2]"))
	require.NoError(t, kv.Set("track_module_progress_B", "true"))

	assert.Equal(t, []int{1, 3}, store.VisitedTopics("A"))
	assert.True(t, store.IsModuleCompleted("B"))
}

func TestStore_TracksDoNotCollide(t *testing.T) {
	kv := progress.NewMemoryKV()
	goTrack := progress.NewStore(kv, "golang")
	shellTrack := progress.NewStore(kv, "shell")

	require.NoError(t, goTrack.MarkTopicVisited("intro", 0))
	require.NoError(t, goTrack.SetModuleCompleted("intro", true))

	assert.False(t, shellTrack.IsTopicVisited("intro", 0))
	assert.False(t, shellTrack.IsModuleCompleted("intro"))
	assert.Equal(t, 1, kv.Len())
}

func TestStore_Subscribe(t *testing.T) {
	store, _ := newTestStore(t)

	var got []progress.Event
	cancel := store.Subscribe(func(ev progress.Event) { got = append(got, ev) })

	require.NoError(t, store.MarkTopicVisited("M1", 1))
	require.NoError(t, store.MarkTopicVisited("M1", 1)) // no-op, no event
	require.NoError(t, store.SetModuleCompleted("M1", true))
	require.NoError(t, store.ResetModule("M1"))

	require.Len(t, got, 3)
	assert.Equal(t, progress.EventTopicVisited, got[0].Kind)
	assert.Equal(t, 1, got[0].TopicIndex)
	assert.Equal(t, "track", got[0].Track)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, progress.EventModuleCompleted, got[1].Kind)
	assert.True(t, got[1].Completed)
	assert.Equal(t, progress.EventModuleReset, got[2].Kind)

	cancel()
	require.NoError(t, store.MarkTopicVisited("M1", 2))
	assert.Len(t, got, 3)
}

type failingKV struct{}

func (failingKV) Get(string) (string, bool, error) { return "", false, errors.New("disk on fire") }
func (failingKV) Set(string, string) error         { return errors.New("disk on fire") }
func (failingKV) Delete(...string) error           { return errors.New("disk on fire") }

func TestStore_BackendErrors(t *testing.T) {
	store := progress.NewStore(failingKV{}, "track")

	assert.False(t, store.IsTopicVisited("M1", 0), "read errors degrade to defaults")
	assert.Error(t, store.MarkTopicVisited("M1", 0), "write errors are returned")
}

// slowKV delays reads like a database round trip would.
type slowKV struct {
	*progress.MemoryKV
	delay time.Duration
}

func (k slowKV) Get(key string) (string, bool, error) {
	v, found, err := k.MemoryKV.Get(key)
	time.Sleep(k.delay)
	return v, found, err
}

func TestStore_ConcurrentWritesKeepEveryVisit(t *testing.T) {
	store := progress.NewStore(slowKV{MemoryKV: progress.NewMemoryKV(), delay: 5 * time.Millisecond}, "track")

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.MarkTopicVisited("M1", i))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.SetModuleCompleted("M1", true))
	}()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, store.VisitedTopics("M1"))
	assert.True(t, store.IsModuleCompleted("M1"))
}
