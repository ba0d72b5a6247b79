package progress_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

func openTestSQLite(t *testing.T, path string) *progress.SQLiteKV {
	t.Helper()
	kv, err := progress.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKV_GetSetDelete(t *testing.T) {
	kv := openTestSQLite(t, filepath.Join(t.TempDir(), "progress.db"))

	_, found, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set("a", "1"))
	require.NoError(t, kv.Set("a", "2"))
	require.NoError(t, kv.Set("b", "3"))

	v, found, err := kv.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", v)

	require.NoError(t, kv.Delete("a", "b", "never-set"))
	_, found, _ = kv.Get("b")
	assert.False(t, found)

	require.NoError(t, kv.HealthCheck(t.Context()))
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.db")

	kv, err := progress.OpenSQLite(path)
	require.NoError(t, err)
	store := progress.NewStore(kv, "golang")
	require.NoError(t, store.MarkTopicVisited("M1", 2))
	require.NoError(t, store.SetLastVisitedTopic("M1", 2))
	require.NoError(t, kv.Close())

	reopened := openTestSQLite(t, path)
	store = progress.NewStore(reopened, "golang")

	assert.True(t, store.IsTopicVisited("M1", 2))
	last, found := store.LastVisitedTopic("M1")
	assert.True(t, found)
	assert.Equal(t, 2, last)
}
