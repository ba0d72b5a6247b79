package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-roadmap/internal/content"
	"github.com/p-n-ai/pai-roadmap/internal/curriculum"
	"github.com/p-n-ai/pai-roadmap/internal/navigator"
	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

func newTestServer(t *testing.T) (*Server, *progress.Store) {
	t.Helper()

	track := &curriculum.Track{
		Title:  "Shell Scripting",
		Folder: "shell",
		Segments: []curriculum.Segment{
			{ID: "basics", Modules: []curriculum.Module{
				{ID: "M0", Slug: "intro", Title: "Intro", Topics: []string{"What", "Why"}},
				{ID: "M1", Slug: "loops", Title: "Loops", Topics: []string{"for", "while", "until"}},
			}},
		},
	}
	store := progress.NewStore(progress.NewMemoryKV(), track.Folder)
	nav := navigator.New(navigator.Config{
		Index:    curriculum.BuildIndex(track.Segments),
		Progress: store,
	})

	registry := content.NewRegistry()
	registry.Register("loops", 0, func() (content.Unit, error) {
		return content.Unit{Format: "markdown", Body: "# for"}, nil
	})

	srv := New(Config{
		Tracks:  []Track{{Track: track, Navigator: nav}},
		Content: registry,
	})
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.checks = map[string]HealthCheck{
		"store": func(context.Context) error { return errors.New("connection refused") },
	}

	w := do(t, srv.Handler(), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	srv.checks = map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}
	w = do(t, srv.Handler(), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestListTracks(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/tracks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[[]TrackSummary](t, w)
	if len(got) != 1 || got[0].Folder != "shell" || got[0].Modules != 2 {
		t.Errorf("tracks = %+v", got)
	}
}

func TestGetModule(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/tracks/shell/modules/loops", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[ModuleResponse](t, w)
	if got.Module.ID != "M1" {
		t.Errorf("module = %q, want M1", got.Module.ID)
	}
	if got.Prev == nil || got.Prev.Slug != "intro" {
		t.Errorf("prev = %+v, want intro", got.Prev)
	}
	if got.Next != nil {
		t.Errorf("next = %+v, want none", got.Next)
	}
	if got.Progress.TotalTopics != 3 {
		t.Errorf("total topics = %d, want 3", got.Progress.TotalTopics)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		wantCode string
		wantBack string
	}{
		{"unknown module", "/tracks/shell/modules/nope", "module_not_found", "/tracks/shell/modules"},
		{"unknown topic", "/tracks/shell/modules/loops/topics/9", "topic_not_found", "/tracks/shell/modules"},
		{"unknown track", "/tracks/cobol/modules", "track_not_found", "/tracks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Handler(), http.MethodGet, tt.path, "")
			if w.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", w.Code)
			}
			got := decode[errorResponse](t, w)
			if got.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Error.Code, tt.wantCode)
			}
			if got.Error.Back != tt.wantBack {
				t.Errorf("back = %q, want %q", got.Error.Back, tt.wantBack)
			}
		})
	}
}

func TestGetTopic_VisitsAndResolvesContent(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/tracks/shell/modules/loops/topics/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[TopicResponse](t, w)
	if got.Title != "for" || got.Content.State != content.StateFound || got.Content.Body != "# for" {
		t.Errorf("topic = %+v", got)
	}
	if got.Prev != nil || got.Next == nil || *got.Next != 1 {
		t.Errorf("prev/next = %v/%v, want none/1", got.Prev, got.Next)
	}
	if !store.IsTopicVisited("M1", 0) {
		t.Error("topic 0 should be visited")
	}

	w = do(t, h, http.MethodGet, "/tracks/shell/modules/loops/topics/2", "")
	got = decode[TopicResponse](t, w)
	if got.Content.State != content.StateMissing || got.Content.Key != "loops/2" {
		t.Errorf("content = %+v, want missing loops/2", got.Content)
	}

	// Unparseable index opens the first topic.
	w = do(t, h, http.MethodGet, "/tracks/shell/modules/loops/topics/abc", "")
	got = decode[TopicResponse](t, w)
	if got.Index != 0 {
		t.Errorf("index = %d, want 0", got.Index)
	}

	w = do(t, h, http.MethodGet, "/tracks/shell/modules/loops/resume", "")
	resume := decode[ResumeResponse](t, w)
	if !resume.Found || resume.Index != 0 {
		t.Errorf("resume = %+v, want topic 0", resume)
	}
}

func TestSetCompletedAndReset(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPut, "/tracks/shell/modules/intro/completed", `{"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if got := decode[progress.ModuleProgress](t, w); !got.Completed {
		t.Errorf("summary = %+v, want completed", got)
	}
	if !store.IsModuleCompleted("M0") {
		t.Error("M0 should be completed")
	}

	w = do(t, h, http.MethodPut, "/tracks/shell/modules/intro/completed", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", w.Code)
	}
	w = do(t, h, http.MethodPut, "/tracks/shell/modules/intro/completed", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", w.Code)
	}

	w = do(t, h, http.MethodDelete, "/tracks/shell/modules/intro/progress", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", w.Code)
	}
	if store.IsModuleCompleted("M0") {
		t.Error("M0 should not be completed after reset")
	}
}

func TestListModules(t *testing.T) {
	srv, store := newTestServer(t)
	if err := store.MarkTopicVisited("M1", 1); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv.Handler(), http.MethodGet, "/tracks/shell/modules", "")
	got := decode[[]ModuleEntry](t, w)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Slug != "loops" || got[1].Position != 1 || got[1].Progress.CompletedCount != 1 {
		t.Errorf("row 1 = %+v", got[1])
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/tracks/shell/progress.xlsx", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Progress")
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestEvents_StreamsProgressChanges(t *testing.T) {
	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/tracks/shell/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return srv.Hub().Subscribers("shell") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.SetModuleCompleted("M1", true))

	var ev progress.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, progress.EventModuleCompleted, ev.Kind)
	require.Equal(t, "M1", ev.ModuleID)
	require.Equal(t, "shell", ev.Track)
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"*", "https://learn.example.com", "localhost:3000"})
	want := []string{"*", "learn.example.com", "localhost:3000"}
	require.Equal(t, want, got)
}
