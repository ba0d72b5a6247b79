package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-roadmap/internal/content"
	"github.com/p-n-ai/pai-roadmap/internal/curriculum"
	"github.com/p-n-ai/pai-roadmap/internal/progress"
	"github.com/p-n-ai/pai-roadmap/internal/report"
)

// TrackSummary is one entry of the track list.
type TrackSummary struct {
	Folder  string `json:"folder"`
	Title   string `json:"title"`
	Modules int    `json:"modules"`
}

// ModuleLink points at a neighboring module.
type ModuleLink struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// ModuleEntry is one row of the flattened module list.
type ModuleEntry struct {
	Position int                     `json:"position"`
	Slug     string                  `json:"slug"`
	Title    string                  `json:"title"`
	Progress progress.ModuleProgress `json:"progress"`
}

// ModuleResponse describes a single module.
type ModuleResponse struct {
	Module   curriculum.Module       `json:"module"`
	Prev     *ModuleLink             `json:"prev,omitempty"`
	Next     *ModuleLink             `json:"next,omitempty"`
	Progress progress.ModuleProgress `json:"progress"`
}

// ContentResponse carries a topic's content or the key that was not found.
type ContentResponse struct {
	State  content.State `json:"state"`
	Key    string        `json:"key"`
	Format string        `json:"format,omitempty"`
	Body   string        `json:"body,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// TopicResponse describes a visited topic.
type TopicResponse struct {
	Module  ModuleLink      `json:"module"`
	Index   int             `json:"index"`
	Title   string          `json:"title"`
	Prev    *int            `json:"prev,omitempty"`
	Next    *int            `json:"next,omitempty"`
	Content ContentResponse `json:"content"`
}

// ResumeResponse reports where a module was left off.
type ResumeResponse struct {
	Found bool   `json:"found"`
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

type completedRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

func (s *Server) trackFor(r *http.Request) (Track, error) {
	t, ok := s.tracks[chi.URLParam(r, "track")]
	if !ok {
		return Track{}, errTrackNotFound
	}
	return t, nil
}

func modulesPath(track string) string {
	return fmt.Sprintf("/tracks/%s/modules", track)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	out := make([]TrackSummary, 0, len(s.order))
	for _, folder := range s.order {
		t := s.tracks[folder].Track
		out = append(out, TrackSummary{
			Folder:  t.Folder,
			Title:   t.Title,
			Modules: t.ModuleCount(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	rows := t.Navigator.Overview()
	out := make([]ModuleEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ModuleEntry{
			Position: row.Position,
			Slug:     row.Module.Slug,
			Title:    row.Module.Title,
			Progress: row.Progress,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	slug := chi.URLParam(r, "slug")
	m, err := t.Navigator.ResolveModule(slug)
	if err != nil {
		respondError(w, err, modulesPath(t.Track.Folder))
		return
	}

	resp := ModuleResponse{
		Module:   m,
		Progress: t.Navigator.ModuleProgress(m),
	}
	if prev, ok := t.Navigator.PrevModule(slug); ok {
		resp.Prev = &ModuleLink{Slug: prev.Slug, Title: prev.Title}
	}
	if next, ok := t.Navigator.NextModule(slug); ok {
		resp.Next = &ModuleLink{Slug: next.Slug, Title: next.Title}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetTopic opens a topic: viewing it marks it visited.
func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	slug := chi.URLParam(r, "slug")
	ref, err := t.Navigator.VisitTopic(slug, chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, err, modulesPath(t.Track.Folder))
		return
	}

	resp := TopicResponse{
		Module:  ModuleLink{Slug: ref.Module.Slug, Title: ref.Module.Title},
		Index:   ref.Index,
		Title:   ref.Title,
		Content: contentResponse(s.content.Resolve(ref.Module.Slug, ref.Index)),
	}
	if prev, ok := t.Navigator.PrevTopic(slug, ref.Index); ok {
		resp.Prev = &prev
	}
	if next, ok := t.Navigator.NextTopic(slug, ref.Index); ok {
		resp.Next = &next
	}
	respondJSON(w, http.StatusOK, resp)
}

func contentResponse(res content.Result) ContentResponse {
	out := ContentResponse{State: res.State, Key: res.Key}
	if res.State == content.StateFound {
		out.Format = res.Unit.Format
		out.Body = res.Unit.Body
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	ref, ok, err := t.Navigator.Resume(chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err, modulesPath(t.Track.Folder))
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, ResumeResponse{})
		return
	}
	respondJSON(w, http.StatusOK, ResumeResponse{Found: true, Index: ref.Index, Title: ref.Title})
}

func (s *Server) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	var req completedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, invalidInput("decode body: %v", err), "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, invalidInput("completed is required"), "")
		return
	}

	summary, err := t.Navigator.SetModuleCompleted(chi.URLParam(r, "slug"), *req.Completed)
	if err != nil {
		respondError(w, err, modulesPath(t.Track.Folder))
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleResetModule(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	if err := t.Navigator.ResetModule(chi.URLParam(r, "slug")); err != nil {
		respondError(w, err, modulesPath(t.Track.Folder))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, t.Track.Title, t.Navigator.Overview()); err != nil {
		respondError(w, fmt.Errorf("export progress: %w", err), "")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.Track.Folder+"-progress.xlsx"))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("failed to write export", "track", t.Track.Folder, "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	t, err := s.trackFor(r)
	if err != nil {
		respondError(w, err, "/tracks")
		return
	}
	s.hub.serveWS(w, r, t.Track.Folder, s.origins)
}

