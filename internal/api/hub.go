package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-roadmap/internal/progress"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	events chan progress.Event
}

// Hub fans progress events out to websocket subscribers of each track.
type Hub struct {
	subs map[string]map[*subscriber]struct{}
	mu   sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish delivers ev to every subscriber of ev.Track. Slow subscribers drop events.
func (h *Hub) Publish(ev progress.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.Track] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("dropping progress event for slow subscriber", "track", ev.Track, "kind", ev.Kind)
		}
	}
}

// Subscribers returns the number of live subscribers of a track.
func (h *Hub) Subscribers(track string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[track])
}

func (h *Hub) subscribe(track string) (*subscriber, func()) {
	sub := &subscriber{events: make(chan progress.Event, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[track] == nil {
		h.subs[track] = make(map[*subscriber]struct{})
	}
	h.subs[track][sub] = struct{}{}
	h.mu.Unlock()
	slog.Debug("progress subscriber registered", "track", track)

	return sub, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[track], sub)
		if len(h.subs[track]) == 0 {
			delete(h.subs, track)
		}
	}
}

// serveWS streams a track's progress events as JSON messages until the client goes away.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, track string, origins []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Warn("websocket accept failed", "track", track, "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())

	sub, unsubscribe := h.subscribe(track)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-sub.events:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "track", track, "error", err)
				return
			}
		}
	}
}

// originPatterns converts CORS origins (scheme://host) into websocket host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
