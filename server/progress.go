package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"TuneScope/core/analysis"
	"TuneScope/logger"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressHub fans batch progress events out to the owner's websocket
// subscribers. Events are dropped when a subscriber's buffer is full so a
// slow client never stalls a running batch.
type progressHub struct {
	mu   sync.Mutex
	subs map[int64]map[chan analysis.ProgressEvent]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{
		subs: make(map[int64]map[chan analysis.ProgressEvent]struct{}),
	}
}

func (h *progressHub) subscribe(ownerID int64) chan analysis.ProgressEvent {
	ch := make(chan analysis.ProgressEvent, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[chan analysis.ProgressEvent]struct{})
	}
	h.subs[ownerID][ch] = struct{}{}
	return ch
}

func (h *progressHub) unsubscribe(ownerID int64, ch chan analysis.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[ownerID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, ownerID)
		}
	}
	close(ch)
}

func (h *progressHub) publish(ownerID int64, ev analysis.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ownerID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// BatchProgressHandler streams per-file progress events for the caller's
// running batch analyses over a websocket.
func (h *APIHandler) BatchProgressHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := GetOwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	events := h.progress.subscribe(ownerID)
	defer h.progress.unsubscribe(ownerID, events)

	// Reader goroutine detects client disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("progress subscriber write failed", logger.ErrorField(err))
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
