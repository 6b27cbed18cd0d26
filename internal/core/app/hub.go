package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/shared/observability"
	"vinec/internal/shared/util"

	"github.com/google/uuid"
)

const (
	clientBuffer      = 32
	keepAliveInterval = 30 * time.Second
)

// Hub streams update events to browser clients over server-sent events.
type Hub struct {
	sessionID  string
	maxClients int
	connects   *util.LimiterRegistry

	mu      sync.RWMutex
	clients map[string]chan ports.UpdateEvent
	closed  bool
}

// NewHub bounds concurrent streams by maxClients (0 means unbounded) and new
// connections per remote address by connectRate per second.
func NewHub(sessionID string, maxClients int, connectRate float64) *Hub {
	h := &Hub{
		sessionID:  sessionID,
		maxClients: maxClients,
		clients:    make(map[string]chan ports.UpdateEvent),
	}
	if connectRate > 0 {
		h.connects = util.NewLimiterRegistry(connectRate, max(1, int(connectRate)), 10*time.Minute)
	}
	return h
}

// Publish implements ports.UpdatePublisher. A client that is not keeping up
// misses the event.
func (h *Hub) Publish(event ports.UpdateEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register() (string, chan ports.UpdateEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, fmt.Errorf("hub closed")
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return "", nil, fmt.Errorf("too many clients")
	}
	id := uuid.NewString()
	ch := make(chan ports.UpdateEvent, clientBuffer)
	h.clients[id] = ch
	observability.HMRClients.Set(float64(len(h.clients)))
	return id, ch, nil
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
	observability.HMRClients.Set(float64(len(h.clients)))
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.connects != nil && !h.connects.Allow(util.ClientIP(r)) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, events, err := h.register()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.unregister(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	fmt.Fprintf(w, "event: connected\ndata: {\"client\":%q,\"session\":%q}\n\n", id, h.sessionID)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: update\ndata: %s\n\n", event.ID, data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// Close ends every open stream.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
	observability.HMRClients.Set(0)
	h.mu.Unlock()
}
