package services

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const liveWriteTimeout = 5 * time.Second

// LiveEvent is pushed to websocket clients after a write. Metrics and
// notification events only reach admin connections.
type LiveEvent struct {
	Type      string        `json:"type"`
	Resource  string        `json:"resource,omitempty"`
	ID        int64         `json:"id,omitempty"`
	At        time.Time     `json:"at"`
	Metrics   *MetricSample `json:"metrics,omitempty"`
	AdminOnly bool          `json:"-"`
}

func (e LiveEvent) adminOnly() bool {
	return e.AdminOnly || e.Metrics != nil
}

type liveClient struct {
	admin bool
}

type LiveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]liveClient
	ch      chan LiveEvent
}

func NewLiveHub() *LiveHub {
	return &LiveHub{
		clients: map[*websocket.Conn]liveClient{},
		ch:      make(chan LiveEvent, 64),
	}
}

func (h *LiveHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.send(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *LiveHub) send(event LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		if event.adminOnly() && !client.admin {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

// Broadcast queues event. A full queue drops it; clients still poll.
func (h *LiveHub) Broadcast(event LiveEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.ch <- event:
	default:
	}
}

// Changed announces a write on resource.
func (h *LiveHub) Changed(action, resource string, id int64) {
	h.Broadcast(LiveEvent{Type: action, Resource: resource, ID: id})
}

func (h *LiveHub) Add(conn *websocket.Conn, admin bool) {
	h.mu.Lock()
	h.clients[conn] = liveClient{admin: admin}
	h.mu.Unlock()
}

func (h *LiveHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *LiveHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *LiveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
