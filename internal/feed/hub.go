// Package feed pushes newly created drawings to connected gallery clients
// over WebSocket.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// EventDrawingCreated is the message type sent when a drawing is stored.
const EventDrawingCreated = "drawing.created"

// Message is the JSON envelope written to subscribers.
type Message struct {
	Type    string              `json:"type"`
	Drawing *domain.DrawingView `json:"drawing,omitempty"`
}

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	id   string
	send chan Message
}

// Hub tracks live subscribers and fans out messages to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	origins     []string
}

// NewHub creates a hub accepting WebSocket connections from origins
// (patterns as understood by websocket.AcceptOptions).
func NewHub(origins []string) *Hub {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		origins:     origins,
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// PublishCreated notifies every subscriber about a new drawing.
func (h *Hub) PublishCreated(view domain.DrawingView) {
	h.Broadcast(Message{Type: EventDrawingCreated, Drawing: &view})
}

// Broadcast queues msg for every subscriber. Slow subscribers whose buffer
// is full miss the message rather than blocking the publisher.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			slog.Warn("Feed subscriber buffer full, dropping message", "subscriber_id", sub.id, "type", msg.Type)
		}
	}
}

func (h *Hub) register() *subscriber {
	sub := &subscriber{id: uuid.NewString(), send: make(chan Message, subscriberBuffer)}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	slog.Info("Feed subscriber registered", "subscriber_id", sub.id)
	return sub
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		slog.Info("Feed subscriber unregistered", "subscriber_id", sub.id)
	}
}

// ServeHTTP upgrades the request and streams messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("Failed to accept feed WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	sub := h.register()
	defer h.unregister(sub)

	// Reads are only used to notice the client closing.
	ctx := ws.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.send:
			if err := writeJSON(ctx, ws, msg); err != nil {
				slog.Debug("Feed write failed", "error", err, "subscriber_id", sub.id)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}
