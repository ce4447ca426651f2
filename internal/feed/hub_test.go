package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/coder/websocket"
)

func waitForSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, h.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	waitForSubscribers(t, hub, 1)

	hub.PublishCreated(domain.DrawingView{ID: 7, Prompt: "猫", PromptType: domain.PromptToday})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != EventDrawingCreated || msg.Drawing == nil || msg.Drawing.ID != 7 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	waitForSubscribers(t, hub, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitForSubscribers(t, hub, 0)
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	t.Parallel()

	// Must not block or panic.
	NewHub(nil).Broadcast(Message{Type: EventDrawingCreated})
}
