package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/draw-labs/internal/feed"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// LiveURL returns the WebSocket address of the live feed for an API root.
func LiveURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/drawings/live"
}

// Watch subscribes to the live feed at wsURL and refreshes the gallery on
// every new drawing until ctx is done. It returns nil when ctx ends.
func (g *Gallery) Watch(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial live feed: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	g.logger.Info("Watching live feed", "url", wsURL)
	for {
		var msg feed.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read live feed: %w", err)
		}
		if msg.Type != feed.EventDrawingCreated {
			continue
		}
		if msg.Drawing != nil {
			g.logger.Debug("Live drawing received", "drawing_id", msg.Drawing.ID)
		}
		if err := g.Refresh(ctx); err != nil && ctx.Err() == nil {
			g.logger.Warn("Live refresh failed", "error", err)
		}
	}
}
