// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"discover/internal/domain/search"
)

// WebSocketConfig contains configuration for streaming connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame of a streamed search
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Stream message types
const (
	StreamPlaces    = "places"
	StreamInstagram = "instagram"
	StreamDone      = "done"
)

// StreamSearch runs the places and social searches concurrently over one
// socket. Places are sent first, then posts, then a done frame.
func (h *SearchHandler) StreamSearch(w http.ResponseWriter, r *http.Request) {
	// Validate before upgrading so bad requests get a normal 422
	q, category, err := h.parseSearchQuery(r)
	if err != nil {
		respondWithValidationError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	config := DefaultWebSocketConfig()

	// The request context ends with the handler; searches follow the socket instead
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go h.readPump(conn, config, cancel)

	places := make(chan search.PlacesResponse, 1)
	posts := make(chan search.PostsResponse, 1)
	go func() { places <- h.searcher.Places(ctx, q.Location, category) }()
	go func() { posts <- h.searcher.Posts(ctx, q.Location, category) }()

	var p search.PlacesResponse
	select {
	case p = <-places:
	case <-ctx.Done():
		return
	}
	if err := h.writeMessage(conn, config, StreamMessage{Type: StreamPlaces, Data: p}); err != nil {
		return
	}

	var ig search.PostsResponse
	select {
	case ig = <-posts:
	case <-ctx.Done():
		return
	}
	if err := h.writeMessage(conn, config, StreamMessage{Type: StreamInstagram, Data: ig.Posts}); err != nil {
		return
	}

	if err := h.writeMessage(conn, config, StreamMessage{Type: StreamDone}); err != nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains client frames so control messages are processed, and
// cancels the search when the client goes away
func (h *SearchHandler) readPump(conn *websocket.Conn, config WebSocketConfig, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(config.MaxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func (h *SearchHandler) writeMessage(conn *websocket.Conn, config WebSocketConfig, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("Failed to write WebSocket message", zap.String("type", msg.Type), zap.Error(err))
		return err
	}
	return nil
}
