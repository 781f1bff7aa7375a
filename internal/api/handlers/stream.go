package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	sendBuffer = 8
)

// UpdateMessage is pushed to stream clients whenever the series is saved
type UpdateMessage struct {
	Type   string         `json:"type"`
	Points int            `json:"points"`
	Latest *PointResponse `json:"latest,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub pushes INCC updates to WebSocket clients
// ⭐ SSOT: INCC 실시간 알림은 이 허브에서만
type StreamHub struct {
	upgrader websocket.Upgrader
	current  func() (incc.Series, error)
	logger   *logger.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewStreamHub creates a hub. current supplies the series sent on connect.
func NewStreamHub(current func() (incc.Series, error), log *logger.Logger) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		current: current,
		logger:  log.Component("incc_stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

func newUpdateMessage(series incc.Series) UpdateMessage {
	msg := UpdateMessage{Type: "incc_update", Points: series.Len()}
	if latest, ok := series.Latest(); ok {
		lp := newPointResponse(latest)
		msg.Latest = &lp
	}
	return msg
}

// Publish sends series to every client. Clients that cannot keep up are
// dropped. It is meant to be registered with Store.Subscribe.
func (h *StreamHub) Publish(series incc.Series) {
	payload, err := json.Marshal(newUpdateMessage(series))
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode INCC update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *StreamHub) removeLocked(c *streamClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Serve upgrades the connection and streams updates
// GET /ws/incc
func (h *StreamHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}

	// Current state first, so clients do not wait for the next refresh
	if h.current != nil {
		if series, err := h.current(); err == nil {
			if payload, err := json.Marshal(newUpdateMessage(series)); err == nil {
				c.send <- payload
			}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("clients", h.Clients()).Debug("Stream client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and detects disconnects
func (h *StreamHub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Debug("Stream client disconnected")
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued updates and periodic pings
func (h *StreamHub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
