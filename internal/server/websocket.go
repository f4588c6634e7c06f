package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/tagdoc/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages queued per client before it is dropped.
	sendBuffer = 64
)

// ReloadMessage tells a browser that a template changed.
type ReloadMessage struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Change    string    `json:"change,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans messages out to connected clients.
type Hub struct {
	logger  logging.Logger
	clients map[*Client]struct{}
	mutex   sync.RWMutex
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug(context.Background(), "Client connected", "clients", len(h.clients))
	return true
}

// unregister removes c and closes its queue. It is safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug(context.Background(), "Client disconnected", "clients", len(h.clients))
}

// Broadcast queues msg for every client. Clients whose queue is full are
// disconnected.
func (h *Hub) Broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal message")
		data = []byte(`{"type":"reload"}`)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Validate origin before accepting connection
	origin, ok := s.checkOrigin(r)
	if !ok {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{origin},
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade error")
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  s.hub,
	}
	if !s.hub.register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump(s.logger)
	client.readPump(s.logger)
}

// checkOrigin validates the request origin and returns its host.
func (s *PreviewServer) checkOrigin(r *http.Request) (string, bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Reject connections without origin header for security
		return "", false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return "", false
	}

	port := s.config.Server.Port
	allowed := []string{
		r.Host,
		fmt.Sprintf("%s:%d", s.config.Server.Host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	for _, o := range s.config.Server.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed = append(allowed, u.Host)
		}
	}

	for _, host := range allowed {
		if originURL.Host == host {
			return originURL.Host, true
		}
	}
	return "", false
}

// readPump drains the connection until the peer goes away. Browsers send
// nothing but control frames, so any read only keeps the connection alive.
func (c *Client) readPump(logger logging.Logger) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), pongWait)
		_, _, err := c.conn.Read(ctx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logger.Debug(context.Background(), "WebSocket closed", "error", err.Error())
			}
			return
		}
	}
}

// writePump sends queued messages and periodic pings.
func (c *Client) writePump(logger logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.Debug(context.Background(), "WebSocket write error", "error", err.Error())
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
