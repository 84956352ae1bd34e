// Package websocket streams live logs and execution log entries to dashboard clients
package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"commerce-agent/internal/core/domain"
)

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Stream names a kind of hub traffic a client can subscribe to
type Stream string

const (
	StreamLogs       Stream = "logs"       // process log lines
	StreamExecutions Stream = "executions" // execution log entries
)

type hubMessage struct {
	stream  Stream
	ownerID string
	data    []byte
}

// LogHub fans out log lines and execution entries to connected clients.
// It implements io.Writer for the slog handler and ports.LogSink for the execution logger.
// Sends never block: when a buffer is full the message is dropped.
type LogHub struct {
	clients    map[*Client]struct{}
	broadcast  chan hubMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// Client is one dashboard connection and its subscription
type Client struct {
	hub     *LogHub
	conn    *websocket.Conn
	send    chan []byte
	streams map[Stream]bool
	ownerID string // empty receives every owner's executions
}

func (c *Client) wants(m hubMessage) bool {
	if !c.streams[m.stream] {
		return false
	}
	if m.stream == StreamExecutions && c.ownerID != "" {
		return m.ownerID == c.ownerID
	}
	return true
}

// NewLogHub creates a hub; call Run to start it
func NewLogHub() *LogHub {
	return &LogHub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan hubMessage, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Route is guarded by the mesh secret
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run is the hub's event loop; it returns when ctx is cancelled
func (h *LogHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[LogHub] Client connected", "total", total, "owner_id", client.ownerID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[LogHub] Client disconnected", "total", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					// slow client, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Write implements io.Writer so the process log stream can be teed into the hub
func (h *LogHub) Write(p []byte) (int, error) {
	msg := make([]byte, len(p))
	copy(msg, p)
	h.enqueue(hubMessage{stream: StreamLogs, data: bytes.TrimRight(msg, "\n\r")})

	// the original bytes always count as written, even when dropped
	return len(p), nil
}

type executionEvent struct {
	Type  string                    `json:"type"`
	Entry *domain.ExecutionLogEntry `json:"entry"`
}

// PublishExecutionLog broadcasts one execution log entry to subscribed clients
func (h *LogHub) PublishExecutionLog(_ context.Context, entry *domain.ExecutionLogEntry) error {
	data, err := json.Marshal(executionEvent{Type: "execution_log", Entry: entry})
	if err != nil {
		return err
	}
	h.enqueue(hubMessage{stream: StreamExecutions, ownerID: entry.OwnerID, data: data})
	return nil
}

func (h *LogHub) enqueue(m hubMessage) {
	select {
	case h.broadcast <- m:
	default:
		// drop: logging must never block the pipeline
	}
}

// ServeWS upgrades the request and attaches a client.
// GET /ws/logs?stream=logs,executions&owner_id=
func (h *LogHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	streams := parseStreams(r.URL.Query().Get("stream"))
	if len(streams) == 0 {
		http.Error(w, "unknown stream", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[LogHub] WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, clientBufferSize),
		streams: streams,
		ownerID: r.URL.Query().Get("owner_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the current number of connected clients
func (h *LogHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// parseStreams reads a comma-separated stream list. Empty means all streams.
// Unknown names yield an empty set.
func parseStreams(raw string) map[Stream]bool {
	if strings.TrimSpace(raw) == "" {
		return map[Stream]bool{StreamLogs: true, StreamExecutions: true}
	}
	out := make(map[Stream]bool)
	for _, part := range strings.Split(raw, ",") {
		switch s := Stream(strings.TrimSpace(part)); s {
		case StreamLogs, StreamExecutions:
			out[s] = true
		default:
			return nil
		}
	}
	return out
}

// readPump drains the connection and keeps the read deadline fresh on pongs
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("[LogHub] Read error", "error", err)
			}
			return
		}
	}
}

// writePump sends queued messages one per frame and pings periodically
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
