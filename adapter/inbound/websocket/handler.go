package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
)

// streamingViewer is implemented by viewers that publish appended text
type streamingViewer interface {
	Attach(listener func(text string)) (string, func())
}

// Handler streams the output and lifecycle events of a watched file to
// websocket clients
type Handler struct {
	watchService inbound.WatchService
	logger       outbound.Logger
	upgrader     websocket.Upgrader
	connections  map[string]*websocketConnection
	mu           sync.RWMutex
	rootCtx      context.Context
}

// websocketConnection is an active client session
type websocketConnection struct {
	id      string
	conn    *websocket.Conn
	path    string
	send    chan any
	cancels []func()
	setupMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// ServerMessage is the envelope of every message sent to a client
type ServerMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	Path      string               `json:"path,omitempty"`
	Text      string               `json:"text,omitempty"`
	Event     model.WatchEventKind `json:"event,omitempty"`
	EventID   string               `json:"eventId,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

func NewHandler(watchService inbound.WatchService, logger outbound.Logger, rootCtx context.Context) *Handler {
	return &Handler{
		watchService: watchService,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		connections: make(map[string]*websocketConnection),
		rootCtx:     rootCtx,
	}
}

// HandleConnection watches the requested path (quietly) and streams it
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	events, err := h.watchService.Watch(h.rootCtx, path, inbound.WatchOptions{Quiet: true})
	if err != nil {
		h.logger.Warn("Websocket watch failed", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Error upgrading to WebSocket", "error", err)
		return
	}

	wsConn := &websocketConnection{
		id:   uuid.NewString(),
		conn: conn,
		path: events.Path(),
		send: make(chan any, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[wsConn.id] = wsConn
	h.mu.Unlock()

	go h.writePump(wsConn)

	// listeners wait for setupMu so nothing is queued before the snapshot
	wsConn.setupMu.Lock()
	wsConn.enqueue(ServerMessage{
		Type:      "connected",
		SessionID: wsConn.id,
		Path:      wsConn.path,
		Timestamp: time.Now(),
	})

	snapshot := ""
	if v, ok := h.watchService.Viewer(wsConn.path); ok {
		if sv, ok := v.(streamingViewer); ok {
			var cancel func()
			snapshot, cancel = sv.Attach(func(text string) {
				wsConn.setupMu.Lock()
				ok := wsConn.enqueue(ServerMessage{Type: "output", Path: wsConn.path, Text: text, Timestamp: time.Now()})
				wsConn.setupMu.Unlock()
				if !ok && !wsConn.isClosed() {
					h.logger.Warn("Websocket client too slow, closing", "session", wsConn.id)
					h.closeConnection(wsConn)
				}
			})
			wsConn.cancels = append(wsConn.cancels, cancel)
		}
	}

	wsConn.cancels = append(wsConn.cancels, events.On(func(ev model.WatchEvent) {
		wsConn.setupMu.Lock()
		defer wsConn.setupMu.Unlock()
		wsConn.enqueue(ServerMessage{
			Type:      "event",
			Path:      ev.Path,
			Event:     ev.Kind,
			EventID:   ev.ID,
			Timestamp: ev.Timestamp,
		})
	}))

	if snapshot != "" {
		wsConn.enqueue(ServerMessage{Type: "output", Path: wsConn.path, Text: snapshot, Timestamp: time.Now()})
	}
	wsConn.setupMu.Unlock()

	h.logger.Info("Websocket client connected", "session", wsConn.id, "path", wsConn.path)

	go h.handleWebSocketSession(wsConn)
}

// enqueue never blocks; false means the client's buffer is full
func (c *websocketConnection) enqueue(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *websocketConnection) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump is the only writer of the connection
func (h *Handler) writePump(wsConn *websocketConnection) {
	for {
		select {
		case <-wsConn.done:
			return
		case msg := <-wsConn.send:
			wsConn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Websocket write failed", "session", wsConn.id, "error", err)
				h.closeConnection(wsConn)
				return
			}
		}
	}
}

// handleWebSocketSession reads client messages until the connection closes
func (h *Handler) handleWebSocketSession(wsConn *websocketConnection) {
	defer h.closeConnection(wsConn)

	for {
		messageType, data, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error", "session", wsConn.id, "error", err)
			}
			return
		}

		h.handleClientMessage(wsConn, messageType, data)
	}
}

// handleClientMessage answers pings; other messages are ignored
func (h *Handler) handleClientMessage(wsConn *websocketConnection, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var message map[string]any
	if err := json.Unmarshal(data, &message); err != nil {
		h.logger.Debug("Error parsing client message", "session", wsConn.id, "error", err)
		return
	}

	if msgType, _ := message["type"].(string); msgType == "ping" {
		wsConn.enqueue(ServerMessage{Type: "pong", Timestamp: time.Now()})
	}
}

// closeConnection detaches the session's listeners and closes the socket.
// The watch itself stays active.
func (h *Handler) closeConnection(wsConn *websocketConnection) {
	wsConn.once.Do(func() {
		close(wsConn.done)

		wsConn.setupMu.Lock()
		cancels := wsConn.cancels
		wsConn.cancels = nil
		wsConn.setupMu.Unlock()

		for _, cancel := range cancels {
			cancel()
		}
		wsConn.conn.Close()

		h.mu.Lock()
		delete(h.connections, wsConn.id)
		h.mu.Unlock()

		h.logger.Info("Websocket client disconnected", "session", wsConn.id)
	})
}

// ConnectionCount returns the number of open sessions
func (h *Handler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Handler) Cleanup() {
	h.logger.Info("Cleaning up WebSocket handler resources")

	h.mu.RLock()
	conns := make([]*websocketConnection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down"),
			time.Now().Add(time.Second))
		h.closeConnection(conn)
	}
}
