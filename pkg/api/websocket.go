package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	subscriberBuf  = 256
)

// WebSocketManager streams feed updates to websocket clients
type WebSocketManager struct {
	// upgrader for upgrading HTTP connections to WebSocket
	upgrader websocket.Upgrader

	feed   *Feed
	logger logging.Logger

	mu          sync.RWMutex
	connections map[*websocket.Conn]*ConnectionMetadata
}

// ConnectionMetadata stores metadata about a WebSocket connection
type ConnectionMetadata struct {
	RemoteAddr  string
	ConnectedAt time.Time
	LastPingAt  time.Time
}

// ClientMessage is a message sent by a websocket client
type ClientMessage struct {
	Type string `json:"type"` // "ping", "snapshot"
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(feed *Feed, logger logging.Logger) *WebSocketManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		feed:        feed,
		logger:      logger,
		connections: make(map[*websocket.Conn]*ConnectionMetadata),
	}
}

// ConnectionCount returns the number of open connections.
func (wsm *WebSocketManager) ConnectionCount() int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	return len(wsm.connections)
}

// HandleWebSocket upgrades the connection, sends a snapshot and then streams
// updates until the client goes away.
func (wsm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsm.logger.Warn("WebSocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	now := time.Now()
	wsm.mu.Lock()
	wsm.connections[conn] = &ConnectionMetadata{
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: now,
		LastPingAt:  now,
	}
	wsm.mu.Unlock()
	defer func() {
		wsm.mu.Lock()
		delete(wsm.connections, conn)
		wsm.mu.Unlock()
		wsm.logger.Debug("WebSocket connection closed", logging.F("remote", r.RemoteAddr))
	}()
	wsm.logger.Debug("WebSocket connection established", logging.F("remote", r.RemoteAddr))

	// Subscribe before the snapshot is taken so nothing falls between them.
	updates, unsubscribe := wsm.feed.Subscribe(subscriberBuf)
	defer unsubscribe()

	replies := make(chan Update, 8)
	done := make(chan struct{})
	defer close(done)

	go wsm.writeLoop(conn, updates, replies, done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		wsm.touch(conn)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				wsm.logger.Warn("WebSocket read failed", logging.Err(err))
			}
			return
		}
		wsm.handleMessage(conn, msg, replies)
	}
}

// handleMessage processes incoming WebSocket messages
func (wsm *WebSocketManager) handleMessage(conn *websocket.Conn, msg ClientMessage, replies chan<- Update) {
	switch msg.Type {
	case "ping":
		wsm.touch(conn)
		wsm.reply(replies, Update{Type: UpdatePong, Timestamp: time.Now()})
	case "snapshot":
		for _, update := range wsm.feed.Snapshot() {
			wsm.reply(replies, update)
		}
	default:
		wsm.reply(replies, Update{
			Type:      UpdateError,
			Timestamp: time.Now(),
			Message:   "unknown message type: " + msg.Type,
		})
	}
}

func (wsm *WebSocketManager) reply(replies chan<- Update, update Update) {
	select {
	case replies <- update:
	default:
		wsm.logger.Debug("Dropping websocket reply", logging.F("type", update.Type))
	}
}

func (wsm *WebSocketManager) touch(conn *websocket.Conn) {
	wsm.mu.Lock()
	if meta, ok := wsm.connections[conn]; ok {
		meta.LastPingAt = time.Now()
	}
	wsm.mu.Unlock()
}

// writeLoop is the only goroutine writing to conn.
func (wsm *WebSocketManager) writeLoop(conn *websocket.Conn, updates <-chan Update, replies <-chan Update, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for _, update := range wsm.feed.Snapshot() {
		if !wsm.sendMessage(conn, update) {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case update := <-updates:
			if !wsm.sendMessage(conn, update) {
				return
			}
		case update := <-replies:
			if !wsm.sendMessage(conn, update) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// sendMessage writes one update; on failure it closes conn so the read loop
// ends too.
func (wsm *WebSocketManager) sendMessage(conn *websocket.Conn, update Update) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(update); err != nil {
		wsm.logger.Debug("WebSocket write failed", logging.Err(err))
		conn.Close()
		return false
	}
	return true
}
