package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/watcher"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: LocalOrigin,
}

// LocalOrigin accepts requests without an Origin header and pages served
// from this machine.
func LocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSHandler pushes vault change notifications to connected GUIs
type WSHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	trash   string
}

// NewWSHandler creates a new WebSocket handler. Events under trashRoot are
// flagged as trash changes.
func NewWSHandler(trashRoot string) *WSHandler {
	return &WSHandler{
		clients: make(map[*websocket.Conn]bool),
		trash:   trashRoot,
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.WithContext(c.Request.Context()).Debug("websocket upgrade failed", logging.Err(err))
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Keep connection alive and handle incoming messages
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// OnVaultChange is called when the watcher sees a change in either root
func (h *WSHandler) OnVaultChange(event watcher.Event) {
	msg := WSMessage{
		Type: "vaultChange",
		Payload: map[string]interface{}{
			"event":   event.Type.String(),
			"path":    event.Path,
			"inTrash": h.trash != "" && event.Root == h.trash,
		},
	}

	h.broadcast(msg)
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *WSHandler) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(client)
		}
	}
}
