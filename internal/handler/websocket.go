package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/CageChen/filesource/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // sources are served to any origin, see corsMiddleware
	},
}

// WSMessage is a message pushed to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// subscribeRequest narrows the sources a client hears about. An empty
// Sources list subscribes to all of them again.
type subscribeRequest struct {
	Type    string   `json:"type"`
	Sources []string `json:"sources"`
}

// wsClient is one connection and the sources it listens to; nil means all.
type wsClient struct {
	sources map[string]bool
}

func (c *wsClient) wants(source string) bool {
	return c.sources == nil || c.sources[source]
}

// WSHandler pushes source change events and write batches to WebSocket
// clients.
type WSHandler struct {
	clients map[*websocket.Conn]*wsClient
	mu      sync.RWMutex
	// connections allow one concurrent writer
	writeMu sync.Mutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler() *WSHandler {
	return &WSHandler{
		clients: make(map[*websocket.Conn]*wsClient),
	}
}

// HandleWS upgrades the connection and reads subscribe requests until the
// client goes away.
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Type != "subscribe" {
			log.WithField("remote", conn.RemoteAddr().String()).Debug("ignoring websocket message")
			continue
		}
		h.subscribe(conn, req.Sources)
	}
}

// OnFileChange is called when a file of a watched source changes
func (h *WSHandler) OnFileChange(event watcher.Event) {
	h.broadcast(event.Source, WSMessage{
		Type: "fileChange",
		Payload: map[string]string{
			"event":  event.Type.String(),
			"source": event.Source,
			"path":   event.Path,
		},
	})
}

// OnPut is called after a write batch so clients can refetch the source
func (h *WSHandler) OnPut(sourceName string, written []string) {
	if len(written) == 0 {
		return
	}
	h.broadcast(sourceName, WSMessage{
		Type: "put",
		Payload: gin.H{
			"source": sourceName,
			"paths":  written,
		},
	})
}

// Clients returns the number of connected clients
func (h *WSHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &wsClient{}
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *WSHandler) subscribe(conn *websocket.Conn, sources []string) {
	var set map[string]bool
	if len(sources) > 0 {
		set = make(map[string]bool, len(sources))
		for _, s := range sources {
			set[s] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[conn]; ok {
		c.sources = set
	}
}

// broadcast sends msg to every client subscribed to source.
func (h *WSHandler) broadcast(source string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Warn("failed to encode websocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn, c := range h.clients {
		if c.wants(source) {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(conn)
		}
	}
}
