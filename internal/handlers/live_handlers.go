package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 7 * time.Second
	livePongWait   = 70 * time.Second
	livePingPeriod = 25 * time.Second
	liveReadLimit  = 1 << 16
)

type liveClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *liveClient) writeJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *liveClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(liveWriteWait))
}

func (c *liveClient) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// liveHub tracks open sockets per session so shutdown can close them.
type liveHub struct {
	mu    sync.Mutex
	rooms map[string]map[*liveClient]struct{}
}

func (h *liveHub) add(key string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[key]
	if room == nil {
		room = map[*liveClient]struct{}{}
		h.rooms[key] = room
	}
	room[c] = struct{}{}
}

func (h *liveHub) remove(key string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[key]
	if room == nil {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, key)
	}
}

func (h *liveHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// LiveHandler pushes workspace cache updates to terminals over a websocket.
type LiveHandler struct {
	manager  *services.WorkspaceManager
	upgrader websocket.Upgrader
	hub      *liveHub
}

// NewLiveHandler creates a LiveHandler. An empty origin list accepts any origin.
func NewLiveHandler(m *services.WorkspaceManager, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		manager: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		hub: &liveHub{rooms: map[string]map[*liveClient]struct{}{}},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Connections returns the number of open sockets.
func (h *LiveHandler) Connections() int { return h.hub.count() }

type liveMessage struct {
	Type   string                    `json:"type"`
	At     time.Time                 `json:"at"`
	Update *services.CacheUpdate     `json:"update,omitempty"`
	Tabs   any                       `json:"tabs,omitempty"`
	Cache  map[services.QueryKey]any `json:"cache,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

func snapshotMessage(ws *services.Workspace, typ string) liveMessage {
	cache := make(map[services.QueryKey]any)
	for _, key := range ws.Cache().Keys() {
		if r := ws.Cache().Get(key); r.Fetched {
			cache[key] = r.Value
		}
	}
	return liveMessage{Type: typ, At: time.Now().UTC(), Tabs: ws.Tabs(), Cache: cache}
}

// Stream upgrades the request and forwards every cache update of the caller's
// workspace. A client message {"type":"refresh"} triggers a full refetch.
func (h *LiveHandler) Stream(c *gin.Context) {
	ws, ok := currentWorkspace(c, h.manager)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.LogWarn(err, "Websocket upgrade failed")
		return
	}

	key := ws.Session().Key()
	client := &liveClient{conn: conn}
	h.hub.add(key, client)
	updates, stop := ws.Watch()
	defer func() {
		stop()
		h.hub.remove(key, client)
		_ = client.close()
	}()

	conn.SetReadLimit(liveReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	if err := client.writeJSON(snapshotMessage(ws, "hello")); err != nil {
		return
	}

	ctx := c.Request.Context()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(msg.Type)) {
			case "refresh", "sync":
				if err := ws.Refresh(ctx); err != nil {
					_ = client.writeJSON(liveMessage{Type: "error", At: time.Now().UTC(), Error: err.Error()})
				}
			case "snapshot":
				_ = client.writeJSON(snapshotMessage(ws, "snapshot"))
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				_ = client.writeJSON(liveMessage{Type: "closed", At: time.Now().UTC()})
				return
			}
			if err := client.writeJSON(liveMessage{Type: "update", At: update.At, Update: &update}); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

// CloseAll drops every open socket.
func (h *LiveHandler) CloseAll() {
	h.hub.mu.Lock()
	var clients []*liveClient
	for _, room := range h.hub.rooms {
		for c := range room {
			clients = append(clients, c)
		}
	}
	h.hub.mu.Unlock()
	for _, c := range clients {
		_ = c.close()
	}
}
