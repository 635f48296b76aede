package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"entsoeflow/logger"
	"entsoeflow/models"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// Hub pushes refreshed day reports to websocket subscribers. New
// subscribers first receive the latest report of every zone.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	latest  map[string][]byte
	closed  bool
	log     *logger.Log
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
		latest:  make(map[string][]byte),
		log:     logger.GetLogger(),
	}
}

// Clients is the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishReport broadcasts r. Subscribers that cannot keep up are
// disconnected.
func (h *Hub) PublishReport(_ context.Context, r models.ZoneReport) error {
	msg, err := json.Marshal(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest[r.Zone] = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			c.close()
			h.log.WithComponent("ws_hub").Warn("slow subscriber disconnected")
		}
	}
	return nil
}

// Serve upgrades the request and streams reports until the peer leaves.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithComponent("ws_hub").WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	zones := make([]string, 0, len(h.latest))
	for zone := range h.latest {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	for _, zone := range zones {
		select {
		case client.send <- h.latest[zone]:
		default:
		}
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.log.WithComponent("ws_hub").WithFields(logger.Fields{"remote": c.ClientIP()}).Info("subscriber connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop drains control frames and returns when the peer disconnects.
func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			c.close()
		}
		h.mu.Unlock()
		h.log.WithComponent("ws_hub").Info("subscriber disconnected")
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and ignores later publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
