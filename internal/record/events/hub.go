package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gogotex/records/internal/record"
	"github.com/gogotex/records/pkg/logger"
	"github.com/gogotex/records/pkg/metrics"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans committed record events out to websocket subscribers of the same
// owner. Publish never blocks: a subscriber whose buffer is full is dropped.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	owner string
	send  chan []byte
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

// Publish implements service.Notifier.
func (h *Hub) Publish(owner string, ev record.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("events: marshal %s event: %v", ev.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[owner] {
		select {
		case c.send <- msg:
		default:
			logger.Warnf("events: dropping slow subscriber for owner=%s", owner)
			h.removeLocked(c)
		}
	}
}

// Subscribers returns the number of open connections for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[owner])
}

// ServeWs upgrades the request and subscribes the connection to owner's events.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, owner string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("events: upgrade failed: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, owner: owner, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.rooms[owner] == nil {
		h.rooms[owner] = make(map[*client]struct{})
	}
	h.rooms[owner][c] = struct{}{}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	room, ok := h.rooms[c.owner]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.owner)
	}
	metrics.EventSubscribers.Dec()
	c.once.Do(func() { close(c.send) })
}

// readPump discards inbound messages; the feed is one-way. It exists to
// process control frames and notice when the peer goes away.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
