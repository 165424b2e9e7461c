package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kirarisk/JupLimits/internal/metrics"
	"github.com/kirarisk/JupLimits/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 32
)

// Hub pushes bundle status events to websocket subscribers. It implements notify.Notifier.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	origins  []string

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan notify.Event
	bundle string // empty subscribes to every bundle
}

// NewHub accepts same-host browsers plus the listed origins. "*" admits any origin.
func NewHub(log zerolog.Logger, origins ...string) *Hub {
	h := &Hub{
		log:     log,
		origins: origins,
		clients: make(map[*subscriber]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits non-browser clients, which send no Origin header.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Notify queues e for every matching subscriber. A subscriber whose buffer is full misses the event.
func (h *Hub) Notify(e notify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.bundle != "" && c.bundle != e.BundleID {
			continue
		}
		select {
		case c.send <- e:
		default:
			h.log.Warn().Str("bundle_id", e.BundleID).Msg("websocket subscriber too slow, dropping event")
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request. ?bundle=<id> narrows the stream to one bundle.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &subscriber{conn: conn, send: make(chan notify.Event, sendBuffer), bundle: r.URL.Query().Get("bundle")}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.WSClients.Dec()
	}
}

func (h *Hub) register(c *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WSClients.Inc()
	return true
}

func (h *Hub) unregister(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WSClients.Dec()
	}
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *subscriber) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
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

func (h *Hub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				h.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
