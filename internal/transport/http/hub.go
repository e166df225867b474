package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 64
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every new history point to connected websocket clients.
// Slow clients lose messages rather than holding up the broadcast.
type Hub struct {
	in       <-chan *domain.TelemetrySample
	snapshot func() []domain.HistoryPoint
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	logger zerolog.Logger
}

// NewHub reads samples from in. snapshot, if set, is replayed to each new
// client before live points.
func NewHub(in <-chan *domain.TelemetrySample, snapshot func() []domain.HistoryPoint, logger zerolog.Logger) *Hub {
	return &Hub{
		in:       in,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	for {
		select {
		case msg, ok := <-h.in:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(msg.Point)
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to encode point")
				continue
			}
			h.broadcast(payload)

		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			metrics.ChannelDrops.WithLabelValues("ws_client").Inc()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}

	if h.snapshot != nil {
		for _, p := range h.snapshot() {
			payload, err := json.Marshal(p)
			if err != nil {
				continue
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.StreamClients.Dec()
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.StreamClients.Dec()
	}
}

// readPump only watches for the peer going away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
