// Package stream pushes published predictions to dashboard clients over
// websockets.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans predictions out to every connected client. Slow clients whose
// buffer fills up are disconnected.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64

	latest   func() (models.CompletePrediction, bool)
	upgrader websocket.Upgrader
}

// NewHub takes an optional source for the current prediction, sent to each
// client right after it connects.
func NewHub(latest func() (models.CompletePrediction, bool)) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		latest:     latest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.setCount()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			logger.Log.WithField("clients", len(h.clients)).Info("Stream client connected")

			h.deliver(c, encode("connected", map[string]string{"status": "connected"}))
			if h.latest != nil {
				if pred, ok := h.latest(); ok {
					h.deliver(c, encode("prediction", pred))
				}
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
				logger.Log.WithField("clients", len(h.clients)).Info("Stream client disconnected")
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, message)
			}
		}
	}
}

func (h *Hub) deliver(c *client, message []byte) {
	if message == nil || !h.clients[c] {
		return
	}
	select {
	case c.send <- message:
	default:
		close(c.send)
		delete(h.clients, c)
		h.setCount()
	}
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.SetStreamClients(len(h.clients))
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastPrediction has the coordinator subscriber signature.
func (h *Hub) BroadcastPrediction(pred models.CompletePrediction) {
	data := encode("prediction", pred)
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Log.Warn("Stream broadcast channel full, dropping prediction")
	}
}

func encode(kind string, payload interface{}) []byte {
	data, err := json.Marshal(Message{Type: kind, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		logger.Log.WithError(err).WithField("type", kind).Error("Failed to encode stream message")
		return nil
	}
	return data
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).Debug("Stream client read error")
			}
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
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
