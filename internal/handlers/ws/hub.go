package ws

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	gzipThreshold = 512
	sendBuffer    = 64
	writeWait     = 10 * time.Second
)

var (
	// ErrSlowConsumer is returned when a client's outbound queue is full.
	ErrSlowConsumer = errors.New("websocket client is not keeping up")
	errClientClosed = errors.New("websocket client closed")
)

// Envelope is the server push wire format.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client is one live connection. A user holds at most one; a newer
// connection replaces the older.
type Client struct {
	conn         Conn
	UserID       uint
	SupportsGzip bool

	send      chan outbound
	done      chan struct{}
	lastPong  time.Time
	closeOnce sync.Once
}

type outbound struct {
	kind int
	data []byte
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub manages all active WebSocket connections
type Hub struct {
	clients      map[uint]*Client
	clientsMux   sync.RWMutex
	presence     *cache.UserCache
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
	pingInterval time.Duration
	pongTimeout  time.Duration
	now          func() time.Time
}

func NewHub(presence *cache.UserCache, m *metrics.Metrics, log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:      make(map[uint]*Client),
		presence:     presence,
		metrics:      m,
		log:          log,
		pingInterval: 30 * time.Second,
		pongTimeout:  90 * time.Second,
		now:          time.Now,
	}
}

// Register adds a client connection with health monitoring
func (h *Hub) Register(userID uint, conn Conn, supportsGzip bool) *Client {
	client := &Client{
		conn:         conn,
		UserID:       userID,
		SupportsGzip: supportsGzip,
		send:         make(chan outbound, sendBuffer),
		done:         make(chan struct{}),
		lastPong:     h.now(),
	}

	conn.SetPongHandler(func(string) error {
		h.clientsMux.Lock()
		client.lastPong = h.now()
		h.clientsMux.Unlock()
		if err := h.presence.SetUserOnline(userID); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Debug("presence refresh failed")
		}
		return conn.SetReadDeadline(h.now().Add(h.pongTimeout))
	})
	_ = conn.SetReadDeadline(h.now().Add(h.pongTimeout))

	h.clientsMux.Lock()
	previous := h.clients[userID]
	h.clients[userID] = client
	count := len(h.clients)
	h.clientsMux.Unlock()

	if previous != nil {
		previous.close()
	}
	go h.writeLoop(client)

	if err := h.presence.SetUserOnline(userID); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("failed to mark user online")
	}
	h.metrics.SetConnections(count)
	h.log.WithFields(logrus.Fields{"user_id": userID, "total": count, "gzip": supportsGzip}).Info("websocket connected")
	return client
}

// Unregister removes client if it is still the user's current connection.
func (h *Hub) Unregister(client *Client) {
	h.clientsMux.Lock()
	current, ok := h.clients[client.UserID]
	removed := ok && current == client
	if removed {
		delete(h.clients, client.UserID)
	}
	count := len(h.clients)
	h.clientsMux.Unlock()

	client.close()
	if !removed {
		return
	}
	if err := h.presence.SetUserOffline(client.UserID); err != nil {
		h.log.WithError(err).WithField("user_id", client.UserID).Warn("failed to mark user offline")
	}
	h.metrics.SetConnections(count)
	h.log.WithFields(logrus.Fields{"user_id": client.UserID, "total": count}).Info("websocket disconnected")
}

// IsOnline checks if a user is connected
func (h *Hub) IsOnline(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// PushToUser delivers a typed event to the user's live connection, if any.
// Offline users catch up through the REST pull endpoints.
func (h *Hub) PushToUser(userID uint, event string, payload interface{}) {
	h.clientsMux.RLock()
	client, ok := h.clients[userID]
	h.clientsMux.RUnlock()
	if !ok {
		return
	}
	if err := h.Send(client, Envelope{Type: event, Payload: payload}); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "event": event}).Warn("push failed, dropping connection")
		h.Unregister(client)
	}
}

// Send queues v as JSON, gzip-compressed into a binary frame when the
// client opted in and the payload is large enough to benefit. It never
// blocks on the socket; a full queue returns ErrSlowConsumer.
func (h *Hub) Send(client *Client, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	frameType := websocket.TextMessage
	if client.SupportsGzip && len(data) > gzipThreshold {
		if compressed, err := compressData(data); err == nil && len(compressed) < len(data) {
			data = compressed
			frameType = websocket.BinaryMessage
		}
	}

	select {
	case <-client.done:
		return errClientClosed
	default:
	}
	select {
	case client.send <- outbound{kind: frameType, data: data}:
		return nil
	case <-client.done:
		return errClientClosed
	default:
		return ErrSlowConsumer
	}
}

// writeLoop is the only goroutine writing data frames to client.
func (h *Hub) writeLoop(client *Client) {
	for {
		select {
		case <-client.done:
			return
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(msg.kind, msg.data); err != nil {
				h.log.WithError(err).WithField("user_id", client.UserID).Info("write failed, dropping connection")
				h.Unregister(client)
				return
			}
		}
	}
}

// Run pings clients and removes those whose pong is overdue until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.checkConnections()
		}
	}
}

func (h *Hub) checkConnections() {
	now := h.now()

	h.clientsMux.RLock()
	var alive, dead []*Client
	for _, client := range h.clients {
		if now.Sub(client.lastPong) > h.pongTimeout {
			dead = append(dead, client)
		} else {
			alive = append(alive, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range dead {
		h.log.WithField("user_id", client.UserID).Info("removing dead connection (no pong received)")
		h.Unregister(client)
	}
	for _, client := range alive {
		// WriteControl is safe alongside writeLoop and bounded by its deadline.
		if err := client.conn.WriteControl(websocket.PingMessage, nil, now.Add(writeWait)); err != nil {
			h.log.WithError(err).WithField("user_id", client.UserID).Info("ping failed")
			h.Unregister(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.clientsMux.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMux.RUnlock()

	for _, client := range clients {
		h.Unregister(client)
	}
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressMessage inflates a gzip binary frame from a client.
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(io.LimitReader(reader, 1<<20))
}
