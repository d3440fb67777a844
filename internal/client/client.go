package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/hub"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for control replies (heartbeat, snapshot, error)
	controlBufferSize = 16
)

// Hub defines the part of the broadcast hub a client talks to
type Hub interface {
	Unsubscribe(s *hub.Subscriber)
}

// SnapshotFunc returns a copy of the current match, or nil when there is none
type SnapshotFunc func() *models.Match

// Client represents a WebSocket viewer. Event frames arrive on the hub
// subscriber's channel; control replies go through a separate queue so they
// never compete with the hub's eviction policy.
type Client struct {
	sub      *hub.Subscriber
	conn     *websocket.Conn
	hub      Hub
	snapshot SnapshotFunc
	control  chan models.ServerMessage

	framesSent       int64
	messagesReceived int64
	lastMessageAt    time.Time
	mu               sync.Mutex

	log *logrus.Entry
}

// NewClient creates a new client for an already registered subscriber
func NewClient(sub *hub.Subscriber, conn *websocket.Conn, h Hub, snapshot SnapshotFunc) *Client {
	return &Client{
		sub:      sub,
		conn:     conn,
		hub:      h,
		snapshot: snapshot,
		control:  make(chan models.ServerMessage, controlBufferSize),
		log:      logging.NewLogger("client").WithField("subscriber_id", sub.ID),
	}
}

// ID returns the subscriber id
func (c *Client) ID() string {
	return c.sub.ID
}

// ReadPump reads control messages from the peer until the connection fails.
// It owns the unsubscribe on exit.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg models.ClientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.log.WithError(err).Warn("unexpected close")
				}
				return
			}

			c.updateReceived()
			c.handleClientMessage(msg)
		}
	}
}

// WritePump writes event frames and control replies to the peer and keeps
// the connection alive with pings
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame, ok := <-c.sub.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub removed the subscriber
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Warn("write failed")
				return
			}

			c.updateSent()

		case msg := <-c.control:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Warn("control write failed")
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

// GetStats returns connection statistics
func (c *Client) GetStats() models.ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	bufferSize := c.sub.BufferSize()
	bufferUtilization := float64(len(c.sub.Send)) / float64(bufferSize) * 100.0

	return models.ConnectionStats{
		SubscriberID:      c.sub.ID,
		ConnectedAt:       c.sub.ConnectedAt,
		FramesSent:        c.framesSent,
		MessagesReceived:  c.messagesReceived,
		LastMessageAt:     c.lastMessageAt,
		BufferSize:        bufferSize,
		BufferUtilization: bufferUtilization,
	}
}

// handleClientMessage processes messages from the client
func (c *Client) handleClientMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeHeartbeat:
		c.sendHeartbeat()
	case models.MessageTypeSnapshot:
		c.sendSnapshot()
	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// sendHeartbeat replies with connection stats
func (c *Client) sendHeartbeat() {
	c.trySendControl(models.ServerMessage{
		Type:      models.MessageTypeHeartbeat,
		Payload:   c.GetStats(),
		Timestamp: time.Now(),
	})
}

// sendSnapshot replies with the current match so a reconnecting viewer can
// catch up without replay
func (c *Client) sendSnapshot() {
	var match *models.Match
	if c.snapshot != nil {
		match = c.snapshot()
	}
	c.trySendControl(models.ServerMessage{
		Type:      models.MessageTypeSnapshot,
		Payload:   match,
		Timestamp: time.Now(),
	})
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.trySendControl(models.ServerMessage{
		Type: models.MessageTypeError,
		Payload: models.ErrorMessage{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now(),
	})
}

// trySendControl queues a control reply, dropping it if the peer is not reading
func (c *Client) trySendControl(msg models.ServerMessage) bool {
	select {
	case c.control <- msg:
		return true
	default:
		c.log.WithField("type", msg.Type).Debug("control queue full, reply dropped")
		return false
	}
}

// updateSent increments the sent frame counter
func (c *Client) updateSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framesSent++
	c.lastMessageAt = time.Now()
}

// updateReceived increments the received message counter
func (c *Client) updateReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesReceived++
	c.lastMessageAt = time.Now()
}
