package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"factory-ops/internal/domain/user"
	"factory-ops/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	DefaultSendBuffer = 256
)

// Client is one authenticated connection. Frames read from it are handled
// one at a time, in order, by readPump; writes go through the send queue
// drained by writePump.
type Client struct {
	ID       string
	userID   uuid.UUID
	username string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *ClientRateLimiter
	logger  *EventLogger

	// guarded by hub.mu
	groups map[string]struct{}
	rooms  int

	closeOnce   sync.Once
	connectedAt time.Time
}

func NewClient(hub *Hub, conn *websocket.Conn, u user.User, sendBuffer int, logger *EventLogger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Client{
		ID:          uuid.NewString(),
		userID:      u.ID,
		username:    u.Username,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		limiter:     NewClientRateLimiter(DefaultRateLimits),
		logger:      logger,
		groups:      make(map[string]struct{}),
		connectedAt: time.Now(),
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

func (c *Client) Username() string {
	return c.username
}

func (c *Client) JoinGroup(group string) bool {
	return c.hub.Join(c, group)
}

func (c *Client) LeaveGroup(group string) {
	c.hub.Leave(c, group)
}

// Emit encodes and queues a frame for this connection only.
func (c *Client) Emit(event string, data any) {
	frame, err := events.Encode(event, data)
	if err != nil {
		c.logger.Error("encode frame failed", c.userID, c.ID, err, zap.String("frame", event))
		return
	}
	c.hub.SendTo(c, frame)
}

func (c *Client) EmitError(event string, err error) {
	c.Emit(events.ServerMessageError, events.ErrorPayload{
		Error: ErrorMessage(err),
		Code:  ErrorCode(err),
		Event: event,
	})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context, dispatcher *Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket unexpected close", c.userID, c.ID, zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame events.Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			c.EmitError("", errMalformedFrame)
			continue
		}
		dispatcher.Dispatch(ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
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
