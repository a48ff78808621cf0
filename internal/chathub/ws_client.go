package chathub

import (
	"civicdesk/backend/internal/apperr"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	identity Identity
	conn     *websocket.Conn
	hub      *ManagerService
	send     chan Frame
	ctx      context.Context
	log      *zap.Logger

	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection. ctx bounds the storage calls
// made on behalf of the connection.
func NewWebSocketClient(ctx context.Context, hub *ManagerService, conn *websocket.Conn, id Identity) *WebSocketClient {
	return &WebSocketClient{
		identity: id,
		conn:     conn,
		hub:      hub,
		send:     make(chan Frame, sendBuffer),
		ctx:      ctx,
		log:      hub.log.With(zap.Uint("user_id", id.UserID), zap.String("role", string(id.Role))),
	}
}

// --- Реалізація методів інтерфейсу ---

func (c *WebSocketClient) Identity() Identity           { return c.identity }
func (c *WebSocketClient) GetSendChannel() chan<- Frame { return c.send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reject(apperr.Validation("invalid_frame", "malformed JSON"))
			continue
		}
		if err := c.hub.ValidateFrame(&frame); err != nil {
			c.reject(err)
			continue
		}
		c.handle(&frame)
	}
}

func (c *WebSocketClient) handle(frame *InboundFrame) {
	switch frame.Type {
	case FrameJoinChat:
		if err := c.hub.JoinWithHistory(c.ctx, c, frame.Room); err != nil {
			c.reject(err)
		}

	case FrameSendMessage:
		if err := c.hub.SendMessage(c.ctx, frame.Room, c.identity, frame.Message); err != nil {
			c.reject(err)
		}
	}
}

func (c *WebSocketClient) reject(err error) {
	c.hub.SendTo(c, Frame{Type: FrameError, Error: apperr.As(err).Code})
}

// writePump читає кадри з каналу send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
