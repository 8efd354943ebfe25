package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/services"
)

const (
	feedPingInterval = 54 * time.Second
	feedWriteWait    = 10 * time.Second
	feedReadWait     = 60 * time.Second
	feedReadLimit    = 4 * 1024
)

// feedControl is a control message from an operator client.
type feedControl struct {
	Type string `json:"type"`
}

// FeedHandler streams routing results to operator dashboards.
type FeedHandler struct {
	manager *services.WebSocketManager
}

func NewFeedHandler(manager *services.WebSocketManager) *FeedHandler {
	return &FeedHandler{manager: manager}
}

// WebSocketUpgrade upgrades HTTP connection to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle serves one operator connection until it closes.
func (h *FeedHandler) Handle(c *websocket.Conn) {
	conn := &services.WebSocketConnection{
		Conn: c,
		ID:   uuid.New().String(),
		Send: make(chan []byte, 256),
	}

	h.manager.RegisterConnection(conn)
	defer h.manager.UnregisterConnection(conn.ID)

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":          "connected",
		"message":       "Routing feed connected",
		"connection_id": conn.ID,
	})
	_ = h.manager.SendToConnection(conn.ID, welcome)

	go h.writeLoop(conn)
	h.readLoop(conn)
}

func (h *FeedHandler) writeLoop(conn *services.WebSocketConnection) {
	ticker := time.NewTicker(feedPingInterval)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Log.Error("Failed to write feed message", zap.String("connection_id", conn.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop keeps the connection alive. Operators only ever send pings.
func (h *FeedHandler) readLoop(conn *services.WebSocketConnection) {
	conn.Conn.SetReadLimit(feedReadLimit)
	conn.Conn.SetReadDeadline(time.Now().Add(feedReadWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(feedReadWait))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("Feed read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(feedReadWait))

		var msg feedControl
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Log.Debug("Ignoring malformed feed message", zap.String("connection_id", conn.ID))
			continue
		}

		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			if err := h.manager.SendToConnection(conn.ID, pong); err != nil {
				logger.Log.Warn("Failed to queue pong", zap.Error(err))
			}
		default:
			logger.Log.Warn("Unknown feed message type", zap.String("type", msg.Type))
		}
	}
}
