package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

// WebSocket errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// WebSocketManager fans routing results out to connected operator dashboards.
type WebSocketManager struct {
	connections map[string]*WebSocketConnection
	mu          sync.RWMutex
	broadcast   chan FeedMessage
	done        chan struct{}
	closeOnce   sync.Once
}

// WebSocketConnection represents a single operator connection
type WebSocketConnection struct {
	Conn *websocket.Conn
	ID   string
	Send chan []byte
}

// FeedMessage is the envelope written to every operator connection.
type FeedMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// NewWebSocketManager creates the manager and starts its broadcast loop.
func NewWebSocketManager() *WebSocketManager {
	m := &WebSocketManager{
		connections: make(map[string]*WebSocketConnection),
		broadcast:   make(chan FeedMessage, 256),
		done:        make(chan struct{}),
	}
	go m.handleBroadcast()
	return m
}

// RegisterConnection registers a new WebSocket connection
func (m *WebSocketManager) RegisterConnection(conn *WebSocketConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID] = conn
	logger.Log.Info("Operator feed connected",
		zap.String("connection_id", conn.ID),
		zap.Int("total_connections", len(m.connections)))
}

// UnregisterConnection removes a connection and closes its send channel.
func (m *WebSocketManager) UnregisterConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, exists := m.connections[id]; exists {
		close(conn.Send)
		delete(m.connections, id)
		logger.Log.Info("Operator feed disconnected",
			zap.String("connection_id", id),
			zap.Int("remaining_connections", len(m.connections)))
	}
}

// Publish queues a routing result for every connected operator. It never
// blocks the router: results are dropped when the queue is full.
func (m *WebSocketManager) Publish(result models.RoutingResult) {
	msg := FeedMessage{Type: "routing_result", Data: result, Timestamp: time.Now().Unix()}
	select {
	case m.broadcast <- msg:
	case <-m.done:
	default:
		logger.Log.Warn("Operator feed queue full, dropping result", zap.String("outcome", string(result.Outcome)))
	}
}

// Close stops the broadcast loop.
func (m *WebSocketManager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *WebSocketManager) handleBroadcast() {
	for {
		select {
		case <-m.done:
			return
		case message := <-m.broadcast:
			jsonData, err := json.Marshal(message)
			if err != nil {
				logger.Log.Error("Failed to marshal feed message", zap.Error(err))
				continue
			}

			m.mu.RLock()
			for _, conn := range m.connections {
				select {
				case conn.Send <- jsonData:
				default:
					logger.Log.Warn("WebSocket connection buffer full", zap.String("connection_id", conn.ID))
				}
			}
			m.mu.RUnlock()
		}
	}
}

// SendToConnection sends a message to a specific connection
func (m *WebSocketManager) SendToConnection(id string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[id]
	if !exists {
		return ErrConnectionNotFound
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrConnectionBufferFull
	}
}

// ConnectionCount returns the number of connected operators.
func (m *WebSocketManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
