package channels

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

const (
	// maxWSConnections caps concurrently subscribed dashboard clients.
	maxWSConnections = 50

	// defaultWriteTimeout bounds broadcast writes when the caller's context
	// carries no deadline.
	defaultWriteTimeout = 10 * time.Second
)

// WSHub broadcasts alerts to connected dashboard websocket clients. It
// participates in dispatch as a regular channel: configured whenever at
// least one client is connected.
type WSHub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewWSHub(logger *logging.Logger) *WSHub {
	return &WSHub{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

func (h *WSHub) Name() string { return "websocket" }

func (h *WSHub) Configured() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections) > 0
}

// Add registers a dashboard connection.
func (h *WSHub) Add(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxWSConnections {
		h.logger.Warnf("Max websocket connections reached, rejecting client")
		conn.Close()
		return
	}
	h.connections[conn] = true
	h.logger.Infof("Added websocket connection (total: %d)", len(h.connections))
}

// Remove drops a dashboard connection.
func (h *WSHub) Remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		h.logger.Infof("Removed websocket connection (remaining: %d)", len(h.connections))
	}
}

// Deliver sends the notification to every connected client. Writes carry
// the context deadline, so a client that stopped reading times out and is
// evicted instead of wedging the dispatcher. Delivery succeeds if at least
// one client received the message.
func (h *WSHub) Deliver(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	delivered := 0
	for conn := range h.connections {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			h.logger.Errorf("Failed to set websocket write deadline: %v", err)
			conn.Close()
			delete(h.connections, conn)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to send websocket message: %v", err)
			conn.Close()
			delete(h.connections, conn)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return ErrNoSubscribers
	}
	return nil
}
