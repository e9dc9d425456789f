// Package notifier implements the display capability as a websocket push
// hub. Delivery is fire-and-forget: the scheduler assumes no guarantee, and
// a user with no connected client simply gets nothing displayed (the record
// is still SENT and visible in the notification list).
package notifier

import (
	"context"
	"sync"

	"github.com/Amina2304/MedTrack/internal/events"
	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type pushMessage struct {
	Kind         string               `json:"kind"` // "notification" or "event"
	Notification *models.Notification `json:"notification,omitempty"`
	Event        *events.Event        `json:"event,omitempty"`
}

// client wraps a connection with its write lock. The websocket protocol
// allows only one concurrent writer per connection, and the dispatcher and
// the event pump push from different goroutines.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks connected websocket clients per user and pushes notifications
// and dose events to them.
type Hub struct {
	mu      sync.Mutex
	clients map[string][]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string][]*client)}
}

// Register adds a client connection for a user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = append(h.clients[userID], &client{conn: conn})
	log.WithField("user_id", userID).Info("Notification client connected")
}

// Unregister removes a client connection.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.clients[userID]
	for i, c := range conns {
		if c.conn == conn {
			h.clients[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) clientsFor(userID string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*client(nil), h.clients[userID]...)
}

// Display pushes a notification to the user's connected clients. Having no
// connected client is not an error: display is skipped, which is distinct
// from policy suppression (the record still transitions to SENT).
func (h *Hub) Display(_ context.Context, notif *models.Notification) error {
	conns := h.clientsFor(notif.UserID.Hex())
	if len(conns) == 0 {
		log.WithFields(log.Fields{
			"user_id": notif.UserID.Hex(),
			"type":    notif.Type,
		}).Debug("No connected client, display skipped")
		return nil
	}

	msg := pushMessage{Kind: "notification", Notification: notif}
	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			log.WithError(err).WithField("user_id", notif.UserID.Hex()).
				Warn("Failed to push notification to client")
		}
	}
	return nil
}

// Run forwards bus events to the owning user's clients so open tabs refresh
// after another surface resolves a dose. Blocks until the subscription
// closes; run it in a goroutine.
func (h *Hub) Run(bus events.Bus) {
	ch, cancel := bus.Subscribe()
	defer cancel()

	for event := range ch {
		msg := pushMessage{Kind: "event", Event: &event}
		for _, c := range h.clientsFor(event.UserID) {
			if err := c.writeJSON(msg); err != nil {
				log.WithError(err).Warn("Failed to push event to client")
			}
		}
	}
}
