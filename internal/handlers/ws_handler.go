package handlers

import (
	"net/http"

	"github.com/Amina2304/MedTrack/internal/notifier"
	jwtutil "github.com/Amina2304/MedTrack/pkg/jwt"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades notification stream connections and registers them with
// the hub. Auth rides on a ?token= query parameter because browsers cannot
// set headers on websocket requests.
type WSHandler struct {
	Hub       *notifier.Hub
	JWTSecret string
}

func NewWSHandler(hub *notifier.Hub, jwtSecret string) *WSHandler {
	return &WSHandler{Hub: hub, JWTSecret: jwtSecret}
}

// NotificationSocketHandler keeps the connection open until the client goes
// away. Pushes come from the hub; reads only serve to detect disconnects.
func (h *WSHandler) NotificationSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.Hub.Register(userID, conn)
	defer func() {
		h.Hub.Unregister(userID, conn)
		conn.Close()
		log.WithField("user_id", userID).Info("Notification client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
