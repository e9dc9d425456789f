package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amina2304/MedTrack/internal/events"
	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialTestClient spins up a websocket endpoint that registers the incoming
// connection with the hub, then dials it. It returns the dialer-side conn
// for reading and the upgraded server-side conn that the hub registered.
func dialTestClient(t *testing.T, hub *Hub, userID string) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return len(hub.clientsFor(userID)) == 1
	}, time.Second, 5*time.Millisecond)
	return conn, <-serverConns
}

func TestHubDisplayWithoutClientIsSkipped(t *testing.T) {
	hub := NewHub()
	notif := &models.Notification{
		UserID: primitive.NewObjectID(),
		Type:   models.TypeDoseReminder,
	}
	require.NoError(t, hub.Display(context.Background(), notif))
}

func TestHubUnregisterRemovesConnection(t *testing.T) {
	hub := NewHub()
	userID := primitive.NewObjectID().Hex()
	_, serverConn := dialTestClient(t, hub, userID)

	hub.Unregister(userID, serverConn)
	require.Empty(t, hub.clientsFor(userID))
}

// Notification pushes and event forwarding target the same connection from
// different goroutines; every write must arrive intact.
func TestHubConcurrentPushesShareOneConnection(t *testing.T) {
	hub := NewHub()
	uid := primitive.NewObjectID()
	conn, _ := dialTestClient(t, hub, uid.Hex())

	bus := events.NewMemoryBus()
	go hub.Run(bus)

	const writers = 4
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				notif := &models.Notification{
					UserID: uid,
					Type:   models.TypeDoseReminder,
					Title:  "Time for your medication",
				}
				_ = hub.Display(context.Background(), notif)
				_ = bus.Publish(context.Background(), events.Event{
					Name:   events.DoseUpdated,
					UserID: uid.Hex(),
				})
			}
		}()
	}
	wg.Wait()

	// Displays are synchronous and must all arrive; bus events are
	// best-effort and only add contention here.
	deadline := time.Now().Add(2 * time.Second)
	displayed := 0
	for displayed < writers*perWriter {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Kind string `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Kind == "notification" {
			displayed++
		}
	}
	require.Equal(t, writers*perWriter, displayed)
}
