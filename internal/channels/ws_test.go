package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// dialTestClient connects one websocket client and registers its server
// side with the hub. The returned client is never read from unless the
// test does so itself.
func dialTestClient(t *testing.T, hub *WSHub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, hub.Configured, time.Second, 10*time.Millisecond)
	return client
}

func TestHubDeliverToReadingClient(t *testing.T) {
	hub := NewWSHub(logging.NewNop())
	client := dialTestClient(t, hub)

	n := models.Notification{AlertKey: "activity_ozon", Type: models.TypeActivityChange, Subject: "s", Body: "b"}
	done := make(chan error, 1)
	go func() {
		_, _, err := client.ReadMessage()
		done <- err
	}()

	require.NoError(t, hub.Deliver(context.Background(), n))
	require.NoError(t, <-done)
}

func TestHubDeliverEvictsStalledClient(t *testing.T) {
	hub := NewWSHub(logging.NewNop())
	dialTestClient(t, hub) // client never reads

	// Flood a non-reading client with large payloads under a short deadline.
	// Once the socket buffers fill, the write must time out within the
	// deadline instead of blocking the dispatcher, and the stalled client
	// must be evicted.
	big := models.Notification{
		AlertKey: "perf_full_etl_t1",
		Type:     models.TypePerformance,
		Subject:  "s",
		Body:     strings.Repeat("x", 256<<10),
	}

	var lastErr error
	for i := 0; i < 50 && lastErr == nil; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		start := time.Now()
		lastErr = hub.Deliver(ctx, big)
		cancel()
		require.Less(t, time.Since(start), 3*time.Second, "Deliver exceeded the per-channel bound")
	}

	assert.ErrorIs(t, lastErr, ErrNoSubscribers)
	assert.False(t, hub.Configured())
}

func TestHubDeliverNoClients(t *testing.T) {
	hub := NewWSHub(logging.NewNop())
	assert.False(t, hub.Configured())

	err := hub.Deliver(context.Background(), models.Notification{Subject: "s"})
	assert.ErrorIs(t, err, ErrNoSubscribers)
}
