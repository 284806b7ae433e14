package stream

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
)

func startServer(t *testing.T, h *Hub, entityID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Serve(context.Background(), conn, h.Subscribe(entityID), ClientConfig{PingInterval: time.Second})
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestServeGreetsAndStreams(t *testing.T) {
	h := NewHub(8)
	conn := startServer(t, h, "e1")

	hello := readJSON(t, conn)
	assert.Equal(t, "connected", hello["type"])
	assert.Equal(t, "e1", hello["entity_id"])

	require.Eventually(t, func() bool { return h.Count("e1") == 1 }, time.Second, 5*time.Millisecond)
	h.Publish(entry("e1", "l9"))

	msg := readJSON(t, conn)
	assert.Equal(t, "new_log", msg["type"])
	assert.Equal(t, "l9", msg["log"].(map[string]any)["id"])
}

func TestServeAnswersTextPing(t *testing.T) {
	h := NewHub(8)
	conn := startServer(t, h, "e1")
	readJSON(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "pong", readJSON(t, conn)["type"])
}

func TestServeDetachesOnDisconnect(t *testing.T) {
	h := NewHub(8)
	conn := startServer(t, h, "e1")
	readJSON(t, conn)
	require.Eventually(t, func() bool { return h.Count("e1") == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Count("e1") == 0 }, 2*time.Second, 10*time.Millisecond)

	h.Publish(entry("e1", "after"))
}
