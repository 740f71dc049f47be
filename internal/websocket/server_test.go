package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Wait until the server's run loop has registered the client
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 1
	}, time.Second, 5*time.Millisecond)

	return conn
}

func TestBroadcastReachesClient(t *testing.T) {
	t.Parallel()

	s := NewServer(logger.NewNop())
	go s.Run()

	conn := dialTestServer(t, s)

	s.Broadcast(&Message{
		Type: MessageTypeNotificationAdded,
		Data: map[string]any{"id": "n-1"},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received Message
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, MessageTypeNotificationAdded, received.Type)
	require.Equal(t, "n-1", received.Data["id"])
}

func TestDisconnectedClientIsUnregistered(t *testing.T) {
	t.Parallel()

	s := NewServer(logger.NewNop())
	go s.Run()

	conn := dialTestServer(t, s)
	conn.Close()

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 0
	}, time.Second, 5*time.Millisecond)

	// Broadcasting with no clients must not block
	s.Broadcast(&Message{Type: MessageTypeUploadProgress, Data: map[string]any{"percentage": 50}})
}
