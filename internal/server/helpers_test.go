package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testOrigin = "http://localhost:3000"

// startTestServer runs a relay behind httptest and tears both down when the
// test ends.
func startTestServer(t *testing.T, cfg *Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = NewConfig()
	}

	srv := New(cfg, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx, nil); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return srv, ts
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

// dial opens a WebSocket to url with the test origin and closes it when the
// test ends.
func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func readHistory(t *testing.T, conn *websocket.Conn) HistoryFrame {
	t.Helper()
	var frame HistoryFrame
	readJSON(t, conn, &frame)
	require.Equal(t, TypeHistory, frame.Type)
	return frame
}

func readMessage(t *testing.T, conn *websocket.Conn) MessageFrame {
	t.Helper()
	var frame MessageFrame
	readJSON(t, conn, &frame)
	require.Equal(t, TypeMessage, frame.Type)
	return frame
}

// expectNoMessage asserts nothing arrives within d. A timed-out read leaves
// a gorilla connection unusable, so call it last on a connection.
func expectNoMessage(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected message: %s", data)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func joinFrame(room, address string) map[string]string {
	return map[string]string{"type": TypeJoin, "auctionId": room, "address": address}
}

func messageFrame(room, address, content string) MessageFrame {
	return MessageFrame{
		Type:      TypeMessage,
		AuctionID: room,
		Address:   address,
		Content:   content,
		Timestamp: "2024-01-01T00:00:00Z",
	}
}
