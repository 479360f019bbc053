package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/agentgw/gateway"
)

// echoServer upgrades every request to a WebSocket and hands the
// connection to handle, mirroring the teacher's dialTestWS helper.
func echoServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// TestStreamDeliversTextSentBeforeHandlerRegistration exercises the
// dial-to-handler-registration race directly: the server writes a text
// frame the instant the connection opens, before any caller of
// OpenStream has had a chance to call OnText.
func TestStreamDeliversTextSentBeforeHandlerRegistration(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	})

	h := New()
	ch, _ := h.OpenStream(context.Background(), wsURL(srv.URL))

	var stream gateway.Stream
	select {
	case stream = <-ch:
	case <-time.After(time.Second):
		t.Fatal("open did not resolve")
	}
	require.NotNil(t, stream)

	// Give readPump a head start so the frame lands in the backlog
	// before OnText is registered.
	time.Sleep(20 * time.Millisecond)

	received := make(chan string, 1)
	stream.OnText(func(msg string) { received <- msg })

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("backlogged text frame was never delivered")
	}
}

// TestStreamReplaysCloseThatFiredBeforeHandlerRegistration exercises the
// companion race for OnClose: the server closes the connection right
// after the handshake, before the caller has registered a close
// handler. OnClose must replay the close rather than discard it.
func TestStreamReplaysCloseThatFiredBeforeHandlerRegistration(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})

	h := New()
	ch, _ := h.OpenStream(context.Background(), wsURL(srv.URL))

	var stream gateway.Stream
	select {
	case stream = <-ch:
	case <-time.After(time.Second):
		t.Fatal("open did not resolve")
	}
	require.NotNil(t, stream)

	// Give readPump time to observe the reset and fire the close before
	// a handler is registered, mirroring a peer that resets the
	// connection immediately after the handshake.
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	stream.OnClose(func() { close(closed) })

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close that fired before registration was never replayed")
	}
}
