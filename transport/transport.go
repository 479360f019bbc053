// Package transport provides a concrete Transport/Stream implementation
// for the gateway package, built on net/http for the discovery request
// and gorilla/websocket for the bidirectional stream.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentgw/gateway"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// HTTPWebSocket implements gateway.Transport over a standard HTTP client
// and gorilla/websocket. A zero-value HTTPWebSocket is not ready for
// use; construct with New.
type HTTPWebSocket struct {
	client *http.Client
	dialer *websocket.Dialer
	tasks  *taskgroup.Group
}

// Option configures an HTTPWebSocket at construction time.
type Option func(*HTTPWebSocket)

// WithDialTimeout bounds how long a stream open attempt may take before
// it is treated as a failed open.
func WithDialTimeout(d time.Duration) Option {
	return func(h *HTTPWebSocket) { h.dialer.HandshakeTimeout = d }
}

// WithHTTPClient overrides the client used for discovery requests.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPWebSocket) { h.client = c }
}

// New constructs an HTTPWebSocket adapter.
func New(opts ...Option) *HTTPWebSocket {
	h := &HTTPWebSocket{
		client: &http.Client{Timeout: defaultDialTimeout},
		dialer: &websocket.Dialer{HandshakeTimeout: defaultDialTimeout},
		tasks:  taskgroup.New(nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close waits for every goroutine this adapter has spawned — pending
// requests and stream read pumps alike — to exit.
func (h *HTTPWebSocket) Close() error {
	h.tasks.Wait()
	return nil
}

// Request implements gateway.Transport.
func (h *HTTPWebSocket) Request(ctx context.Context, req gateway.Request) (<-chan gateway.Response, gateway.CancelFunc) {
	ch := make(chan gateway.Response, 1)
	ctx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URI, bytes.NewReader(req.Body))
	if err != nil {
		ch <- gateway.Response{Status: gateway.CancelledStatus}
		return ch, gateway.CancelFunc(cancel)
	}
	for _, hdr := range req.Headers {
		httpReq.Header.Add(hdr.Key, hdr.Value)
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	h.tasks.Go(func() error {
		resp, err := h.client.Do(httpReq)
		if err != nil {
			status := 0
			if ctx.Err() != nil {
				status = gateway.CancelledStatus
			}
			ch <- gateway.Response{Status: status}
			return nil
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var headers []gateway.Header
		for key, values := range resp.Header {
			for _, v := range values {
				headers = append(headers, gateway.Header{Key: key, Value: v})
			}
		}
		ch <- gateway.Response{Status: resp.StatusCode, Headers: headers, Body: body}
		return nil
	})

	return ch, gateway.CancelFunc(cancel)
}

// OpenStream implements gateway.Transport.
func (h *HTTPWebSocket) OpenStream(ctx context.Context, uri string) (<-chan gateway.Stream, gateway.CancelFunc) {
	ch := make(chan gateway.Stream, 1)
	ctx, cancel := context.WithCancel(ctx)

	h.tasks.Go(func() error {
		conn, _, err := h.dialer.DialContext(ctx, uri, nil)
		if err != nil {
			ch <- nil
			return nil
		}
		ch <- newStream(conn, h.tasks)
		return nil
	})

	return ch, gateway.CancelFunc(cancel)
}

// stream wraps a *websocket.Conn as a gateway.Stream. It never exposes
// the underlying connection to callers (testable property 9).
//
// readPump starts as soon as the dial succeeds, which can be before the
// caller has registered handlers on the Stream it's about to receive
// from OpenStream's channel. Frames that arrive in that window are
// backlogged per kind and flushed, in order, the moment a handler is
// registered — the same backlog-then-sink idiom the session uses for
// diagnostics. A close that fires in that same window (e.g. the peer
// resets the connection right after the handshake) is remembered too:
// OnClose replays it immediately to a handler registered after the
// fact instead of discarding it.
type stream struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu            sync.Mutex
	onText        func(string)
	onBinary      func([]byte)
	onClose       func()
	closed        bool
	textBacklog   []string
	binaryBacklog [][]byte
}

func newStream(conn *websocket.Conn, tasks *taskgroup.Group) *stream {
	s := &stream{conn: conn}
	tasks.Go(s.readPump)
	return s
}

// readPump is the stream's single reader goroutine. gorilla/websocket
// connections support at most one concurrent reader, so all inbound
// frames are funneled through here for the life of the connection.
func (s *stream) readPump() error {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fireClose()
			return nil
		}
		switch msgType {
		case websocket.TextMessage:
			s.mu.Lock()
			h := s.onText
			if h == nil {
				s.textBacklog = append(s.textBacklog, string(data))
				s.mu.Unlock()
				continue
			}
			s.mu.Unlock()
			h(string(data))
		case websocket.BinaryMessage:
			s.mu.Lock()
			h := s.onBinary
			if h == nil {
				s.binaryBacklog = append(s.binaryBacklog, data)
				s.mu.Unlock()
				continue
			}
			s.mu.Unlock()
			h(data)
		}
	}
}

func (s *stream) fireClose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cb := s.onClose
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *stream) SendText(message string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

func (s *stream) SendBinary(message []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, message)
}

// Close sends a close control frame carrying code, then closes the
// underlying connection. The read pump observes the resulting read
// error and funnels the close notification through fireClose, so Close
// itself never invokes onClose directly — one close per connection,
// however it was initiated.
func (s *stream) Close(code gateway.CloseCode) error {
	msg := websocket.FormatCloseMessage(int(code), "")
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultWriteTimeout))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *stream) OnText(fn func(string)) {
	s.mu.Lock()
	s.onText = fn
	backlog := s.textBacklog
	s.textBacklog = nil
	s.mu.Unlock()

	for _, msg := range backlog {
		fn(msg)
	}
}

func (s *stream) OnBinary(fn func([]byte)) {
	s.mu.Lock()
	s.onBinary = fn
	backlog := s.binaryBacklog
	s.binaryBacklog = nil
	s.mu.Unlock()

	for _, msg := range backlog {
		fn(msg)
	}
}

func (s *stream) OnClose(fn func()) {
	s.mu.Lock()
	s.onClose = fn
	alreadyClosed := s.closed
	s.mu.Unlock()

	if alreadyClosed && fn != nil {
		fn()
	}
}
