package gatewaytest

import (
	"sync"
	"time"

	"github.com/agentgw/gateway"
)

// Stream is an in-memory gateway.Stream that records every outbound
// frame and lets a test script simulate inbound traffic and remote
// closes, mirroring MockWebSocket.
type Stream struct {
	mu sync.Mutex

	textSent      []string
	binarySent    [][]byte
	closed        bool
	closeCode     gateway.CloseCode
	withholdClose bool
	textBacklog   []string

	onText   func(string)
	onBinary func([]byte)
	onClose  func()
}

// NewStream constructs an open Stream with no recorded traffic.
func NewStream() *Stream {
	return &Stream{}
}

// WithholdCloseAck marks the stream so that a subsequent Close records
// the close as requested (Closed reports true with the code passed to
// Close) but never invokes the close handler — simulating a peer that
// never sends back a close acknowledgement. There is no knob for this
// in the reference MockWebSocket; it exists here so a test can drive
// the Disconnect close-wait timeout path (§5) deterministically instead
// of leaving it permanently uncovered.
func (s *Stream) WithholdCloseAck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withholdClose = true
}

func (s *Stream) SendText(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textSent = append(s.textSent, message)
	return nil
}

func (s *Stream) SendBinary(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binarySent = append(s.binarySent, message)
	return nil
}

// Close marks the stream closed and fires the close handler, mirroring
// MockWebSocket::Close (which sets closed and invokes onClose
// synchronously rather than waiting on a read pump that doesn't exist
// here). If WithholdCloseAck was called first, the close is recorded
// but the handler is never invoked, as if the peer never acknowledged.
func (s *Stream) Close(code gateway.CloseCode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.closeCode = code
	withhold := s.withholdClose
	cb := s.onClose
	s.mu.Unlock()
	if withhold {
		return nil
	}
	if cb != nil {
		cb()
	}
	return nil
}

// RemoteClose simulates the peer closing the connection, as distinct
// from Close (which the controller under test calls): it fires the
// close handler without requiring the controller to have initiated
// anything, mirroring MockWebSocket::RemoteClose.
func (s *Stream) RemoteClose() {
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

// DeliverText simulates an inbound text frame from the peer. A frame
// delivered before OnText is registered is held and handed, in order,
// to the handler when OnText is called.
func (s *Stream) DeliverText(message string) {
	s.mu.Lock()
	h := s.onText
	if h == nil {
		s.textBacklog = append(s.textBacklog, message)
	}
	s.mu.Unlock()
	if h != nil {
		h(message)
	}
}

// DeliverBinary simulates an inbound binary frame from the peer.
func (s *Stream) DeliverBinary(message []byte) {
	s.mu.Lock()
	h := s.onBinary
	s.mu.Unlock()
	if h != nil {
		h(message)
	}
}

func (s *Stream) OnText(fn func(string)) {
	s.mu.Lock()
	s.onText = fn
	backlog := s.textBacklog
	s.textBacklog = nil
	s.mu.Unlock()
	for _, msg := range backlog {
		fn(msg)
	}
}

func (s *Stream) OnBinary(fn func([]byte)) { s.mu.Lock(); s.onBinary = fn; s.mu.Unlock() }
func (s *Stream) OnClose(fn func())        { s.mu.Lock(); s.onClose = fn; s.mu.Unlock() }

// TextSent returns a snapshot of every text frame sent so far, in
// order.
func (s *Stream) TextSent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.textSent))
	copy(out, s.textSent)
	return out
}

// Closed reports whether Close or RemoteClose has run, and with what
// code (zero if closed via RemoteClose).
func (s *Stream) Closed() (bool, gateway.CloseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.closeCode
}

// AwaitTexts blocks until at least n text frames have been sent, or a
// short bound elapses, mirroring MockWebSocket::AwaitTexts.
func (s *Stream) AwaitTexts(n int) bool {
	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		s.mu.Lock()
		have := len(s.textSent)
		s.mu.Unlock()
		if have >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
