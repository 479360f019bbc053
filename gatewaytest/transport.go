// Package gatewaytest provides in-memory Transport, Stream, and
// Scheduler fakes for exercising the gateway package deterministically,
// modeled on the original Discord Gateway reference's MockConnections,
// MockWebSocket, and MockClock test fixtures.
package gatewaytest

import (
	"context"
	"sync"
	"time"

	"github.com/agentgw/gateway"
)

const pollInterval = time.Millisecond

// Transport is an in-memory gateway.Transport that records every
// request-response and open-stream call in arrival order and lets a
// test script respond to them out of band, mirroring
// MockConnections::RequireResourceRequests / RespondToResourceRequest.
type Transport struct {
	mu sync.Mutex

	requests []*pendingRequest
	opens    []*pendingOpen
	tornDown bool
}

type pendingRequest struct {
	req       gateway.Request
	resultCh  chan gateway.Response
	responded bool
}

type pendingOpen struct {
	uri       string
	resultCh  chan gateway.Stream
	responded bool
}

// NewTransport constructs an empty Transport.
func NewTransport() *Transport {
	return &Transport{}
}

// Request implements gateway.Transport.
func (t *Transport) Request(ctx context.Context, req gateway.Request) (<-chan gateway.Response, gateway.CancelFunc) {
	ch := make(chan gateway.Response, 1)

	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		ch <- gateway.Response{Status: gateway.CancelledStatus}
		return ch, func() {}
	}
	p := &pendingRequest{req: req, resultCh: ch}
	t.requests = append(t.requests, p)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if p.responded {
			return
		}
		p.responded = true
		ch <- gateway.Response{Status: gateway.CancelledStatus}
	}
	return ch, cancel
}

// OpenStream implements gateway.Transport.
func (t *Transport) OpenStream(ctx context.Context, uri string) (<-chan gateway.Stream, gateway.CancelFunc) {
	ch := make(chan gateway.Stream, 1)

	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		ch <- nil
		return ch, func() {}
	}
	o := &pendingOpen{uri: uri, resultCh: ch}
	t.opens = append(t.opens, o)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if o.responded {
			return
		}
		o.responded = true
		ch <- nil
	}
	return ch, cancel
}

// RequireResourceRequests blocks until at least n Request calls have
// been recorded, or a short bound elapses, mirroring
// MockConnections::RequireResourceRequests.
func (t *Transport) RequireResourceRequests(n int) bool {
	return pollUntil(func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		return len(t.requests) >= n
	})
}

// RequireStreamRequests blocks until at least n OpenStream calls have
// been recorded, mirroring MockConnections::RequireWebSocketRequests.
func (t *Transport) RequireStreamRequests(n int) bool {
	return pollUntil(func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		return len(t.opens) >= n
	})
}

// RequestAt returns the index-th recorded Request, for assertions
// against method/URI/headers.
func (t *Transport) RequestAt(index int) gateway.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[index].req
}

// StreamRequestAt returns the URI of the index-th recorded OpenStream
// call.
func (t *Transport) StreamRequestAt(index int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens[index].uri
}

// RequestCount returns how many Request calls have been recorded so
// far.
func (t *Transport) RequestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// StreamRequestCount returns how many OpenStream calls have been
// recorded so far.
func (t *Transport) StreamRequestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opens)
}

// RespondToResourceRequest resolves the index-th Request with resp, if
// it has not already been responded to or cancelled.
func (t *Transport) RespondToResourceRequest(index int, resp gateway.Response) {
	t.mu.Lock()
	p := t.requests[index]
	already := p.responded
	p.responded = true
	t.mu.Unlock()
	if !already {
		p.resultCh <- resp
	}
}

// RespondToStreamRequest resolves the index-th OpenStream call with
// stream (which may be nil to simulate an open failure).
func (t *Transport) RespondToStreamRequest(index int, stream gateway.Stream) {
	t.mu.Lock()
	o := t.opens[index]
	already := o.responded
	o.responded = true
	t.mu.Unlock()
	if !already {
		o.resultCh <- stream
	}
}

// TearDown resolves every outstanding request and open call to its
// cancellation sentinel, so a test that forgets to respond cannot hang
// a goroutine indefinitely, mirroring MockConnections::TearDown
// (testable property 10).
func (t *Transport) TearDown() {
	t.mu.Lock()
	t.tornDown = true
	var toResolveReq []*pendingRequest
	for _, p := range t.requests {
		if !p.responded {
			p.responded = true
			toResolveReq = append(toResolveReq, p)
		}
	}
	var toResolveOpen []*pendingOpen
	for _, o := range t.opens {
		if !o.responded {
			o.responded = true
			toResolveOpen = append(toResolveOpen, o)
		}
	}
	t.mu.Unlock()

	for _, p := range toResolveReq {
		p.resultCh <- gateway.Response{Status: gateway.CancelledStatus}
	}
	for _, o := range toResolveOpen {
		o.resultCh <- nil
	}
}

func pollUntil(cond func() bool) bool {
	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
