package gateway

import (
	"context"
)

const (
	discoveryURL = "https://discordapp.com/api/v6/gateway"
	streamSuffix = "/?v=6&encoding=json"
)

// Connect runs the connection procedure (§4.E) on its own worker and
// returns a channel that receives exactly one value: true iff the
// session reached Live, false on any failure or local cancellation. A
// concurrent call while one is already in flight (or while already
// connected) returns an already-resolved false channel rather than
// erroring.
func (s *Session) Connect(transport Transport, cfg Configuration) <-chan bool {
	result := make(chan bool, 1)

	s.mu.Lock()
	if s.phase != phaseIdle && s.phase != phaseClosed {
		already := errAlreadyConnected
		if s.phase == phaseConnecting || s.phase == phaseAwaitingHello {
			already = errAlreadyConnecting
		}
		s.mu.Unlock()
		s.emitDiag(5, already.Error())
		result <- false
		return result
	}
	s.phase = phaseConnecting
	s.disconnectRequested = false
	s.lastSequence = nil
	s.heartbeatInterval = 0
	s.nextHeartbeatAt = 0
	s.heartbeatAckPending = false
	s.helloSignal = newSignal()
	s.closeSignal = newSignal()
	gate := s.proceedWithConnect
	s.proceedWithConnect = nil
	s.mu.Unlock()

	s.tasks.Go(func() error {
		result <- s.runConnect(gate, transport, cfg)
		return nil
	})

	return result
}

// runConnect is the connection procedure's body (§4.E), executed on a
// taskgroup-managed worker.
func (s *Session) runConnect(gate <-chan struct{}, transport Transport, cfg Configuration) bool {
	// 1. Gate wait.
	if gate != nil {
		<-gate
	}
	if s.disconnectFlagSet() {
		s.fireClose()
		return false
	}

	ctx := context.Background()

	// 2. Open attempt against the cached endpoint, if any.
	var stream Stream
	if cached, ok := s.endpoint.Get(); ok {
		stream = s.awaitOpen(ctx, transport, cached+streamSuffix)
		if stream == nil {
			s.endpoint.Clear()
		}
	}

	// 3. Discovery fallback.
	if stream == nil && s.disconnectFlagSet() {
		s.fireClose()
		return false
	}
	if stream == nil {
		url, ok := s.discover(ctx, transport, cfg.UserAgent)
		if ok && !s.disconnectFlagSet() {
			s.endpoint.Set(url)
			stream = s.awaitOpen(ctx, transport, url+streamSuffix)
			if stream == nil {
				s.endpoint.Clear()
			}
		}
	}

	// 4. Failure funnel.
	if stream == nil {
		s.emitDiag(10, errStreamOpenFailed.Error())
		s.fireClose()
		return false
	}

	// 5. Install handlers, enter AwaitingHello.
	s.mu.Lock()
	s.stream = stream
	s.phase = phaseAwaitingHello
	s.awaitingHello = true
	helloSig := s.helloSignal
	s.mu.Unlock()

	stream.OnClose(s.fireClose)
	stream.OnText(s.onText)
	stream.OnBinary(func([]byte) {})

	// 6. Await Hello, with Disconnect able to unblock us early.
	s.mu.Lock()
	s.cancelInflight = helloSig.Fire
	s.mu.Unlock()

	<-helloSig.Done()

	s.mu.Lock()
	s.cancelInflight = nil
	disconnected := s.disconnectRequested
	closed := s.phase == phaseClosed
	s.mu.Unlock()

	// 7. Cancellation / closed check.
	if disconnected || closed {
		s.emitDiag(1, errLocalCancelled.Error())
		_ = stream.Close(CloseGraceful)
		return false
	}

	// 8. Identify.
	_ = stream.SendText(string(encodeIdentify(cfg)))

	// 9. Transition to Live.
	s.mu.Lock()
	if s.phase == phaseClosed {
		s.mu.Unlock()
		return false
	}
	s.phase = phaseLive
	s.mu.Unlock()

	s.emitDiag(1, "gateway session live")
	return true
}

func (s *Session) disconnectFlagSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectRequested
}

// awaitOpen performs one OpenStream call, publishing its cancel
// callable into cancel_inflight for the duration of the await per the
// suspension-point discipline of §5.
func (s *Session) awaitOpen(ctx context.Context, transport Transport, uri string) Stream {
	ch, cancel := transport.OpenStream(ctx, uri)

	s.mu.Lock()
	s.cancelInflight = cancel
	cancelNow := s.disconnectRequested
	s.mu.Unlock()
	if cancelNow {
		cancel()
	}

	stream := <-ch

	s.mu.Lock()
	s.cancelInflight = nil
	s.mu.Unlock()

	return stream
}

// discover issues the HTTP discovery request and extracts the stream
// base URL (§4.E step 3, §6).
func (s *Session) discover(ctx context.Context, transport Transport, userAgent string) (string, bool) {
	req := Request{
		Method:  "GET",
		URI:     discoveryURL,
		Headers: []Header{{Key: "User-Agent", Value: userAgent}},
	}
	ch, cancel := transport.Request(ctx, req)

	s.mu.Lock()
	s.cancelInflight = cancel
	cancelNow := s.disconnectRequested
	s.mu.Unlock()
	if cancelNow {
		cancel()
	}

	resp := <-ch

	s.mu.Lock()
	s.cancelInflight = nil
	s.mu.Unlock()

	if resp.Status != 200 {
		s.emitDiag(10, errDiscoveryFailed.Error())
		return "", false
	}
	url, ok := parseDiscoveryResponse(resp.Body)
	if !ok {
		s.emitDiag(10, errDiscoveryFailed.Error()+": response was not a valid url object")
		return "", false
	}
	return url, true
}
