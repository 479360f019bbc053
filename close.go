package gateway

// fireClose is the single entry point for entering the Closed phase
// (§4.G). It is wired as the Stream's close handler during the
// connection procedure, so it runs whether the close was initiated by
// the remote peer, by our own Disconnect, or by the keep-alive engine
// aborting on a missed ack. It is idempotent: only the first call after
// a (re)connect has any effect (§3 I4).
func (s *Session) fireClose() {
	s.mu.Lock()
	if s.phase == phaseClosed {
		s.mu.Unlock()
		return
	}
	s.phase = phaseClosed
	s.stream = nil
	s.awaitingHello = false
	s.cancelHeartbeatTokenLocked()
	cb := s.onClose
	closeSig := s.closeSignal
	helloSig := s.helloSignal
	s.mu.Unlock()

	// At least one diagnostic for the close is emitted before the close
	// callback fires (§5 ordering guarantee).
	s.emitDiag(1, "gateway connection closed")

	// Unblock a connection procedure that might still be waiting on
	// hello; it will observe phaseClosed/disconnectRequested and fail.
	if helloSig != nil {
		helloSig.Fire()
	}
	if closeSig != nil {
		closeSig.Fire()
	}
	if cb != nil {
		cb()
	}
}
