package gateway

// cancelHeartbeatTokenLocked cancels any pending scheduled tick. Must
// be called with s.mu held. It is idempotent (§3 I2, §6 Scheduler
// contract).
func (s *Session) cancelHeartbeatTokenLocked() {
	if !s.heartbeatTokenSet {
		return
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(s.heartbeatToken)
	}
	s.heartbeatTokenSet = false
}

// scheduleNextHeartbeatLocked schedules a tick for s.nextHeartbeatAt
// without otherwise touching timing state. Used by SetScheduler to
// carry an already-computed deadline onto a new scheduler.
func (s *Session) scheduleNextHeartbeatLocked() {
	s.cancelHeartbeatTokenLocked()
	if s.scheduler == nil {
		return
	}
	s.heartbeatToken = s.scheduler.Schedule(s.nextHeartbeatAt, s.onHeartbeatDue)
	s.heartbeatTokenSet = true
}

// sendHeartbeat implements the SendHeartbeat procedure of §4.F: cancel
// any pending tick, bail out if there's no live stream, mark an ack as
// pending, send the heartbeat frame, and — if the interval is known —
// arrange the next tick.
func (s *Session) sendHeartbeat() {
	s.mu.Lock()
	s.cancelHeartbeatTokenLocked()
	stream := s.stream
	if stream == nil || s.phase == phaseClosed {
		s.mu.Unlock()
		return
	}
	s.heartbeatAckPending = true
	sequence := s.lastSequence
	s.mu.Unlock()

	payload := encodeHeartbeat(sequence)
	_ = stream.SendText(string(payload))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseClosed || s.heartbeatInterval <= 0 {
		return
	}
	now := s.scheduler.Now()
	s.nextHeartbeatAt += s.heartbeatInterval
	if s.nextHeartbeatAt <= now {
		s.nextHeartbeatAt = now + s.heartbeatInterval
	}
	s.scheduleNextHeartbeatLocked()
}

// onHeartbeatDue runs when a scheduled tick fires (§4.F OnHeartbeatDue).
// It is registered with the Scheduler and must tolerate firing after
// the Session has already moved on (e.g. a stale tick from a prior
// stream); it returns without action when the stream is nil or the
// phase is Closed.
func (s *Session) onHeartbeatDue() {
	s.mu.Lock()
	s.heartbeatTokenSet = false
	ackPending := s.heartbeatAckPending
	stream := s.stream
	closed := s.phase == phaseClosed
	s.mu.Unlock()

	if closed || stream == nil {
		return
	}

	if ackPending {
		s.emitDiag(1, errHeartbeatAckTimeout.Error()+", aborting connection")
		_ = stream.Close(CloseMissedAckAbort)
		return
	}
	s.sendHeartbeat()
}
