package gateway

import "encoding/json"

// onText is wired as the Stream's text handler for the lifetime of a
// connection (§4.H). It decodes the opcode envelope, tracks the last
// sequence number, and dispatches to the matching handler. Anything
// that doesn't parse as a JSON object, or carries an opcode this
// controller doesn't recognize, is diagnosed and discarded rather than
// treated as fatal.
func (s *Session) onText(raw string) {
	var env inboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.emitDiag(10, "received non-object payload, discarding")
		return
	}

	s.emitDiag(0, raw)

	if env.Sequence != nil {
		s.mu.Lock()
		s.lastSequence = env.Sequence
		s.mu.Unlock()
	}

	switch env.Op {
	case opHello:
		s.onHello(env.Data)
	case opHeartbeat:
		s.onHeartbeat()
	case opHeartbeatAck:
		s.onHeartbeatAck()
	default:
		s.emitDiag(5, "received unknown opcode, discarding")
	}
}

// onHello handles op 10 (§4.H, §3 I6): it only acts the first time it
// fires for a given connection. It records the heartbeat interval,
// sends the initial heartbeat, and signals the connection procedure
// that it may proceed to identify.
func (s *Session) onHello(data json.RawMessage) {
	s.mu.Lock()
	if !s.awaitingHello {
		s.mu.Unlock()
		return
	}
	s.awaitingHello = false

	var hello helloData
	_ = json.Unmarshal(data, &hello)
	s.heartbeatInterval = float64(hello.HeartbeatIntervalMS) / 1000.0
	helloSig := s.helloSignal
	s.mu.Unlock()

	s.emitDiag(1, "received hello, starting heartbeat")
	s.sendHeartbeat()
	if helloSig != nil {
		helloSig.Fire()
	}
}

// onHeartbeat handles op 1 arriving from the remote side: a request
// that this side send its own heartbeat immediately, out of cadence.
func (s *Session) onHeartbeat() {
	s.emitDiag(0, "received heartbeat request")
	s.sendHeartbeat()
}

// onHeartbeatAck handles op 11: it clears the pending-ack flag so the
// next scheduled tick (§4.F) does not treat the connection as stalled.
func (s *Session) onHeartbeatAck() {
	s.emitDiag(0, "received heartbeat ack")
	s.mu.Lock()
	s.heartbeatAckPending = false
	s.mu.Unlock()
}
