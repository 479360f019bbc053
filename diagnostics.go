package gateway

// RegisterDiagnosticMessageCallback installs the diagnostic sink and
// drains any backlog accumulated before a sink existed, in FIFO order
// (§3 I5, §4.C). The lock is held only long enough to swap in the sink
// and take the backlog; each delivery happens afterward, outside the
// lock, so a diagnostic callback can safely call back into the Session.
func (s *Session) RegisterDiagnosticMessageCallback(cb func(level uint, message string)) {
	s.mu.Lock()
	s.onDiag = cb
	backlog := s.backlog
	s.backlog = nil
	s.mu.Unlock()

	if cb == nil {
		return
	}
	for _, event := range backlog {
		cb(event.level, event.message)
	}
}

// emitDiag records a diagnostic event. If a sink is already installed
// the event is delivered directly, bypassing the backlog; otherwise it
// is appended to the backlog for a future registration to drain. This
// is the only way diagnostics are produced anywhere in the package —
// every other component calls this rather than touching onDiag or
// backlog itself.
func (s *Session) emitDiag(level uint, message string) {
	s.mu.Lock()
	sink := s.onDiag
	if sink == nil {
		s.backlog = append(s.backlog, diagEvent{level: level, message: message})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	sink(level, message)
}
