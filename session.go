package gateway

import (
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
)

// phase is the Session's authoritative lifecycle state (§3).
type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseAwaitingHello
	phaseLive
	phaseClosing
	phaseClosed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseConnecting:
		return "connecting"
	case phaseAwaitingHello:
		return "awaiting_hello"
	case phaseLive:
		return "live"
	case phaseClosing:
		return "closing"
	case phaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Configuration carries the identify fields sent once a stream reaches
// the hello step (§4.E step 8, §6).
type Configuration struct {
	Token     string
	OS        string
	Browser   string
	Device    string
	UserAgent string
}

// diagEvent is one buffered diagnostic tuple (§3 diag_backlog).
type diagEvent struct {
	level   uint
	message string
}

// defaultDisconnectTimeout is the bound Disconnect waits for a remote
// close acknowledgement before proceeding with local teardown (§5).
// The Open Question in §9 about this value is resolved by making it an
// option rather than a hard-coded constant; this is the default.
const defaultDisconnectTimeout = 1 * time.Second

// Session is the Gateway session controller (§4.I): it owns all
// control-plane state, serializes mutation behind a single mutex, and
// exposes the public surface a caller drives.
//
// The zero value is not ready for use; construct with New.
type Session struct {
	mu sync.Mutex

	scheduler Scheduler
	endpoint  endpointCache

	phase               phase
	stream              Stream
	heartbeatInterval   float64
	nextHeartbeatAt     float64
	heartbeatToken      Token
	heartbeatTokenSet   bool
	heartbeatAckPending bool
	lastSequence        *int64
	disconnectRequested bool
	cancelInflight      CancelFunc
	awaitingHello       bool

	helloSignal *signal
	closeSignal *signal

	onClose func()
	onDiag  func(level uint, message string)
	backlog []diagEvent

	proceedWithConnect <-chan struct{}

	disconnectTimeout time.Duration

	tasks *taskgroup.Group
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithDisconnectTimeout overrides how long Disconnect waits for the
// remote peer to acknowledge a close before proceeding with local
// teardown regardless (§5, §9).
func WithDisconnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.disconnectTimeout = d }
}

// New constructs a Session in the Idle phase, ready to Connect.
func New(scheduler Scheduler, opts ...Option) *Session {
	s := &Session{
		scheduler:         scheduler,
		phase:             phaseIdle,
		disconnectTimeout: defaultDisconnectTimeout,
		tasks:             taskgroup.New(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScheduler replaces the scheduler used for heartbeat ticks. Any
// outstanding schedule is cancelled against the old scheduler; if the
// Session is Live, a new tick is scheduled against the new one so the
// keep-alive cadence continues uninterrupted.
func (s *Session) SetScheduler(scheduler Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelHeartbeatTokenLocked()
	s.scheduler = scheduler

	if s.phase == phaseLive && s.heartbeatInterval > 0 {
		s.scheduleNextHeartbeatLocked()
	}
}

// WaitBeforeConnect stores a gate to be awaited at the very start of
// the next Connect call, before any other work happens. It exists only
// to let tests force specific race orderings (§4.E step 1); production
// callers have no reason to use it.
func (s *Session) WaitBeforeConnect(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proceedWithConnect = gate
}

// RegisterCloseCallback installs the sink invoked exactly once per
// transition into Closed (§3 I4). If the Session is already Closed,
// cb is invoked synchronously, outside any lock, before this method
// returns (§4.G, testable property 4).
func (s *Session) RegisterCloseCallback(cb func()) {
	s.mu.Lock()
	alreadyClosed := s.phase == phaseClosed
	s.onClose = cb
	s.mu.Unlock()

	if alreadyClosed && cb != nil {
		cb()
	}
}

// Disconnect latches the disconnect flag, cancels whatever transport
// operation is currently in flight, and — if a stream is open —
// enters Closing, closes the stream gracefully, and waits up to the
// configured disconnect timeout for the close funnel to run. Whether
// the remote peer acknowledges in time or the wait times out, the only
// way out of Closing is fireClose (§4.G): on timeout Disconnect calls
// it directly rather than leaving phase and stream inconsistent.
// Disconnect always returns; it never blocks indefinitely (§4.I, §5).
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.disconnectRequested = true

	cancel := s.cancelInflight
	stream := s.stream
	closeSig := s.closeSignal
	if stream != nil && s.phase != phaseClosed {
		s.phase = phaseClosing
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if stream == nil {
		return
	}

	_ = stream.Close(CloseGraceful)

	if closeSig == nil {
		return
	}

	select {
	case <-closeSig.Done():
		// The stream's close handler already ran fireClose, which is
		// the only path into Closed (§4.G) — nothing left to do here.
	case <-time.After(s.disconnectTimeoutOrDefault()):
		s.emitDiag(5, errCloseTimeout.Error())
		s.fireClose()
	}
}

func (s *Session) disconnectTimeoutOrDefault() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnectTimeout <= 0 {
		return defaultDisconnectTimeout
	}
	return s.disconnectTimeout
}
