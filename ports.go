package gateway

import "context"

// CancelFunc aborts an in-flight transport operation. Calling it causes
// the associated future to resolve with the operation's cancellation
// sentinel (status 499 for a Request, a nil Stream for OpenStream).
// CancelFunc must be safe to call more than once and from any goroutine.
type CancelFunc func()

// Header is a single request header, carried as a slice rather than a
// map so the transport can preserve caller-supplied ordering.
type Header struct {
	Key   string
	Value string
}

// Request describes an outbound request-response exchange.
type Request struct {
	Method  string
	URI     string
	Headers []Header
	Body    []byte
}

// Response is the result of a Request.
type Response struct {
	Status  int
	Headers []Header
	Body    []byte
}

// CancelledStatus is the sentinel HTTP-like status a Transport must
// report when a Request's CancelFunc fires before a real response
// arrives.
const CancelledStatus = 499

// Transport is the abstract networking dependency of the controller. It
// exposes exactly two operations, each of which starts work
// asynchronously and returns a single-delivery result channel alongside
// a CancelFunc. Transport implementations must tolerate their result
// channels being read from a different goroutine than the one that
// started the operation, and must tolerate CancelFunc being invoked
// concurrently with the operation completing normally.
type Transport interface {
	// Request performs a request-response exchange. The returned
	// channel receives exactly one Response, then is never written to
	// again. ctx bounds the operation the same way a cancel call would.
	Request(ctx context.Context, req Request) (<-chan Response, CancelFunc)

	// OpenStream opens a bidirectional message stream at uri. The
	// returned channel receives exactly one value: a non-nil Stream on
	// success, or nil if the open failed or was cancelled.
	OpenStream(ctx context.Context, uri string) (<-chan Stream, CancelFunc)
}

// CloseCode identifies the reason a Stream was closed, per the WebSocket
// close-code convention (RFC 6455 §7.4). 1000 is graceful; this
// controller also uses 4000 for a missed-heartbeat-ack abort.
type CloseCode uint16

const (
	CloseGraceful       CloseCode = 1000
	CloseMissedAckAbort CloseCode = 4000
)

// Stream is an opened bidirectional message stream. Implementations
// must allow Send* to be called concurrently with handler invocation,
// and must invoke at most one handler of each kind at a time (handlers
// run on transport-owned goroutines; the controller does not assume any
// particular concurrency but does assume ordering is preserved per
// handler kind).
type Stream interface {
	SendText(message string) error
	SendBinary(message []byte) error
	Close(code CloseCode) error

	OnText(func(message string))
	OnBinary(func(message []byte))
	OnClose(func())
}

// Token is an opaque, non-zero handle for a pending scheduled callback.
type Token uint64

// Scheduler supplies wall-clock time and one-shot delayed callbacks to
// the controller. The controller never reads the system clock directly,
// so tests can drive time deterministically.
type Scheduler interface {
	// Now returns the current time in seconds. It need not be wall
	// clock as long as it is monotonic enough to compare against values
	// previously returned by Now.
	Now() float64

	// Schedule arranges for fn to run once, no earlier than at (seconds,
	// comparable to Now). It returns a non-zero Token that can be passed
	// to Cancel. fn runs on an executor the controller does not own.
	Schedule(at float64, fn func()) Token

	// Cancel aborts a pending schedule. It is idempotent and is a no-op
	// if the callback already ran or was already cancelled.
	Cancel(t Token)
}
