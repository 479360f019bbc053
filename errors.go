package gateway

import "errors"

// Internal error taxonomy (§7). None of these cross the public API:
// every outcome they describe collapses into either a false Connect
// result or a close-callback invocation. They exist only to give
// diagnostic messages and internal control flow a stable vocabulary.
var (
	errAlreadyConnecting   = errors.New("gateway: connect already in progress")
	errAlreadyConnected    = errors.New("gateway: already connected")
	errDiscoveryFailed     = errors.New("gateway: endpoint discovery failed")
	errStreamOpenFailed    = errors.New("gateway: stream open failed")
	errHeartbeatAckTimeout = errors.New("gateway: heartbeat ack timeout")
	errLocalCancelled      = errors.New("gateway: cancelled locally")
	errCloseTimeout        = errors.New("gateway: disconnect close wait timed out")
)
