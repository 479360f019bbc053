// Package gateway maintains a live control-plane session with a
// chat-service gateway: it discovers the session endpoint, opens a
// bidirectional message stream, runs the hello/identify/heartbeat
// keep-alive subprotocol, and multiplexes inbound messages to handlers.
//
// The package never dials a socket itself. Callers supply a Transport
// (and the Stream it opens) plus a Scheduler; see the transport
// subpackage for a production implementation built on net/http and
// gorilla/websocket, and gatewaytest for in-memory fakes suited to
// deterministic tests.
package gateway
