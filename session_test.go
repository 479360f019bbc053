package gateway_test

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	. "github.com/agentgw/gateway"
	"github.com/agentgw/gateway/gatewaytest"
)

func newTestSession() (*Session, *gatewaytest.Clock) {
	clock := gatewaytest.NewClock()
	return New(clock), clock
}

// S1 Discovery-then-open.
func TestDiscoveryThenOpen(t *testing.T) {
	defer leaktest.Check(t)()

	s, _ := newTestSession()
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})

	require.True(t, transport.RequireResourceRequests(1))
	req := transport.RequestAt(0)
	require.Equal(t, DiscoveryURL, req.URI)
	require.Contains(t, req.Headers, Header{Key: "User-Agent", Value: "DiscordBot"})

	transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(`{"url":"wss://gateway.discord.gg"}`)})

	require.True(t, transport.RequireStreamRequests(1))
	require.Equal(t, "wss://gateway.discord.gg"+StreamSuffix, transport.StreamRequestAt(0))

	stream := gatewaytest.NewStream()
	transport.RespondToStreamRequest(0, stream)

	stream.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)

	require.True(t, stream.AwaitTexts(1))
	// Only assert that the heartbeat is the first frame sent: the
	// connect worker's identify send (step 8) races this read, since
	// nothing beyond AwaitTexts(1) synchronizes with it.
	sent := stream.TextSent()
	require.NotEmpty(t, sent)
	if diff := cmp.Diff(`{"op":1,"d":null}`, sent[0]); diff != "" {
		t.Errorf("unexpected first outbound frame (-want +got):\n%s", diff)
	}

	select {
	case ok := <-result:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("connect did not resolve")
	}

	s.Disconnect()
}

// S2 Bad discovery bodies.
func TestBadDiscoveryBodies(t *testing.T) {
	defer leaktest.Check(t)()

	for _, body := range []string{`"foobar"`, `This is " bad JSON`, `{"foo":"wss://x"}`} {
		s, _ := newTestSession()
		transport := gatewaytest.NewTransport()

		result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
		require.True(t, transport.RequireResourceRequests(1))
		transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(body)})

		select {
		case ok := <-result:
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("connect did not resolve")
		}
		transport.TearDown()
	}
}

// S3 Cached URL fails, fallback rediscovery.
func TestCachedURLFailsFallsBackToDiscovery(t *testing.T) {
	defer leaktest.Check(t)()

	s, _ := newTestSession()
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
	require.True(t, transport.RequireResourceRequests(1))
	transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(`{"url":"wss://gateway.discord.gg"}`)})
	require.True(t, transport.RequireStreamRequests(1))
	stream1 := gatewaytest.NewStream()
	transport.RespondToStreamRequest(0, stream1)
	stream1.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)
	require.True(t, stream1.AwaitTexts(1))
	require.True(t, <-result)

	s.Disconnect()

	result2 := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})

	// Cached URL is tried first: no new discovery request yet.
	require.True(t, transport.RequireStreamRequests(2))
	require.Equal(t, "wss://gateway.discord.gg"+StreamSuffix, transport.StreamRequestAt(1))
	transport.RespondToStreamRequest(1, nil)

	require.True(t, transport.RequireResourceRequests(2))
	transport.RespondToResourceRequest(1, Response{Status: 200, Body: []byte(`{"url":"wss://gateway2.discord.gg"}`)})

	require.True(t, transport.RequireStreamRequests(3))
	require.Equal(t, "wss://gateway2.discord.gg"+StreamSuffix, transport.StreamRequestAt(2))
	stream2 := gatewaytest.NewStream()
	transport.RespondToStreamRequest(2, stream2)
	stream2.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)
	require.True(t, stream2.AwaitTexts(1))
	require.True(t, <-result2)

	s.Disconnect()
}

// S4 Ack timeout.
func TestAckTimeoutClosesWithCode4000(t *testing.T) {
	defer leaktest.Check(t)()

	s, clock := newTestSession()
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	closedCh := make(chan struct{})
	s.RegisterCloseCallback(func() { close(closedCh) })

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
	require.True(t, transport.RequireResourceRequests(1))
	transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(`{"url":"wss://gateway.discord.gg"}`)})
	require.True(t, transport.RequireStreamRequests(1))
	stream := gatewaytest.NewStream()
	transport.RespondToStreamRequest(0, stream)
	stream.DeliverText(`{"op":10,"d":{"heartbeat_interval":1000}}`)
	require.True(t, stream.AwaitTexts(1))
	require.True(t, <-result)

	clock.Advance(2 * time.Second)

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("close callback did not fire after missed ack")
	}

	closed, code := stream.Closed()
	require.True(t, closed)
	require.Equal(t, CloseMissedAckAbort, code)
}

// Disconnect close-wait timeout: the remote peer never acknowledges
// the graceful close. Disconnect must still force the session into
// Closed via fireClose rather than leaving phase and stream
// inconsistent, and a subsequent Connect must succeed rather than
// being rejected as already-connected (I1).
func TestDisconnectTimeoutClosesAndAllowsReconnect(t *testing.T) {
	defer leaktest.Check(t)()

	clock := gatewaytest.NewClock()
	s := New(clock, WithDisconnectTimeout(20*time.Millisecond))
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
	require.True(t, transport.RequireResourceRequests(1))
	transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(`{"url":"wss://gateway.discord.gg"}`)})
	require.True(t, transport.RequireStreamRequests(1))
	stream := gatewaytest.NewStream()
	stream.WithholdCloseAck()
	transport.RespondToStreamRequest(0, stream)
	stream.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)
	require.True(t, stream.AwaitTexts(1))
	require.True(t, <-result)

	// The callback runs once per transition into Closed, and the final
	// Disconnect below is a second transition, so it must not close a
	// channel twice.
	closedCh := make(chan struct{}, 1)
	s.RegisterCloseCallback(func() {
		select {
		case closedCh <- struct{}{}:
		default:
		}
	})

	s.Disconnect()

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("close callback did not fire after disconnect timeout")
	}

	closed, code := stream.Closed()
	require.True(t, closed)
	require.Equal(t, CloseGraceful, code)

	transport2 := gatewaytest.NewTransport()
	defer transport2.TearDown()

	result2 := s.Connect(transport2, Configuration{UserAgent: "DiscordBot"})
	// The endpoint cache survives Disconnect, so the cached URL is opened
	// directly with no new discovery request.
	require.True(t, transport2.RequireStreamRequests(1))
	require.Equal(t, "wss://gateway.discord.gg"+StreamSuffix, transport2.StreamRequestAt(0))
	require.Equal(t, 0, transport2.RequestCount())
	stream2 := gatewaytest.NewStream()
	transport2.RespondToStreamRequest(0, stream2)
	stream2.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)
	require.True(t, stream2.AwaitTexts(1))
	require.True(t, <-result2)

	s.Disconnect()
}

// S5 Disconnect during discovery.
func TestDisconnectDuringDiscovery(t *testing.T) {
	defer leaktest.Check(t)()

	s, _ := newTestSession()
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
	require.True(t, transport.RequireResourceRequests(1))

	s.Disconnect()

	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("connect did not resolve after disconnect")
	}
	require.Equal(t, 1, transport.RequestCount())
}

// S6 Late close-callback registration.
func TestLateCloseCallbackRegistration(t *testing.T) {
	defer leaktest.Check(t)()

	s, _ := newTestSession()
	transport := gatewaytest.NewTransport()
	defer transport.TearDown()

	result := s.Connect(transport, Configuration{UserAgent: "DiscordBot"})
	require.True(t, transport.RequireResourceRequests(1))
	transport.RespondToResourceRequest(0, Response{Status: 200, Body: []byte(`{"url":"wss://gateway.discord.gg"}`)})
	require.True(t, transport.RequireStreamRequests(1))
	stream := gatewaytest.NewStream()
	transport.RespondToStreamRequest(0, stream)
	stream.DeliverText(`{"op":10,"d":{"heartbeat_interval":45000}}`)
	require.True(t, stream.AwaitTexts(1))
	require.True(t, <-result)

	stream.RemoteClose()

	called := make(chan struct{})
	// Give the close funnel a moment to run before registering late.
	time.Sleep(20 * time.Millisecond)
	s.RegisterCloseCallback(func() { close(called) })

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("late-registered close callback was not invoked")
	}
}

func TestDiagnosticBacklogFlushedInOrder(t *testing.T) {
	s, _ := newTestSession()

	s.EmitDiag(0, "first")
	s.EmitDiag(1, "second")

	var got []string
	done := make(chan struct{})
	s.RegisterDiagnosticMessageCallback(func(level uint, message string) {
		got = append(got, message)
		if len(got) == 2 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backlog was not flushed")
	}
	require.Equal(t, []string{"first", "second"}, got)
}
