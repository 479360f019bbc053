// Command gateway-demo connects to a gateway and prints diagnostics
// until interrupted or until the session closes, exercising the real HTTP/WebSocket adapter, the
// YAML config loader, and the colorized console diagnostic sink
// together.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentgw/gateway"
	"github.com/agentgw/gateway/config"
	"github.com/agentgw/gateway/consolediag"
	"github.com/agentgw/gateway/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gateway-demo: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	adapter := transport.New(transport.WithDialTimeout(cfg.DialTimeout()))
	defer adapter.Close()

	clock := wallClock{}
	session := gateway.New(clock, gateway.WithDisconnectTimeout(cfg.DisconnectTimeout()))

	sink := consolediag.New()
	session.RegisterDiagnosticMessageCallback(sink.Diag)

	closed := make(chan struct{})
	session.RegisterCloseCallback(func() { close(closed) })

	ok := <-session.Connect(adapter, cfg.Identify())
	if !ok {
		fmt.Fprintln(os.Stderr, "gateway-demo: failed to connect")
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		session.Disconnect()
	case <-closed:
	}
}

// wallClock is the production gateway.Scheduler: it schedules
// callbacks with the real system clock via time.AfterFunc.
type wallClock struct{}

func (wallClock) Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (wallClock) Schedule(at float64, fn func()) gateway.Token {
	delay := time.Duration((at - wallClock{}.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, fn)
	return registerTimer(timer)
}

func (wallClock) Cancel(t gateway.Token) {
	cancelTimer(t)
}
