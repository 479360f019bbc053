package main

import (
	"sync"
	"time"

	"github.com/agentgw/gateway"
)

// timerRegistry maps the opaque Token handles wallClock hands out back
// to the underlying *time.Timer, so Cancel can stop them.
var timerRegistry struct {
	mu     sync.Mutex
	next   uint64
	timers map[gateway.Token]*time.Timer
}

func init() {
	timerRegistry.timers = make(map[gateway.Token]*time.Timer)
}

func registerTimer(timer *time.Timer) gateway.Token {
	timerRegistry.mu.Lock()
	defer timerRegistry.mu.Unlock()
	timerRegistry.next++
	tok := gateway.Token(timerRegistry.next)
	timerRegistry.timers[tok] = timer
	return tok
}

func cancelTimer(tok gateway.Token) {
	timerRegistry.mu.Lock()
	timer, ok := timerRegistry.timers[tok]
	delete(timerRegistry.timers, tok)
	timerRegistry.mu.Unlock()
	if ok {
		timer.Stop()
	}
}
