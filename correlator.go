package kovi

import (
	"log/slog"
	"sync"
)

// correlator is the EchoMap of distilled spec §3/§4.5: a mutex-guarded map
// from echo token to a one-shot reply slot, grounded on
// original_source/src/bot/runtimebot/onebot_api.rs's send/send_and_return/
// _and_return plumbing.
type correlator struct {
	mu     sync.Mutex
	slots  map[string]chan Reply
	logger *slog.Logger
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{slots: make(map[string]chan Reply), logger: logger}
}

// register allocates a capacity-1 reply slot for echo. Callers must not
// register EchoNone.
func (c *correlator) register(echo string) chan Reply {
	ch := make(chan Reply, 1)
	c.mu.Lock()
	c.slots[echo] = ch
	c.mu.Unlock()
	return ch
}

// forget removes a slot without waiting for a reply (used when a caller's
// context is cancelled before a reply arrives).
func (c *correlator) forget(echo string) {
	c.mu.Lock()
	delete(c.slots, echo)
	c.mu.Unlock()
}

// deliver routes an inbound reply to its awaiter (distilled spec §4.5).
// echo == EchoNone is silently discarded. An unknown echo is warned and
// dropped (the caller may have cancelled). A non-"ok" status is additionally
// logged at warn level.
func (c *correlator) deliver(r Reply) {
	if r.Echo == EchoNone {
		return
	}
	c.mu.Lock()
	ch, ok := c.slots[r.Echo]
	if ok {
		delete(c.slots, r.Echo)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("reply with unknown echo dropped", slog.String("echo", r.Echo))
		return
	}
	if !r.OK() {
		c.logger.Warn("non-ok API reply", slog.String("echo", r.Echo), slog.Int("retcode", r.Retcode))
	}
	ch <- r
}
