package kovi

import (
	"context"
	"testing"
	"time"
)

func newTestRuntimeBot(t *testing.T) (*RuntimeBot, chan apiRequest, *correlator) {
	t.Helper()
	apiSend := make(chan apiRequest, 4)
	corr := newCorrelator(testLogger())
	rb := newRuntimeBot("p", apiSend, corr, nil, testLogger(), nil, nil)
	return rb, apiSend, corr
}

func TestRuntimeBotSendIsFireAndForget(t *testing.T) {
	rb, apiSend, _ := newTestRuntimeBot(t)
	env, err := NewEnvelope("send_msg", map[string]any{}, EchoNone)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := rb.Send(env); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case req := <-apiSend:
		if req.reply != nil {
			t.Fatal("expected a nil reply channel for a fire-and-forget send")
		}
	case <-time.After(time.Second):
		t.Fatal("expected envelope to reach apiSend")
	}
}

func TestRuntimeBotSendAndAwaitDeliversReply(t *testing.T) {
	rb, apiSend, corr := newTestRuntimeBot(t)
	env, err := NewEnvelope("get_status", map[string]any{}, "echo-x")
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	go func() {
		req := <-apiSend
		corr.deliver(Reply{Echo: req.envelope.Echo, Status: "ok"})
	}()

	reply, err := rb.SendAndAwait(context.Background(), env)
	if err != nil {
		t.Fatalf("SendAndAwait: %v", err)
	}
	if !reply.OK() {
		t.Fatalf("expected ok reply, got %+v", reply)
	}
}

func TestRuntimeBotSendAndAwaitRejectsEchoNone(t *testing.T) {
	rb, _, _ := newTestRuntimeBot(t)
	env, err := NewEnvelope("get_status", map[string]any{}, EchoNone)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if _, err := rb.SendAndAwait(context.Background(), env); err == nil {
		t.Fatal("expected an error when Echo == EchoNone")
	}
}

func TestRuntimeBotSendAndAwaitRespectsContextCancellation(t *testing.T) {
	// An unbuffered, unconsumed apiSend channel guarantees the send itself
	// can never complete, so the only case that can ever become ready is
	// ctx.Done() — avoids a race against a buffered channel accepting the
	// send before cancellation is observed.
	apiSend := make(chan apiRequest)
	corr := newCorrelator(testLogger())
	rb := newRuntimeBot("p", apiSend, corr, nil, testLogger(), nil, nil)

	env, err := NewEnvelope("get_status", map[string]any{}, "echo-y")
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := rb.SendAndAwait(ctx, env); err == nil {
		t.Fatal("expected an error for an already-cancelled context")
	}
}

func TestRuntimeBotGetDataPath(t *testing.T) {
	rb, _, _ := newTestRuntimeBot(t)
	if rb.GetDataPath() != "./data/p" {
		t.Fatalf("unexpected data path: %q", rb.GetDataPath())
	}
}

func TestRuntimeBotCallReturnsErrorOnNonOKStatus(t *testing.T) {
	rb, apiSend, corr := newTestRuntimeBot(t)

	go func() {
		req := <-apiSend
		corr.deliver(Reply{Echo: req.envelope.Echo, Status: "failed", Retcode: 1})
	}()

	_, err := rb.GetStatus(context.Background())
	if err == nil {
		t.Fatal("expected an error for a non-ok reply")
	}
}
