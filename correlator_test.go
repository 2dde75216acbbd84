package kovi

import "testing"

func TestCorrelatorDeliverRoutesToRegisteredSlot(t *testing.T) {
	c := newCorrelator(testLogger())
	ch := c.register("echo-1")
	c.deliver(Reply{Echo: "echo-1", Status: "ok"})

	select {
	case r := <-ch:
		if r.Echo != "echo-1" {
			t.Fatalf("unexpected reply: %+v", r)
		}
	default:
		t.Fatal("expected reply to be delivered")
	}
}

func TestCorrelatorDeliverDropsUnknownEcho(t *testing.T) {
	c := newCorrelator(testLogger())
	// Must not panic or block for an echo nobody registered.
	c.deliver(Reply{Echo: "ghost", Status: "ok"})
}

func TestCorrelatorDeliverDiscardsEchoNone(t *testing.T) {
	c := newCorrelator(testLogger())
	ch := c.register(EchoNone)
	c.deliver(Reply{Echo: EchoNone, Status: "ok"})

	select {
	case <-ch:
		t.Fatal("expected EchoNone replies to be discarded, not routed")
	default:
	}
}

func TestCorrelatorForgetRemovesSlot(t *testing.T) {
	c := newCorrelator(testLogger())
	c.register("echo-2")
	c.forget("echo-2")
	// Delivering after forget should behave like an unknown echo: dropped,
	// not panicking.
	c.deliver(Reply{Echo: "echo-2", Status: "ok"})
}

func TestCorrelatorDeliverNonOKStillRoutes(t *testing.T) {
	c := newCorrelator(testLogger())
	ch := c.register("echo-3")
	c.deliver(Reply{Echo: "echo-3", Status: "failed", Retcode: 100})

	select {
	case r := <-ch:
		if r.OK() {
			t.Fatal("expected non-ok reply to still report !OK()")
		}
	default:
		t.Fatal("expected non-ok reply to still be routed to its awaiter")
	}
}
