package kovi

import "testing"

func TestWatchBoolGetSet(t *testing.T) {
	w := newWatchBool(true)
	if !w.Get() {
		t.Fatal("expected initial value true")
	}
	w.Set(false)
	if w.Get() {
		t.Fatal("expected value false after Set(false)")
	}
}

func TestWatchBoolChangedFiresOnce(t *testing.T) {
	w := newWatchBool(true)
	ch := w.Changed()
	select {
	case <-ch:
		t.Fatal("channel should not be closed before any Set call")
	default:
	}
	w.Set(false)
	select {
	case <-ch:
	default:
		t.Fatal("expected channel to close after value changed")
	}
}

func TestWatchBoolSetNoopWhenUnchanged(t *testing.T) {
	w := newWatchBool(true)
	ch := w.Changed()
	w.Set(true) // same value: must not close ch
	select {
	case <-ch:
		t.Fatal("Set to the same value must not notify waiters")
	default:
	}
}
