package kovi

import "sync"

// watchBool is a single-value broadcast cell modeling tokio::sync::watch
// (distilled spec §3's Plugin.enabled, §5's "lock-free watch primitive").
// Readers can fetch the current value or block until it changes. No ready
// made Go package in the retrieved pack offers this primitive, so it is
// hand-rolled on a mutex plus a per-generation closed channel — see
// DESIGN.md for why this is the one deliberately hand-rolled concurrency
// primitive in the module.
type watchBool struct {
	mu      sync.Mutex
	value   bool
	changed chan struct{}
}

func newWatchBool(initial bool) *watchBool {
	return &watchBool{value: initial, changed: make(chan struct{})}
}

// Get returns the current value.
func (w *watchBool) Get() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Set updates the value and wakes every outstanding Changed() waiter, if the
// value actually changed (send_modify semantics: Plugin.shutdown always
// sets false even if already false, which is harmless — a no-op Set still
// reports the current value to new waiters).
func (w *watchBool) Set(v bool) {
	w.mu.Lock()
	if w.value == v {
		w.mu.Unlock()
		return
	}
	w.value = v
	ch := w.changed
	w.changed = make(chan struct{})
	w.mu.Unlock()
	close(ch)
}

// Changed returns a channel that closes the next time the value changes.
func (w *watchBool) Changed() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}
