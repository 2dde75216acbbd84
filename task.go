package kovi

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// taskHandle is the Go analogue of Rust's tokio::task::AbortHandle: a
// cancel function plus a done channel the spawned goroutine closes on
// return, so the sweeper can tell a finished handle from a live one (Rust's
// AbortHandle::is_finished()).
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *taskHandle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// taskManager records every task spawned via spawn(), keyed by the ambient
// plugin name, so disabling a plugin can cancel them en masse. Grounded on
// original_source/src/task.rs's TaskManager/TaskAbortHandles.
type taskManager struct {
	mu      sync.Mutex
	handles map[string][]*taskHandle
	logger  *slog.Logger

	sweepOnce sync.Once
	stopSweep context.CancelFunc
}

func newTaskManager(logger *slog.Logger) *taskManager {
	return &taskManager{handles: make(map[string][]*taskHandle), logger: logger}
}

// startSweeper launches the periodic (~20s) cleanup of finished handles
// (original_source's TaskManager::once_init). Idempotent.
func (tm *taskManager) startSweeper(ctx context.Context) {
	tm.sweepOnce.Do(func() {
		sweepCtx, cancel := context.WithCancel(ctx)
		tm.stopSweep = cancel
		go func() {
			ticker := time.NewTicker(20 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					tm.sweep()
				}
			}
		}()
	})
}

func (tm *taskManager) sweep() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for name, hs := range tm.handles {
		live := hs[:0]
		for _, h := range hs {
			if !h.finished() {
				live = append(live, h)
			}
		}
		if len(live) == 0 {
			delete(tm.handles, name)
		} else {
			tm.handles[name] = live
		}
	}
}

func (tm *taskManager) register(name string, h *taskHandle) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.handles[name] = append(tm.handles[name], h)
}

// disablePlugin aborts every tracked handle for name. Abort is cooperative:
// handlers observe cancellation (via ctx.Done()) at their next suspension
// point, they are not preempted.
func (tm *taskManager) disablePlugin(name string) {
	tm.mu.Lock()
	hs := tm.handles[name]
	delete(tm.handles, name)
	tm.mu.Unlock()
	for _, h := range hs {
		h.cancel()
	}
}

// spawn runs fn in its own goroutine, registered under the ambient plugin
// name carried in ctx. It panics if ctx carries no ambient plugin context —
// this is a programming error per distilled spec §4.7(b), not a runtime
// condition. Every framework entry point that invokes user code (dispatcher
// fan-out, plugin main, cron fire) must call spawn rather than `go` directly
// so the task manager can track and cancel it.
func (tm *taskManager) spawn(ctx context.Context, fn func(context.Context)) {
	amb := mustAmbient(ctx)
	taskCtx, cancel := context.WithCancel(ctx)
	h := &taskHandle{cancel: cancel, done: make(chan struct{})}
	tm.register(amb.pluginName, h)

	go func() {
		defer close(h.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				tm.logger.Error("plugin task panicked",
					slog.String("plugin", amb.pluginName),
					slog.Any("panic", r))
			}
		}()
		fn(taskCtx)
	}()
}
