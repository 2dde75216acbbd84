package kovi

import (
	"context"
	"fmt"
	"log/slog"
)

// RuntimeBot is the per-plugin facade described in distilled spec §4.9:
// Send/SendAndAwait over the outbound API channel, plus registry-mutating
// control ops. Closures registered by a plugin retain no direct reference
// to the Plugin record; they reach the bot only through a captured
// RuntimeBot, which holds a shared reference to the registry (distilled
// spec §9's registry↔closure decoupling note).
type RuntimeBot struct {
	pluginName string
	apiSend    chan<- apiRequest
	corr       *correlator
	registry   *pluginRegistry
	logger     *slog.Logger
	tm         *taskManager
	plugin     *Plugin
}

func newRuntimeBot(pluginName string, apiSend chan<- apiRequest, corr *correlator, registry *pluginRegistry, logger *slog.Logger, tm *taskManager, plugin *Plugin) *RuntimeBot {
	return &RuntimeBot{pluginName: pluginName, apiSend: apiSend, corr: corr, registry: registry, logger: logger, tm: tm, plugin: plugin}
}

// PluginName returns the name of the plugin this handle was built for.
func (rb *RuntimeBot) PluginName() string { return rb.pluginName }

// Send is non-blocking fire-and-forget: it tries a direct channel send and,
// if the outbound channel is momentarily full, spills to a spawned
// goroutine so the caller is never blocked waiting for channel capacity.
// Spilled calls have no ordering guarantee: a spilled call may reach the
// channel after calls the same caller makes later. Grounded on
// original_source/src/bot/runtimebot/onebot_api.rs's try_send-then-spawn
// pattern. A closed channel drops the message with a logged error (distilled
// spec §7's ChannelClosed policy for fire-and-forget).
func (rb *RuntimeBot) Send(env Envelope) error {
	req := apiRequest{envelope: env}
	dropClosed := func() {
		if r := recover(); r != nil {
			rb.logger.Error("api channel closed, message dropped", slog.String("action", env.Action))
		}
	}
	defer dropClosed()
	select {
	case rb.apiSend <- req:
		return nil
	default:
	}
	go func() {
		defer dropClosed()
		rb.apiSend <- req
	}()
	return nil
}

// SendAndAwait registers a one-shot reply slot, sends env, and blocks until
// either the reply arrives or ctx is cancelled / the transport closes the
// channel. env.Echo must not be EchoNone.
func (rb *RuntimeBot) SendAndAwait(ctx context.Context, env Envelope) (Reply, error) {
	if env.Echo == EchoNone {
		return Reply{}, fmt.Errorf("kovi: SendAndAwait requires a non-sentinel echo")
	}
	replyCh := rb.corr.register(env.Echo)
	req := apiRequest{envelope: env, reply: replyCh}

	select {
	case rb.apiSend <- req:
	case <-ctx.Done():
		rb.corr.forget(env.Echo)
		return Reply{}, ctx.Err()
	}

	select {
	case r, ok := <-replyCh:
		if !ok {
			return Reply{}, &ErrChannelClosed{Channel: "api reply"}
		}
		if !r.OK() {
			return r, fmt.Errorf("kovi: api call %q failed: retcode=%d", env.Action, r.Retcode)
		}
		return r, nil
	case <-ctx.Done():
		rb.corr.forget(env.Echo)
		return Reply{}, ctx.Err()
	}
}

// newEchoOrPanic is used by convenience wrappers that cannot meaningfully
// return an echo-generation error (crypto/rand failure is effectively
// unrecoverable on any real system).
func (rb *RuntimeBot) newEchoOrPanic() string {
	echo, err := newEcho()
	if err != nil {
		panic(fmt.Sprintf("kovi: generating echo token: %v", err))
	}
	return echo
}

// --- Control ops (distilled spec §4.9) ---

// EnablePlugin enables a mounted plugin by name; a no-op if already enabled.
func (rb *RuntimeBot) EnablePlugin(ctx context.Context, name string) error {
	return rb.registry.enable(ctx, name)
}

// DisablePlugin disables a mounted plugin by name; a no-op if already
// disabled. Safe to call with name == rb.PluginName() — disable aborts
// tasks cooperatively, so the calling task's own abort only fires at its
// next suspension point (distilled spec §4.9 constraint).
func (rb *RuntimeBot) DisablePlugin(ctx context.Context, name string) error {
	_, err := rb.registry.disable(ctx, name)
	return err
}

// IsPluginEnabled reports whether the named plugin is currently enabled.
func (rb *RuntimeBot) IsPluginEnabled(name string) (bool, error) {
	return rb.registry.isEnabled(name)
}

// GetDataPath returns this plugin's persistence directory,
// "./data/<plugin_name>". The framework does not create it.
func (rb *RuntimeBot) GetDataPath() string {
	return "./data/" + rb.pluginName
}

// GetPluginList returns a snapshot of every mounted plugin's public info.
func (rb *RuntimeBot) GetPluginList() []PluginInfo {
	return rb.registry.list()
}
