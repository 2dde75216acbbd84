package kovi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Framework carries options that affect parsing/dispatch behavior across the
// whole Bot (distilled spec §9's resolved Open Questions: CQ-string support
// and the message_sent branch are both opt-outable/opt-in toggles here).
type Framework struct {
	allowCQString      bool
	messageSentEnabled bool
}

// FrameworkOption configures a Framework.
type FrameworkOption func(*Framework)

// WithCQStringSupport toggles whether a flat CQ-string "message" field is
// accepted (true, the default) or rejected with ParseError (false).
func WithCQStringSupport(allow bool) FrameworkOption {
	return func(f *Framework) { f.allowCQString = allow }
}

// WithMessageSentEvents toggles emission of message_sent events, off by
// default (distilled spec §9: "left to the implementer").
func WithMessageSentEvents(enabled bool) FrameworkOption {
	return func(f *Framework) { f.messageSentEnabled = enabled }
}

// Bot is the lifecycle supervisor of distilled spec §4.10: it boots the
// transport and dispatcher, runs every startup-enabled plugin's main once,
// waits for termination signals, coordinates drop-listener execution on the
// way out, and exits. Grounded on sdk/go/amityvox/bot.go's Start/signal
// handling shape, extended to the fuller POSIX signal set and the
// Drop-then-exit sequence from original_source/src/plugin.rs's shutdown().
type Bot struct {
	config         *Config
	configPath     string
	statusPath     string
	instanceID     string
	pluginStatus   map[string]PluginConfig
	logger         *slog.Logger
	registry       *pluginRegistry
	tm             *taskManager
	corr           *correlator
	transport      *transport
	identity       *botIdentity
	framework      Framework

	mountMu sync.Mutex
}

// NewBot builds a Bot from a populated Config. configPath/statusPath name
// the files LoadConfig/plugin-status persistence read from and write to;
// pass "" to disable plugin-status persistence. If statusPath names an
// existing kovi.plugins.json, its per-plugin status is applied to matching
// plugins at Mount time and its instance tag is carried forward on save;
// otherwise a fresh instance tag is minted.
func NewBot(cfg *Config, configPath, statusPath string, opts ...FrameworkOption) *Bot {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if cfg.Debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	fw := Framework{allowCQString: true, messageSentEnabled: false}
	for _, o := range opts {
		o(&fw)
	}

	tm := newTaskManager(logger)
	corr := newCorrelator(logger)
	registry := newPluginRegistry(tm)
	identity := &botIdentity{MainAdmin: cfg.MainAdmin, Admins: cfg.Admins}

	pluginStatus := map[string]PluginConfig{}
	instanceID := uuid.NewString()
	if statusPath != "" {
		loaded, id, err := loadPluginStatus(statusPath)
		if err != nil {
			logger.Warn("loading plugin status failed, starting from code defaults", slog.String("error", err.Error()))
		} else {
			pluginStatus = loaded
			instanceID = id
		}
	}
	logger = logger.With(slog.String("instance_id", instanceID))

	return &Bot{
		config:       cfg,
		configPath:   configPath,
		statusPath:   statusPath,
		instanceID:   instanceID,
		pluginStatus: pluginStatus,
		logger:       logger,
		registry:     registry,
		tm:           tm,
		corr:         corr,
		transport:    newTransport(logger, corr, parserOptions{allowCQString: fw.allowCQString, messageSentEnabled: fw.messageSentEnabled}),
		identity:     identity,
		framework:    fw,
	}
}

// SetLogger replaces the default logger.
func (b *Bot) SetLogger(l *slog.Logger) { b.logger = l }

// Mount registers a new plugin. Must be called before Run. Duplicate names
// are rejected (distilled spec §4.6).
func (b *Bot) Mount(name, version string, main PluginMainFunc) error {
	b.mountMu.Lock()
	defer b.mountMu.Unlock()

	p := newPlugin(name, version, main)
	if cfg, ok := b.config.Plugins[name]; ok {
		applyStatus(p, cfg)
	}
	// kovi.plugins.json (statusPath), when present, overrides kovi.conf.json
	// for status fields. Run writes it once, right after starting the
	// startup-enabled plugins; runtime EnablePlugin/DisablePlugin calls are
	// not written to it.
	if cfg, ok := b.pluginStatus[name]; ok {
		applyStatus(p, cfg)
	}
	rb := newRuntimeBot(name, b.transport.apiSend, b.corr, b.registry, b.logger.With(slog.String("plugin", name)), b.tm, p)
	p.rb = rb

	return b.registry.mount(p)
}

// fetchLoginInfo performs a core-level (not ambient-plugin-scoped) round
// trip to get_login_info, used once at startup to populate bot identity —
// grounded on original_source/src/bot/handler.rs's handle_lifecycle, but
// routed through the single shared /api correlator instead of the older
// prototype's throwaway second connection (see DESIGN.md).
func (b *Bot) fetchLoginInfo(ctx context.Context) error {
	echo, err := newEcho()
	if err != nil {
		return err
	}
	env, err := NewEnvelope("get_login_info", map[string]any{}, echo)
	if err != nil {
		return err
	}
	replyCh := b.corr.register(echo)

	select {
	case b.transport.apiSend <- apiRequest{envelope: env, reply: replyCh}:
	case <-ctx.Done():
		b.corr.forget(echo)
		return ctx.Err()
	}

	select {
	case r, ok := <-replyCh:
		if !ok || !r.OK() {
			return fmt.Errorf("kovi: get_login_info failed")
		}
		var data struct {
			UserID   int64  `json:"user_id"`
			Nickname string `json:"nickname"`
		}
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return err
		}
		b.identity.SelfID = data.UserID
		b.identity.Nickname = data.Nickname
		b.logger.Info("bot identity resolved", slog.Int64("self_id", data.UserID), slog.String("nickname", data.Nickname))
		return nil
	case <-ctx.Done():
		b.corr.forget(echo)
		return ctx.Err()
	}
}

// Run executes distilled spec §4.10's five steps. It blocks until a clean
// Drop shutdown (exit code communicated via the returned error being nil)
// or a forced second-signal exit (os.Exit(1), bypassing the normal return).
func (b *Bot) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Step 1+2: channels are owned by transport; connect and start reader/
	// writer tasks plus the dispatcher and the task-manager sweeper.
	if err := b.transport.connect(runCtx, b.config.Server); err != nil {
		return err
	}
	b.tm.startSweeper(runCtx)

	if err := b.fetchLoginInfo(runCtx); err != nil {
		b.logger.Warn("could not resolve bot identity at startup", slog.String("error", err.Error()))
	}

	// Step 3: run every startup-enabled plugin's main once.
	for _, p := range b.registry.snapshot() {
		if p.enableOnStartup {
			p.run(runCtx, b.tm)
		} else {
			p.enabled.Set(false)
		}
	}
	if b.statusPath != "" {
		if err := savePluginStatus(b.statusPath, b.instanceID, b.registry); err != nil {
			b.logger.Warn("saving plugin status failed", slog.String("error", err.Error()))
		}
	}

	rbFor := func(name string) *RuntimeBot {
		if p, ok := b.registry.get(name); ok {
			return p.rb
		}
		return newRuntimeBot(name, b.transport.apiSend, b.corr, b.registry, b.logger, b.tm, nil)
	}
	d := newDispatcher(b.registry, b.tm, b.logger, b.identity)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		d.run(runCtx, b.transport.events, rbFor)
	}()

	// Step 4: watch termination signals.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		b.logger.Info("received termination signal, shutting down", slog.String("signal", sig.String()))
		select {
		case b.transport.events <- dropEvent():
		default:
		}
		// Second signal within the same process exits immediately with
		// code 1, bypassing graceful shutdown (distilled spec §4.10 step 4).
		if _, ok := <-sigCh; ok {
			b.logger.Error("second termination signal received, forcing exit")
			os.Exit(1)
		}
	}()

	<-dispatcherDone
	b.transport.close()
	cancel()
	time.Sleep(10 * time.Millisecond) // let in-flight goroutines observe ctx.Done
	return nil
}
