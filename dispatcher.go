package kovi

import (
	"context"
	"log/slog"
)

// dispatcher drives the main loop of distilled spec §4.8: read one
// internalEvent at a time, log Lifecycle events, fan out message
// events to every matching (plugin, listener) pair as an independently
// spawned, task-manager-tracked goroutine, and run every enabled plugin's
// drop callbacks on Drop before signalling clean exit.
type dispatcher struct {
	registry *pluginRegistry
	tm       *taskManager
	logger   *slog.Logger
	identity *botIdentity
}

// botIdentity holds the bot's own id/nickname/admin list. SelfID/Nickname
// are set by Bot.fetchLoginInfo at startup; the admin list is read by the
// Admin filter.
type botIdentity struct {
	SelfID     int64
	Nickname   string
	MainAdmin  int64
	Admins     []int64
}

func (b *botIdentity) isAdmin(userID int64) bool {
	if userID == b.MainAdmin {
		return true
	}
	for _, a := range b.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

func newDispatcher(registry *pluginRegistry, tm *taskManager, logger *slog.Logger, identity *botIdentity) *dispatcher {
	return &dispatcher{registry: registry, tm: tm, logger: logger, identity: identity}
}

// run is the dispatcher's main loop. It returns once it has serviced a Drop
// event (distilled spec §4.8 step 1) and every drop callback has completed;
// the caller (Bot.Run) then closes the transport and returns nil.
func (d *dispatcher) run(ctx context.Context, events <-chan internalEvent, rbFor func(pluginName string) *RuntimeBot) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.drop {
				d.handleDrop(ctx)
				return
			}
			d.handleEvent(ctx, ev, rbFor)
		}
	}
}

func (d *dispatcher) handleDrop(ctx context.Context) {
	d.logger.Info("drop event received, running plugin drop callbacks")
	snap := d.registry.snapshot()
	waiters := make([]<-chan struct{}, 0, len(snap))
	for _, p := range snap {
		if !p.Enabled() {
			continue
		}
		waiters = append(waiters, p.shutdown(ctx, d.tm))
	}
	for _, w := range waiters {
		<-w
	}
	d.logger.Info("all plugin drop callbacks complete")
}

func (d *dispatcher) handleEvent(ctx context.Context, ev internalEvent, rbFor func(string) *RuntimeBot) {
	switch {
	case ev.lifecycle != nil:
		d.logger.Info("lifecycle event", slog.String("sub_type", ev.lifecycle.SubType))
		// Bot identity (self id/nickname) is populated from the
		// get_login_info round trip performed by Bot.Run before the
		// dispatcher starts; the lifecycle event here is only logged,
		// matching the newer onebot_api.rs-era design
		// over the older handler.rs prototype (see DESIGN.md).
	case ev.msg != nil:
		d.dispatchMsg(ctx, ev.msg, rbFor, false)
	case ev.msgSent != nil:
		d.dispatchMsg(ctx, ev.msgSent, rbFor, true)
	case ev.notice != nil:
		d.dispatchNotice(ctx, ev.notice, rbFor)
	case ev.request != nil:
		d.dispatchRequest(ctx, ev.request, rbFor)
	}
}

// dispatchMsg implements the filter table of distilled spec §4.8: AnyMsg
// always, Private iff group_id absent, Group iff group_id present, Admin iff
// user_id is in admins ∪ {main_admin}; plus each plugin's own access-control
// whitelist/blacklist. Every accepted pair is spawned independently — the
// dispatcher never awaits user code. sent selects which listener table to
// fan out against: message_sent frames go to listen.MsgSent, everything
// else to listen.Msg — they are distinct registrations (RuntimeBot.OnMsgSent
// vs OnMsg/OnPrivateMsg/OnGroupMsg/OnAdminMsg) and must not cross-fire.
func (d *dispatcher) dispatchMsg(ctx context.Context, ev *MsgEvent, rbFor func(string) *RuntimeBot, sent bool) {
	for _, p := range d.registry.snapshot() {
		if !p.Enabled() {
			continue
		}
		if !p.accepts(ev.GroupID, ev.UserID) {
			continue
		}
		listeners := p.listen.Msg
		if sent {
			listeners = p.listen.MsgSent
		}
		for _, l := range listeners {
			if !matchesKind(l.kind, ev, d.identity) {
				continue
			}
			d.spawnMsgHandler(ctx, p, l.handler, ev, rbFor)
		}
	}
}

func matchesKind(kind MsgListenKind, ev *MsgEvent, identity *botIdentity) bool {
	switch kind {
	case AnyMsg:
		return true
	case PrivateMsg:
		return ev.GroupID == nil
	case GroupMsg:
		return ev.GroupID != nil
	case AdminMsg:
		return identity.isAdmin(ev.UserID)
	default:
		return false
	}
}

func (d *dispatcher) spawnMsgHandler(ctx context.Context, p *Plugin, handler MsgHandlerFunc, ev *MsgEvent, rbFor func(string) *RuntimeBot) {
	rb := rbFor(p.Name)
	bound := ev.attachRuntimeBot(rb)
	pluginCtx := withAmbient(ctx, p.Name, rb)
	d.tm.spawn(pluginCtx, func(taskCtx context.Context) {
		handler(taskCtx, bound)
	})
}

func (d *dispatcher) dispatchNotice(ctx context.Context, ev *NoticeEvent, rbFor func(string) *RuntimeBot) {
	for _, p := range d.registry.snapshot() {
		if !p.Enabled() {
			continue
		}
		for _, h := range p.listen.Notice {
			h := h
			rb := rbFor(p.Name)
			pluginCtx := withAmbient(ctx, p.Name, rb)
			d.tm.spawn(pluginCtx, func(taskCtx context.Context) {
				h(taskCtx, ev)
			})
		}
	}
}

func (d *dispatcher) dispatchRequest(ctx context.Context, ev *RequestEvent, rbFor func(string) *RuntimeBot) {
	for _, p := range d.registry.snapshot() {
		if !p.Enabled() {
			continue
		}
		for _, h := range p.listen.Request {
			h := h
			rb := rbFor(p.Name)
			pluginCtx := withAmbient(ctx, p.Name, rb)
			d.tm.spawn(pluginCtx, func(taskCtx context.Context) {
				h(taskCtx, ev)
			})
		}
	}
}
