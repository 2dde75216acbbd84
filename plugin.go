package kovi

import "context"

// MsgListenKind is the variant of a message listener (distilled spec §3's
// Listen.msg: AnyMsg | Private | Group | Admin).
type MsgListenKind int

const (
	AnyMsg MsgListenKind = iota
	PrivateMsg
	GroupMsg
	AdminMsg
)

// MsgHandlerFunc is a plugin's message-event callback.
type MsgHandlerFunc func(ctx context.Context, event *MsgEvent)

// NoticeHandlerFunc is a plugin's notice-event callback.
type NoticeHandlerFunc func(ctx context.Context, event *NoticeEvent)

// RequestHandlerFunc is a plugin's request-event callback.
type RequestHandlerFunc func(ctx context.Context, event *RequestEvent)

// DropHandlerFunc is a plugin's shutdown callback, started when the plugin
// is disabled; the plugin's tracked tasks are aborted without waiting for it
// to return (see Plugin.shutdown).
type DropHandlerFunc func(ctx context.Context)

type msgListener struct {
	kind    MsgListenKind
	handler MsgHandlerFunc
}

// Listen holds a plugin's registered callbacks, one slice per event kind
// (distilled spec §3).
type Listen struct {
	Msg     []msgListener
	Notice  []NoticeHandlerFunc
	Request []RequestHandlerFunc
	Drop    []DropHandlerFunc
	MsgSent []msgListener
}

// clear empties every listener table; called on disable (distilled spec
// §4.6(c)). Reassigning to nil (rather than truncating in place) releases
// the backing array's capacity, mirroring original_source's
// Listen::clear()'s shrink_to_fit.
func (l *Listen) clear() {
	l.Msg = nil
	l.Notice = nil
	l.Request = nil
	l.Drop = nil
	l.MsgSent = nil
}

// AccessControlMode selects whether Plugin.AccessList is a whitelist or a
// blacklist (distilled spec §3/§4.8).
type AccessControlMode string

const (
	Whitelist AccessControlMode = "WhiteList"
	Blacklist AccessControlMode = "BlackList"
)

// AccessList names the groups/friends an access-controlled plugin applies
// its mode to.
type AccessList struct {
	Groups  map[int64]struct{}
	Friends map[int64]struct{}
}

func newAccessList() AccessList {
	return AccessList{Groups: map[int64]struct{}{}, Friends: map[int64]struct{}{}}
}

// PluginMainFunc is a plugin's entry point, invoked once per enable
// transition (distilled spec §3 invariant (c)). It is expected to register
// listeners via the ambient RuntimeBot handle and return promptly; any
// long-running work it starts should go through the framework's spawn so it
// is tracked by the task manager.
type PluginMainFunc func(ctx context.Context, rb *RuntimeBot)

// Plugin is a named, independently enable/disable-able collection of
// listeners (distilled spec §3), grounded on original_source/src/plugin.rs.
type Plugin struct {
	Name    string
	Version string

	main    PluginMainFunc
	listen  Listen
	enabled *watchBool

	enableOnStartup bool
	accessControl   bool
	listMode        AccessControlMode
	accessList      AccessList

	rb *RuntimeBot
}

func newPlugin(name, version string, main PluginMainFunc) *Plugin {
	return &Plugin{
		Name:            name,
		Version:         version,
		main:            main,
		enabled:         newWatchBool(true),
		enableOnStartup: true,
		listMode:        Whitelist,
		accessList:      newAccessList(),
	}
}

// Enabled reports whether the plugin currently accepts dispatch.
func (p *Plugin) Enabled() bool { return p.enabled.Get() }

// run schedules main under the plugin's ambient context, racing it (via
// select) against the enabled flag flipping to false — mirroring
// original_source's Plugin::run's tokio::select!.
func (p *Plugin) run(ctx context.Context, tm *taskManager) {
	ctx = withAmbient(ctx, p.Name, p.rb)
	tm.spawn(ctx, func(taskCtx context.Context) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			p.main(taskCtx, p.rb)
		}()
		select {
		case <-done:
		case <-p.enabled.Changed():
		case <-taskCtx.Done():
		}
	})
}

// shutdown starts every drop callback (concurrently across callbacks, each
// under the plugin's ambient context so it can still call RuntimeBot
// methods), then, without waiting for them, tells the task manager to abort
// all of this plugin's other tracked tasks, flips enabled to false and
// clears the listen tables. Drop callbacks are run in plain goroutines, not
// task-manager-tracked, so the abort does not touch them; tracked tasks may
// therefore be aborted while drop callbacks are still running. The returned
// channel closes once every drop callback has returned.
func (p *Plugin) shutdown(ctx context.Context, tm *taskManager) <-chan struct{} {
	ambCtx := withAmbient(ctx, p.Name, p.rb)
	doneAll := make(chan struct{})

	dropCallbacks := p.listen.Drop
	go func() {
		defer close(doneAll)
		done := make(chan struct{}, len(dropCallbacks))
		for _, cb := range dropCallbacks {
			cb := cb
			go func() {
				defer func() { recover(); done <- struct{}{} }()
				cb(ambCtx)
			}()
		}
		for range dropCallbacks {
			<-done
		}
	}()

	tm.disablePlugin(p.Name)
	p.enabled.Set(false)
	p.listen.clear()

	return doneAll
}

// PluginInfo is the public, read-only view of a plugin returned by
// RuntimeBot.GetPluginList.
type PluginInfo struct {
	Name            string
	Version         string
	Enabled         bool
	EnableOnStartup bool
	AccessControl   bool
	ListMode        AccessControlMode
	AccessList      AccessList
}

func (p *Plugin) info() PluginInfo {
	return PluginInfo{
		Name:            p.Name,
		Version:         p.Version,
		Enabled:         p.Enabled(),
		EnableOnStartup: p.enableOnStartup,
		AccessControl:   p.accessControl,
		ListMode:        p.listMode,
		AccessList:      p.accessList,
	}
}

// accepts implements the access-control filter of distilled spec §4.8: when
// AccessControl is enabled, Whitelist accepts only listed groups/friends,
// Blacklist is the complement. Access control disabled always accepts.
func (p *Plugin) accepts(groupID *int64, userID int64) bool {
	if !p.accessControl {
		return true
	}
	var listed bool
	if groupID != nil {
		_, listed = p.accessList.Groups[*groupID]
	} else {
		_, listed = p.accessList.Friends[userID]
	}
	if p.listMode == Whitelist {
		return listed
	}
	return !listed
}
