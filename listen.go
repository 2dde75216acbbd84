package kovi

// Listener registration methods on RuntimeBot — the Go analogue of
// original_source/src/bot/plugin_builder.rs's on_msg/on_admin_msg/
// on_private_msg/on_group_msg/on_all_notice/on_all_request/drop. Each simply
// appends to the Plugin this RuntimeBot was built for; no separate lock is
// needed beyond what Bot.Mount/Plugin.run already hold during registration,
// since registration only ever happens from inside PluginMainFunc, which
// runs once per enable transition before the dispatcher can observe the
// listen tables (they are read under dispatcher.run's registry snapshot,
// taken after main returns or suspends at its first yield point).

// OnMsg registers handler against every message, regardless of kind.
func (rb *RuntimeBot) OnMsg(handler MsgHandlerFunc) {
	rb.plugin.listen.Msg = append(rb.plugin.listen.Msg, msgListener{kind: AnyMsg, handler: handler})
}

// OnPrivateMsg registers handler against private (group_id absent) messages
// only.
func (rb *RuntimeBot) OnPrivateMsg(handler MsgHandlerFunc) {
	rb.plugin.listen.Msg = append(rb.plugin.listen.Msg, msgListener{kind: PrivateMsg, handler: handler})
}

// OnGroupMsg registers handler against group (group_id present) messages
// only.
func (rb *RuntimeBot) OnGroupMsg(handler MsgHandlerFunc) {
	rb.plugin.listen.Msg = append(rb.plugin.listen.Msg, msgListener{kind: GroupMsg, handler: handler})
}

// OnAdminMsg registers handler against messages from an admin (the
// configured main_admin or a member of admins) only, private or group.
func (rb *RuntimeBot) OnAdminMsg(handler MsgHandlerFunc) {
	rb.plugin.listen.Msg = append(rb.plugin.listen.Msg, msgListener{kind: AdminMsg, handler: handler})
}

// OnMsgSent registers handler against the bot's own outgoing messages, only
// ever dispatched when the Bot was constructed with WithMessageSentEvents(true).
func (rb *RuntimeBot) OnMsgSent(handler MsgHandlerFunc) {
	rb.plugin.listen.MsgSent = append(rb.plugin.listen.MsgSent, msgListener{kind: AnyMsg, handler: handler})
}

// OnNotice registers handler against every notice event.
func (rb *RuntimeBot) OnNotice(handler NoticeHandlerFunc) {
	rb.plugin.listen.Notice = append(rb.plugin.listen.Notice, handler)
}

// OnRequest registers handler against every request event.
func (rb *RuntimeBot) OnRequest(handler RequestHandlerFunc) {
	rb.plugin.listen.Request = append(rb.plugin.listen.Request, handler)
}

// OnDrop registers handler to run when this plugin is disabled. Its other
// tracked tasks are aborted at the same time, without waiting for handler
// to return (see Plugin.shutdown).
func (rb *RuntimeBot) OnDrop(handler DropHandlerFunc) {
	rb.plugin.listen.Drop = append(rb.plugin.listen.Drop, handler)
}

// SetAccessControl turns on whitelist/blacklist filtering for this plugin
// and sets its mode (distilled spec §4.8). Call from PluginMainFunc before
// returning; takes effect on the next dispatch.
func (rb *RuntimeBot) SetAccessControl(mode AccessControlMode) {
	rb.plugin.accessControl = true
	rb.plugin.listMode = mode
}

// AllowGroup adds groupID to this plugin's access list.
func (rb *RuntimeBot) AllowGroup(groupID int64) {
	rb.plugin.accessList.Groups[groupID] = struct{}{}
}

// AllowFriend adds userID to this plugin's access list.
func (rb *RuntimeBot) AllowFriend(userID int64) {
	rb.plugin.accessList.Friends[userID] = struct{}{}
}

// SetEnableOnStartup controls whether this plugin's main is re-run the next
// time the Bot starts. It reaches kovi.plugins.json only if set before
// Bot.Run writes that file (once, after starting the startup plugins).
func (rb *RuntimeBot) SetEnableOnStartup(enable bool) {
	rb.plugin.enableOnStartup = enable
}
