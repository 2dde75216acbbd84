package kovi

import "context"

// This file is the convenience-wrapper surface of distilled spec §4.9,
// grounded on the full OneBot action enumeration in
// original_source/src/bot/runtimebot/onebot_api.rs, in the wrapper style of
// sdk/go/amityvox/client.go: one small method per action, each building a
// params object and routing through Send or SendAndAwait.

// SendPrivateMsg sends a private message, fire-and-forget.
func (rb *RuntimeBot) SendPrivateMsg(userID int64, msg Message) error {
	env, err := NewEnvelope("send_msg", map[string]any{
		"message_type": "private",
		"user_id":      userID,
		"message":      msg,
		"auto_escape":  false,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SendGroupMsg sends a group message, fire-and-forget.
func (rb *RuntimeBot) SendGroupMsg(groupID int64, msg Message) error {
	env, err := NewEnvelope("send_msg", map[string]any{
		"message_type": "group",
		"group_id":     groupID,
		"message":      msg,
		"auto_escape":  false,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// DeleteMsg recalls a previously sent message.
func (rb *RuntimeBot) DeleteMsg(messageID int32) error {
	env, err := NewEnvelope("delete_msg", map[string]any{"message_id": messageID}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SendLike sends "poke"-style profile likes to a user.
func (rb *RuntimeBot) SendLike(userID int64, times int) error {
	env, err := NewEnvelope("send_like", map[string]any{"user_id": userID, "times": times}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupKick removes a member from a group.
func (rb *RuntimeBot) SetGroupKick(groupID, userID int64, rejectAddRequest bool) error {
	env, err := NewEnvelope("set_group_kick", map[string]any{
		"group_id": groupID, "user_id": userID, "reject_add_request": rejectAddRequest,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupBan mutes a member for durationSeconds (0 lifts the mute).
func (rb *RuntimeBot) SetGroupBan(groupID, userID int64, durationSeconds int64) error {
	env, err := NewEnvelope("set_group_ban", map[string]any{
		"group_id": groupID, "user_id": userID, "duration": durationSeconds,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupWholeBan mutes or unmutes an entire group.
func (rb *RuntimeBot) SetGroupWholeBan(groupID int64, enable bool) error {
	env, err := NewEnvelope("set_group_whole_ban", map[string]any{"group_id": groupID, "enable": enable}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupAdmin grants or revokes group admin status.
func (rb *RuntimeBot) SetGroupAdmin(groupID, userID int64, enable bool) error {
	env, err := NewEnvelope("set_group_admin", map[string]any{
		"group_id": groupID, "user_id": userID, "enable": enable,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupCard sets a member's group-local nickname (card).
func (rb *RuntimeBot) SetGroupCard(groupID, userID int64, card string) error {
	env, err := NewEnvelope("set_group_card", map[string]any{
		"group_id": groupID, "user_id": userID, "card": card,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupName renames a group.
func (rb *RuntimeBot) SetGroupName(groupID int64, name string) error {
	env, err := NewEnvelope("set_group_name", map[string]any{"group_id": groupID, "group_name": name}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupLeave leaves a group (optionally dismissing it, if owner).
func (rb *RuntimeBot) SetGroupLeave(groupID int64, isDismiss bool) error {
	env, err := NewEnvelope("set_group_leave", map[string]any{"group_id": groupID, "is_dismiss": isDismiss}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupSpecialTitle sets a member's special title in a group.
func (rb *RuntimeBot) SetGroupSpecialTitle(groupID, userID int64, title string) error {
	env, err := NewEnvelope("set_group_special_title", map[string]any{
		"group_id": groupID, "user_id": userID, "special_title": title,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetFriendAddRequest approves or rejects a friend request by flag.
func (rb *RuntimeBot) SetFriendAddRequest(flag string, approve bool, remark string) error {
	env, err := NewEnvelope("set_friend_add_request", map[string]any{
		"flag": flag, "approve": approve, "remark": remark,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SetGroupAddRequest approves or rejects a group join/invite request by flag.
func (rb *RuntimeBot) SetGroupAddRequest(flag, subType string, approve bool, reason string) error {
	env, err := NewEnvelope("set_group_add_request", map[string]any{
		"flag": flag, "sub_type": subType, "approve": approve, "reason": reason,
	}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// CleanCache requests the OneBot implementation purge its media cache.
func (rb *RuntimeBot) CleanCache() error {
	env, err := NewEnvelope("clean_cache", map[string]any{}, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// --- Parsed-return APIs (SendAndAwait wrappers) ---

// GetLoginInfo returns the bot's own user_id and nickname.
func (rb *RuntimeBot) GetLoginInfo(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_login_info", map[string]any{})
}

// GetStrangerInfo returns public profile info for a user.
func (rb *RuntimeBot) GetStrangerInfo(ctx context.Context, userID int64, noCache bool) (Reply, error) {
	return rb.call(ctx, "get_stranger_info", map[string]any{"user_id": userID, "no_cache": noCache})
}

// GetFriendList returns the bot's friend list.
func (rb *RuntimeBot) GetFriendList(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_friend_list", map[string]any{})
}

// GetGroupInfo returns info about a group.
func (rb *RuntimeBot) GetGroupInfo(ctx context.Context, groupID int64, noCache bool) (Reply, error) {
	return rb.call(ctx, "get_group_info", map[string]any{"group_id": groupID, "no_cache": noCache})
}

// GetGroupList returns the bot's group list.
func (rb *RuntimeBot) GetGroupList(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_group_list", map[string]any{})
}

// GetGroupMemberInfo returns info about one group member.
func (rb *RuntimeBot) GetGroupMemberInfo(ctx context.Context, groupID, userID int64, noCache bool) (Reply, error) {
	return rb.call(ctx, "get_group_member_info", map[string]any{"group_id": groupID, "user_id": userID, "no_cache": noCache})
}

// GetGroupMemberList returns every member of a group.
func (rb *RuntimeBot) GetGroupMemberList(ctx context.Context, groupID int64) (Reply, error) {
	return rb.call(ctx, "get_group_member_list", map[string]any{"group_id": groupID})
}

// GetGroupHonorInfo returns honor-board info (talkative/performer/legend/...).
func (rb *RuntimeBot) GetGroupHonorInfo(ctx context.Context, groupID int64, honorType string) (Reply, error) {
	return rb.call(ctx, "get_group_honor_info", map[string]any{"group_id": groupID, "type": honorType})
}

// GetMsg retrieves a previously sent or received message by id.
func (rb *RuntimeBot) GetMsg(ctx context.Context, messageID int32) (Reply, error) {
	return rb.call(ctx, "get_msg", map[string]any{"message_id": messageID})
}

// GetForwardMsg retrieves the content of a forwarded-message node.
func (rb *RuntimeBot) GetForwardMsg(ctx context.Context, id string) (Reply, error) {
	return rb.call(ctx, "get_forward_msg", map[string]any{"id": id})
}

// GetCredentials returns cookies and csrf token together.
func (rb *RuntimeBot) GetCredentials(ctx context.Context, domain string) (Reply, error) {
	return rb.call(ctx, "get_credentials", map[string]any{"domain": domain})
}

// GetCookies returns cookies for domain.
func (rb *RuntimeBot) GetCookies(ctx context.Context, domain string) (Reply, error) {
	return rb.call(ctx, "get_cookies", map[string]any{"domain": domain})
}

// GetCsrfToken returns the current csrf token (bkn).
func (rb *RuntimeBot) GetCsrfToken(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_csrf_token", map[string]any{})
}

// GetRecord transcodes a voice record file to outFormat.
func (rb *RuntimeBot) GetRecord(ctx context.Context, file, outFormat string) (Reply, error) {
	return rb.call(ctx, "get_record", map[string]any{"file": file, "out_format": outFormat})
}

// GetImage returns local info about a received image file.
func (rb *RuntimeBot) GetImage(ctx context.Context, file string) (Reply, error) {
	return rb.call(ctx, "get_image", map[string]any{"file": file})
}

// GetStatus returns the OneBot implementation's online/good status.
func (rb *RuntimeBot) GetStatus(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_status", map[string]any{})
}

// GetVersionInfo returns implementation name/version/protocol info.
func (rb *RuntimeBot) GetVersionInfo(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "get_version_info", map[string]any{})
}

// CanSendImage reports whether the implementation can send images.
func (rb *RuntimeBot) CanSendImage(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "can_send_image", map[string]any{})
}

// CanSendRecord reports whether the implementation can send voice records.
func (rb *RuntimeBot) CanSendRecord(ctx context.Context) (Reply, error) {
	return rb.call(ctx, "can_send_record", map[string]any{})
}

// --- Generic extension points for vendor-specific actions ---

// SendAPI is the fire-and-forget generic extension point: any action name
// and params the core doesn't wrap explicitly.
func (rb *RuntimeBot) SendAPI(action string, params map[string]any) error {
	env, err := NewEnvelope(action, params, EchoNone)
	if err != nil {
		return err
	}
	return rb.Send(env)
}

// SendAPIReturn is the parsed-return generic extension point.
func (rb *RuntimeBot) SendAPIReturn(ctx context.Context, action string, params map[string]any) (Reply, error) {
	return rb.call(ctx, action, params)
}

func (rb *RuntimeBot) call(ctx context.Context, action string, params map[string]any) (Reply, error) {
	env, err := NewEnvelope(action, params, rb.newEchoOrPanic())
	if err != nil {
		return Reply{}, err
	}
	return rb.SendAndAwait(ctx, env)
}
