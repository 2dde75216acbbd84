package kovi

import (
	"encoding/json"
	"strings"
)

// Sex is the sender's reported gender.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = ""
)

// Sender describes the sender sub-object of a message event.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
	Card     string `json:"card,omitempty"`
	Sex      Sex    `json:"sex,omitempty"`
	Age      int32  `json:"age,omitempty"`
	Area     string `json:"area,omitempty"`
	Level    string `json:"level,omitempty"`
	Role     string `json:"role,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Anonymous describes an anonymous-message sub-object, present only on
// anonymous group messages.
type Anonymous struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// MsgEvent is a parsed OneBot message event (distilled spec §3).
type MsgEvent struct {
	Time        int64
	SelfID      int64
	PostType    string
	MessageType string // "private" | "group"
	SubType     string
	Message     Message
	MessageID   int32
	GroupID     *int64
	UserID      int64
	Sender      Sender
	RawMessage  string
	Font        int32
	Anonymous   *Anonymous

	// Derived fields (distilled spec §3).
	Text       *string
	HumanText  string
	OriginalJSON json.RawMessage

	rb RuntimeBotSender
}

// RuntimeBotSender is the minimal surface MsgEvent needs to fire replies; it
// is satisfied by *RuntimeBot.
type RuntimeBotSender interface {
	Send(Envelope) error
}

// attachRuntimeBot binds the RuntimeBot a reply/replyAndQuote/replyText call
// sends through; the dispatcher calls this once per plugin dispatch, since
// each plugin owns a distinct RuntimeBot handle (distilled spec §9: the
// registry is reached only through captured RuntimeBot handles).
func (e *MsgEvent) attachRuntimeBot(rb RuntimeBotSender) *MsgEvent {
	clone := *e
	clone.rb = rb
	return &clone
}

// GetText returns the derived text, or "" if the event carries no text
// segments (original_source's get_text()).
func (e *MsgEvent) GetText() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// BorrowText returns the derived text as an optional string (nil if absent).
func (e *MsgEvent) BorrowText() *string { return e.Text }

// GetSenderNickname returns the sender's nickname, or "" if absent.
func (e *MsgEvent) GetSenderNickname() string { return e.Sender.Nickname }

func (e *MsgEvent) replyBuilder(msg Message, autoEscape bool) (Envelope, error) {
	params := map[string]any{
		"message":     msg,
		"auto_escape": autoEscape,
	}
	if e.MessageType == "private" {
		params["message_type"] = "private"
		params["user_id"] = e.UserID
	} else {
		params["message_type"] = "group"
		if e.GroupID != nil {
			params["group_id"] = *e.GroupID
		}
	}
	return NewEnvelope("send_msg", params, EchoNone)
}

// Reply fires a fire-and-forget reply in the same chat the event came from.
func (e *MsgEvent) Reply(msg Message) error {
	env, err := e.replyBuilder(msg, false)
	if err != nil {
		return err
	}
	return e.rb.Send(env)
}

// ReplyText is like Reply but sends a plain string with auto_escape=true.
func (e *MsgEvent) ReplyText(text string) error {
	env, err := e.replyBuilder(NewMessage(text), true)
	if err != nil {
		return err
	}
	return e.rb.Send(env)
}

// ReplyAndQuote is like Reply but prepends a reply/quote segment referencing
// the source message.
func (e *MsgEvent) ReplyAndQuote(msg Message) error {
	quoted := msg.AddReply(e.MessageID)
	env, err := e.replyBuilder(quoted, false)
	if err != nil {
		return err
	}
	return e.rb.Send(env)
}

// NoticeEvent is a parsed OneBot notice event: the common envelope fields
// plus the raw JSON object, with subtype-specific fields reached via Get.
type NoticeEvent struct {
	Time       int64
	SelfID     int64
	PostType   string
	NoticeType string
	raw        map[string]any
	Original   json.RawMessage
}

// Get performs a dynamic lookup into the raw notice payload.
func (e *NoticeEvent) Get(key string) (any, bool) {
	v, ok := e.raw[key]
	return v, ok
}

// RequestEvent is a parsed OneBot request event, shaped like NoticeEvent.
type RequestEvent struct {
	Time        int64
	SelfID      int64
	PostType    string
	RequestType string
	raw         map[string]any
	Original    json.RawMessage
}

// Get performs a dynamic lookup into the raw request payload.
func (e *RequestEvent) Get(key string) (any, bool) {
	v, ok := e.raw[key]
	return v, ok
}

// LifecycleEvent is emitted for meta_event_type == "lifecycle"; the
// dispatcher only logs it (the bot's own identity is resolved by Bot.Run's
// startup get_login_info call).
type LifecycleEvent struct {
	SubType string
}

// internalEvent is the sum type flowing through the event channel (§4.4/§4.8).
type internalEvent struct {
	drop      bool
	lifecycle *LifecycleEvent
	msg       *MsgEvent
	notice    *NoticeEvent
	request   *RequestEvent
	// msgSent mirrors msg but is only produced when message_sent events are
	// enabled (SPEC_FULL.md §9 resolves the "message_sent" open question:
	// implemented, off by default).
	msgSent *MsgEvent
}

func dropEvent() internalEvent { return internalEvent{drop: true} }

// parserOptions controls event-parser behavior (distilled spec §4.2).
type parserOptions struct {
	allowCQString      bool
	messageSentEnabled bool
}

// parseFrame decodes one raw OneBot text frame into an internalEvent. A
// parse failure is returned as (internalEvent{}, *ParseError); the caller
// logs it and continues without producing an event. Frames that are
// deliberately ignored (heartbeat and other meta events, message_sent while
// disabled) return (internalEvent{}, nil).
func parseFrame(raw []byte, opts parserOptions) (internalEvent, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return internalEvent{}, &ParseError{Reason: "invalid JSON frame", Cause: err}
	}

	if metaType, ok := obj["meta_event_type"].(string); ok {
		switch metaType {
		case "lifecycle":
			subType, _ := obj["sub_type"].(string)
			return internalEvent{lifecycle: &LifecycleEvent{SubType: subType}}, nil
		case "heartbeat":
			return internalEvent{}, nil
		default:
			return internalEvent{}, nil
		}
	}

	postType, _ := obj["post_type"].(string)
	switch postType {
	case "message":
		ev, err := parseMsgEvent(obj, raw, opts)
		if err != nil {
			return internalEvent{}, err
		}
		return internalEvent{msg: ev}, nil
	case "message_sent":
		if !opts.messageSentEnabled {
			return internalEvent{}, nil
		}
		ev, err := parseMsgEvent(obj, raw, opts)
		if err != nil {
			return internalEvent{}, err
		}
		return internalEvent{msgSent: ev}, nil
	case "notice":
		noticeType, _ := obj["notice_type"].(string)
		return internalEvent{notice: &NoticeEvent{
			Time:       toInt64(obj["time"]),
			SelfID:     toInt64(obj["self_id"]),
			PostType:   postType,
			NoticeType: noticeType,
			raw:        obj,
			Original:   raw,
		}}, nil
	case "request":
		requestType, _ := obj["request_type"].(string)
		return internalEvent{request: &RequestEvent{
			Time:        toInt64(obj["time"]),
			SelfID:      toInt64(obj["self_id"]),
			PostType:    postType,
			RequestType: requestType,
			raw:         obj,
			Original:    raw,
		}}, nil
	default:
		return internalEvent{}, &ParseError{Reason: "unrecognized post_type " + postType}
	}
}

func parseMsgEvent(obj map[string]any, raw []byte, opts parserOptions) (*MsgEvent, error) {
	senderObj, _ := obj["sender"].(map[string]any)
	sender := Sender{
		UserID:   toInt64(senderObj["user_id"]),
		Nickname: toStr(senderObj["nickname"]),
		Card:     toStr(senderObj["card"]),
		Area:     toStr(senderObj["area"]),
		Level:    toStr(senderObj["level"]),
		Role:     toStr(senderObj["role"]),
		Title:    toStr(senderObj["title"]),
	}
	if s, ok := senderObj["sex"].(string); ok {
		switch s {
		case "male":
			sender.Sex = SexMale
		case "female":
			sender.Sex = SexFemale
		}
	}
	if age, ok := senderObj["age"]; ok {
		sender.Age = int32(toInt64(age))
	}

	var groupID *int64
	if v, ok := obj["group_id"]; ok && v != nil {
		g := toInt64(v)
		groupID = &g
	}

	msgRaw, err := json.Marshal(obj["message"])
	if err != nil {
		return nil, &ParseError{Reason: "re-marshaling message field", Cause: err}
	}
	message, err := UnmarshalMessageJSON(msgRaw, opts.allowCQString)
	if err != nil {
		return nil, err
	}

	var anon *Anonymous
	if anonObj, ok := obj["anonymous"].(map[string]any); ok {
		anon = &Anonymous{
			ID:   toInt64(anonObj["id"]),
			Name: toStr(anonObj["name"]),
			Flag: toStr(anonObj["flag"]),
		}
	}

	text := deriveText(message)

	return &MsgEvent{
		Time:         toInt64(obj["time"]),
		SelfID:       toInt64(obj["self_id"]),
		PostType:     toStr(obj["post_type"]),
		MessageType:  toStr(obj["message_type"]),
		SubType:      toStr(obj["sub_type"]),
		Message:      message,
		MessageID:    int32(toInt64(obj["message_id"])),
		GroupID:      groupID,
		UserID:       toInt64(obj["user_id"]),
		Sender:       sender,
		RawMessage:   toStr(obj["raw_message"]),
		Font:         int32(toInt64(obj["font"])),
		Anonymous:    anon,
		Text:         text,
		HumanText:    message.ToHumanString(),
		OriginalJSON: raw,
	}, nil
}

// deriveText implements distilled spec §3/§8 property 8: the concatenation
// of all text-kind segments' text fields, joined by newline and trimmed;
// absent if there are no text segments.
func deriveText(m Message) *string {
	var parts []string
	for _, seg := range m {
		if seg.Type == "text" {
			if t, ok := seg.Data["text"].(string); ok {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.TrimSpace(strings.Join(parts, "\n"))
	return &joined
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toStr(v any) string {
	s, _ := v.(string)
	return s
}
