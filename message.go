package kovi

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Segment is one element of a Message: a type tag plus an arbitrary data
// object. Equality is structural on (Type, Data), matching the OneBot
// segment model (original_source/src/bot/message.rs's Segment).
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Equal reports structural equality: same type and deep-equal data maps.
func (s Segment) Equal(other Segment) bool {
	return s.Type == other.Type && reflect.DeepEqual(s.Data, other.Data)
}

// TextSegment builds a "text" segment.
func TextSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// Message is an ordered sequence of Segments.
type Message []Segment

// NewMessage wraps plain text as a single-segment Message, the Go analogue
// of original_source's `impl From<&str> for Message`.
func NewMessage(text string) Message {
	return Message{TextSegment(text)}
}

// Equal reports whether two messages have the same segments in the same
// order.
func (m Message) Equal(other Message) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if !m[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// AddText appends a text segment.
func (m Message) AddText(text string) Message {
	return append(m, TextSegment(text))
}

// AddAt appends an "at" segment mentioning the given user id.
func (m Message) AddAt(userID int64) Message {
	return append(m, Segment{Type: "at", Data: map[string]any{"qq": userID}})
}

// AddFace appends a "face" segment for the given face id.
func (m Message) AddFace(id int) Message {
	return append(m, Segment{Type: "face", Data: map[string]any{"id": strconv.Itoa(id)}})
}

// AddImage appends an "image" segment referencing the given file.
func (m Message) AddImage(file string) Message {
	return append(m, Segment{Type: "image", Data: map[string]any{"file": file}})
}

// AddReply prepends a "reply" segment referencing messageID, so that quote
// decoration always leads the message (original_source's add_reply inserts
// at index 0, unlike every other Add* which appends).
func (m Message) AddReply(messageID int32) Message {
	seg := Segment{Type: "reply", Data: map[string]any{"id": strconv.Itoa(int(messageID))}}
	out := make(Message, 0, len(m)+1)
	out = append(out, seg)
	out = append(out, m...)
	return out
}

// AddSegment appends an arbitrary, caller-built segment.
func (m Message) AddSegment(s Segment) Message {
	return append(m, s)
}

// ToHumanString renders the message for logging only: text segments render
// verbatim, every other segment renders as "[<type>]". Callers must never
// parse this form back into a Message.
func (m Message) ToHumanString() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			if t, ok := seg.Data["text"].(string); ok {
				b.WriteString(t)
				continue
			}
		}
		b.WriteByte('[')
		b.WriteString(seg.Type)
		b.WriteByte(']')
	}
	return b.String()
}

// Contains reports whether any segment has the given type.
func (m Message) Contains(segType string) bool {
	for _, seg := range m {
		if seg.Type == segType {
			return true
		}
	}
	return false
}

// Get returns the first segment with the given type, if any.
func (m Message) Get(segType string) (Segment, bool) {
	for _, seg := range m {
		if seg.Type == segType {
			return seg, true
		}
	}
	return Segment{}, false
}

// UnmarshalMessageJSON normalizes a raw JSON "message" field, which OneBot
// allows to be either an array of segments or a flat CQ string, into a
// segment array (distilled spec §4.2 / §4.3).
func UnmarshalMessageJSON(raw json.RawMessage, allowCQString bool) (Message, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return Message{}, &ParseError{Reason: "empty message field"}
	}
	if trimmed[0] == '[' {
		var segs []Segment
		if err := json.Unmarshal(raw, &segs); err != nil {
			return nil, &ParseError{Reason: "decoding segment array", Cause: err}
		}
		return Message(segs), nil
	}
	if trimmed[0] == '"' {
		if !allowCQString {
			return nil, &ParseError{Reason: "flat CQ-string message rejected (CQ string support disabled)"}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ParseError{Reason: "decoding CQ string", Cause: err}
		}
		return ParseCQ(s)
	}
	return nil, &ParseError{Reason: "message field is neither an array nor a string"}
}
