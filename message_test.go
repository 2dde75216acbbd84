package kovi

import (
	"encoding/json"
	"testing"
)

func TestSegmentEqual(t *testing.T) {
	a := TextSegment("hi")
	b := TextSegment("hi")
	c := TextSegment("bye")
	if !a.Equal(b) {
		t.Fatal("expected identical text segments to be equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different text segments to be unequal")
	}
}

func TestMessageBuilders(t *testing.T) {
	m := NewMessage("hello ").AddAt(42).AddFace(7).AddImage("cat.png")
	if len(m) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(m))
	}
	if m[1].Type != "at" || m[1].Data["qq"].(int64) != 42 {
		t.Fatalf("unexpected at segment: %+v", m[1])
	}
	if m[2].Data["id"] != "7" {
		t.Fatalf("expected face id stringified, got %+v", m[2].Data)
	}
}

func TestAddReplyPrepends(t *testing.T) {
	m := NewMessage("body").AddReply(99)
	if len(m) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(m))
	}
	if m[0].Type != "reply" || m[0].Data["id"] != "99" {
		t.Fatalf("expected reply segment first, got %+v", m[0])
	}
	if m[1].Type != "text" {
		t.Fatalf("expected original text segment second, got %+v", m[1])
	}
}

func TestToHumanString(t *testing.T) {
	m := NewMessage("hi ").AddAt(1).AddText("!")
	got := m.ToHumanString()
	want := "hi [at]!"
	if got != want {
		t.Fatalf("ToHumanString() = %q, want %q", got, want)
	}
}

func TestMessageContainsAndGet(t *testing.T) {
	m := NewMessage("x").AddImage("a.png")
	if !m.Contains("image") {
		t.Fatal("expected Contains(\"image\") true")
	}
	if m.Contains("face") {
		t.Fatal("expected Contains(\"face\") false")
	}
	seg, ok := m.Get("image")
	if !ok || seg.Data["file"] != "a.png" {
		t.Fatalf("unexpected Get result: %+v, %v", seg, ok)
	}
}

func TestUnmarshalMessageJSONArray(t *testing.T) {
	raw := json.RawMessage(`[{"type":"text","data":{"text":"hi"}}]`)
	m, err := UnmarshalMessageJSON(raw, true)
	if err != nil {
		t.Fatalf("UnmarshalMessageJSON: %v", err)
	}
	if !m.Equal(NewMessage("hi")) {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestUnmarshalMessageJSONCQString(t *testing.T) {
	raw := json.RawMessage(`"hi [CQ:at,qq=10] there"`)
	m, err := UnmarshalMessageJSON(raw, true)
	if err != nil {
		t.Fatalf("UnmarshalMessageJSON: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(m), m)
	}
	if m[1].Type != "at" || m[1].Data["qq"] != "10" {
		t.Fatalf("unexpected at segment: %+v", m[1])
	}
}

func TestUnmarshalMessageJSONCQStringDisallowed(t *testing.T) {
	raw := json.RawMessage(`"plain cq string"`)
	_, err := UnmarshalMessageJSON(raw, false)
	if err == nil {
		t.Fatal("expected error when CQ string support is disabled")
	}
	var parseErr *ParseError
	if !asParseError(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestUnmarshalMessageJSONEmpty(t *testing.T) {
	if _, err := UnmarshalMessageJSON(json.RawMessage(``), true); err == nil {
		t.Fatal("expected error for empty message field")
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}
