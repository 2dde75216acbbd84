package kovi

import "testing"

func TestParseCQText(t *testing.T) {
	m, err := ParseCQ("hello world")
	if err != nil {
		t.Fatalf("ParseCQ: %v", err)
	}
	if !m.Equal(NewMessage("hello world")) {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestParseCQCode(t *testing.T) {
	m, err := ParseCQ("[CQ:at,qq=10]")
	if err != nil {
		t.Fatalf("ParseCQ: %v", err)
	}
	if len(m) != 1 || m[0].Type != "at" || m[0].Data["qq"] != "10" {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestParseCQMixed(t *testing.T) {
	m, err := ParseCQ("hi [CQ:face,id=1] there")
	if err != nil {
		t.Fatalf("ParseCQ: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(m), m)
	}
	if m[0].Type != "text" || m[0].Data["text"] != "hi " {
		t.Fatalf("unexpected first segment: %+v", m[0])
	}
	if m[2].Data["text"] != " there" {
		t.Fatalf("unexpected last segment: %+v", m[2])
	}
}

func TestParseCQEscapes(t *testing.T) {
	m, err := ParseCQ("a &#91;b&#93; c&#44;d &amp; e")
	if err != nil {
		t.Fatalf("ParseCQ: %v", err)
	}
	want := "a [b] c,d & e"
	if len(m) != 1 || m[0].Data["text"] != want {
		t.Fatalf("got %+v, want single text segment %q", m, want)
	}
}

func TestRenderCQText(t *testing.T) {
	got := RenderCQ(NewMessage("a, b & c"))
	want := "a&#44; b &amp; c"
	if got != want {
		t.Fatalf("RenderCQ() = %q, want %q", got, want)
	}
}

func TestRenderCQSegmentSingleKey(t *testing.T) {
	m := Message{{Type: "at", Data: map[string]any{"qq": "10"}}}
	got := RenderCQ(m)
	want := "[CQ:at,qq=10]"
	if got != want {
		t.Fatalf("RenderCQ() = %q, want %q", got, want)
	}
}

func TestCQRoundTrip(t *testing.T) {
	original := "say [CQ:at,qq=5] hi"
	m, err := ParseCQ(original)
	if err != nil {
		t.Fatalf("ParseCQ: %v", err)
	}
	rendered := RenderCQ(m)
	reparsed, err := ParseCQ(rendered)
	if err != nil {
		t.Fatalf("ParseCQ (reparse): %v", err)
	}
	if !m.Equal(reparsed) {
		t.Fatalf("round trip mismatch: %+v vs %+v", m, reparsed)
	}
}
