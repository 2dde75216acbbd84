package kovi

import "testing"

func TestBuildURLPlainHost(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	got := buildURL(cfg, "/event")
	want := "ws://127.0.0.1:8081/event"
	if got != want {
		t.Fatalf("buildURL() = %q, want %q", got, want)
	}
}

func TestBuildURLSecure(t *testing.T) {
	cfg := ServerConfig{Host: "example.test", Port: 443, Secure: true}
	got := buildURL(cfg, "/api")
	want := "wss://example.test:443/api"
	if got != want {
		t.Fatalf("buildURL() = %q, want %q", got, want)
	}
}

func TestBuildURLBracketsIPv6(t *testing.T) {
	cfg := ServerConfig{Host: "::1", Port: 8081}
	got := buildURL(cfg, "/event")
	want := "ws://[::1]:8081/event"
	if got != want {
		t.Fatalf("buildURL() = %q, want %q", got, want)
	}
}

func TestEmitDropDoesNotBlockWhenChannelFull(t *testing.T) {
	tr := newTransport(testLogger(), newCorrelator(testLogger()), defaultParserOptions())
	for i := 0; i < cap(tr.events); i++ {
		tr.events <- internalEvent{}
	}
	// Must not block even though the channel is saturated.
	tr.emitDrop("test")
}
