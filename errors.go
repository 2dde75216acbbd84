package kovi

import "fmt"

// ParseError indicates a malformed inbound OneBot frame: invalid JSON, a
// missing required field, or a disallowed flat-CQ payload. The dispatch loop
// logs it and continues; it never reaches plugin code.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kovi: parse error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("kovi: parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// PluginNotFound is returned by registry operations (Enable, Disable,
// IsPluginEnabled, ...) that target a name not present in the registry.
type PluginNotFound struct {
	Name string
}

func (e *PluginNotFound) Error() string {
	return fmt.Sprintf("kovi: plugin not found: %q", e.Name)
}

// DuplicatePlugin is returned by Mount when a plugin name is already
// registered (distilled spec §4.6: "Mount rejects duplicate names").
type DuplicatePlugin struct {
	Name string
}

func (e *DuplicatePlugin) Error() string {
	return fmt.Sprintf("kovi: plugin already mounted: %q", e.Name)
}

// TransportFailure wraps a connection-level error on either the /event or
// /api WebSocket. It is always fatal to the process: the transport emits a
// synthetic Drop and does not attempt to reconnect.
type TransportFailure struct {
	Endpoint string // "event" or "api"
	Cause    error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("kovi: transport failure on /%s: %v", e.Endpoint, e.Cause)
}

func (e *TransportFailure) Unwrap() error { return e.Cause }

// ErrChannelClosed indicates an internal channel (event, API, or a reply
// slot) was closed out from under a caller. Fire-and-forget senders drop the
// message silently and log it; send_and_await callers receive this error.
type ErrChannelClosed struct {
	Channel string
}

func (e *ErrChannelClosed) Error() string {
	return fmt.Sprintf("kovi: channel closed: %s", e.Channel)
}

// CronExprInvalid is surfaced to the plugin at registration time; no
// background task is spawned when this error is returned.
type CronExprInvalid struct {
	Expr  string
	Cause error
}

func (e *CronExprInvalid) Error() string {
	return fmt.Sprintf("kovi: invalid cron expression %q: %v", e.Expr, e.Cause)
}

func (e *CronExprInvalid) Unwrap() error { return e.Cause }
