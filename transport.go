package kovi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// apiRequest is the element type of the outbound API channel: an envelope
// plus an optional reply channel. A nil reply channel means fire-and-forget
// (echo == EchoNone), the Go analogue of original_source's
// `ApiAndOneshot = (SendApi, Option<oneshot::Sender<...>>)`.
type apiRequest struct {
	envelope Envelope
	reply    chan Reply
}

// transport owns the two long-lived WebSocket connections described in
// distilled spec §4.4, grounded on sdk/go/amityvox/bot.go's connect/
// readLoop shape but generalized to a connection pair with OneBot's
// request/reply semantics instead of a single Discord gateway socket.
type transport struct {
	eventConn *websocket.Conn
	apiConn   *websocket.Conn

	events   chan internalEvent
	apiSend  chan apiRequest
	corr     *correlator
	logger   *slog.Logger
	opts     parserOptions
}

func newTransport(logger *slog.Logger, corr *correlator, opts parserOptions) *transport {
	return &transport{
		events:  make(chan internalEvent, 32),
		apiSend: make(chan apiRequest, 32),
		corr:    corr,
		logger:  logger,
		opts:    opts,
	}
}

// buildURL constructs ws(s)://host:port/<path>, bracketing IPv6 hosts and
// passing domain/IPv4 hosts through unchanged (distilled spec §4.4).
func buildURL(cfg ServerConfig, path string) string {
	scheme := "ws"
	if cfg.Secure {
		scheme = "wss"
	}
	host := cfg.Host
	if ip := net.ParseIP(host); ip != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, cfg.Port, path)
}

func (t *transport) dial(ctx context.Context, cfg ServerConfig, path string) (*websocket.Conn, error) {
	url := buildURL(cfg, path)
	header := http.Header{}
	if cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AccessToken)
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, &TransportFailure{Endpoint: strings.TrimPrefix(path, "/"), Cause: err}
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

// connect dials both endpoints and starts the three long-running tasks
// (event reader, API reader, API writer) described in distilled spec §4.4's
// table. A connect failure on either endpoint is fatal (no reconnection).
func (t *transport) connect(ctx context.Context, cfg ServerConfig) error {
	eventConn, err := t.dial(ctx, cfg, "/event")
	if err != nil {
		return err
	}
	t.eventConn = eventConn

	apiConn, err := t.dial(ctx, cfg, "/api")
	if err != nil {
		eventConn.Close(websocket.StatusInternalError, "sibling /api dial failed")
		return err
	}
	t.apiConn = apiConn

	go t.eventReader(ctx)
	go t.apiReader(ctx)
	go t.apiWriter(ctx)

	t.logger.Info("transport connected", slog.String("event_url", buildURL(cfg, "/event")), slog.String("api_url", buildURL(cfg, "/api")))
	return nil
}

// eventReader reads /event frames and pushes parsed internalEvents onto the
// event channel; non-text frames are ignored. A read error or closure emits
// a synthetic Drop (distilled spec §4.4).
func (t *transport) eventReader(ctx context.Context) {
	defer t.emitDrop("event reader exiting")
	for {
		kind, data, err := t.eventConn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Error("event connection failed", slog.String("error", err.Error()))
			return
		}
		if kind != websocket.MessageText {
			continue
		}
		t.logger.Debug("event frame", slog.String("raw", string(data)))
		ev, err := parseFrame(data, t.opts)
		if err != nil {
			t.logger.Warn("dropping malformed event frame", slog.String("error", err.Error()))
			continue
		}
		select {
		case t.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// apiReader reads /api replies and routes them to the correlator.
func (t *transport) apiReader(ctx context.Context) {
	defer t.emitDrop("api reader exiting")
	for {
		kind, data, err := t.apiConn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Error("api connection failed", slog.String("error", err.Error()))
			return
		}
		if kind != websocket.MessageText {
			continue
		}
		t.logger.Debug("api reply frame", slog.String("raw", string(data)))
		var r Reply
		if err := json.Unmarshal(data, &r); err != nil {
			t.logger.Warn("dropping unparseable api reply", slog.String("error", err.Error()))
			continue
		}
		t.corr.deliver(r)
	}
}

// apiWriter drains the outbound API channel onto the /api connection. The
// correlator slot for a non-fire-and-forget request is already registered
// by the caller (RuntimeBot.SendAndAwait, Bot.fetchLoginInfo) before the
// request ever reaches this channel, so a reply can never race ahead of
// registration; apiWriter's own job on a write failure is to forget that
// slot again and close it, so the caller's await returns instead of hanging.
func (t *transport) apiWriter(ctx context.Context) {
	defer t.emitDrop("api writer exiting")
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.apiSend:
			data, err := json.Marshal(req.envelope)
			if err != nil {
				t.logger.Error("marshaling outbound envelope failed", slog.String("error", err.Error()))
				continue
			}
			t.logger.Info("outbound api call", slog.String("action", req.envelope.Action), slog.String("echo", req.envelope.Echo))
			if err := t.apiConn.Write(ctx, websocket.MessageText, data); err != nil {
				if req.reply != nil {
					t.corr.forget(req.envelope.Echo)
					close(req.reply)
				}
				t.logger.Error("api connection write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (t *transport) emitDrop(reason string) {
	t.logger.Debug("transport emitting drop", slog.String("reason", reason))
	select {
	case t.events <- dropEvent():
	default:
		// The event channel may already carry a pending Drop (both
		// connections failing concurrently); a second Drop is harmless but
		// unnecessary to queue twice.
	}
}

func (t *transport) close() {
	if t.eventConn != nil {
		t.eventConn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	if t.apiConn != nil {
		t.apiConn.Close(websocket.StatusNormalClosure, "shutting down")
	}
}
