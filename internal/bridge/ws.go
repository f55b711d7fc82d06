package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PairingTokenHeader carries the token a companion wallet app hands out when
// the user pairs this client with it.
const PairingTokenHeader = "X-Ribbit-Pairing-Token"

// WSTransport carries envelopes as websocket text messages.
type WSTransport struct {
	*link
	conn   *websocket.Conn
	cfg    rpc.Config
	limits protocol.Limits

	writeMu sync.Mutex
}

// DialWS connects to a companion wallet at url, retrying with backoff up to
// cfg.MaxConnectAttempts. A refused pairing token is not retried.
func DialWS(ctx context.Context, url string, token string, cfg rpc.Config) (*WSTransport, error) {
	cfg = cfg.WithDefaults()
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: websocket url is empty", protocol.ErrBridgeUnavailable)
	}

	header := http.Header{}
	if token = strings.TrimSpace(token); token != "" {
		header.Set(PairingTokenHeader, token)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.ConnectTimeout,
	}

	attempts := cfg.MaxConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, resp, err := dialer.DialContext(ctx, url, header)
		if err == nil {
			log.Debug().Str("url", url).Int("attempt", attempt).Msg("bridge.ws: connected")
			return NewWSTransport(conn, cfg), nil
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s refused pairing token (status %d)", protocol.ErrBridgeUnavailable, url, resp.StatusCode)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := rpc.NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Debug().Err(err).Str("url", url).Int("attempt", attempt).Dur("retry_in", delay).Msg("bridge.ws: dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: dial %s: %v", protocol.ErrBridgeUnavailable, url, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: dial %s after %d attempt(s): %v", protocol.ErrBridgeUnavailable, url, attempts, lastErr)
}

// NewWSTransport wraps an established connection, dialed or accepted, and
// starts its read and keepalive loops.
func NewWSTransport(conn *websocket.Conn, cfg rpc.Config) *WSTransport {
	cfg = cfg.WithDefaults()
	t := &WSTransport{
		link:   newLink(0),
		conn:   conn,
		cfg:    cfg,
		limits: protocol.DefaultLimits(),
	}
	conn.SetReadLimit(int64(t.limits.MaxFrameBytes))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	go t.readLoop()
	go t.pingLoop()
	return t
}

func (t *WSTransport) Send(ctx context.Context, env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if t.closed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if uint64(len(payload)) > uint64(t.limits.MaxFrameBytes) {
		return protocol.ErrFrameTooLarge
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.shutdown(err)
		_ = t.conn.Close()
		return err
	}
	return nil
}

// Close sends a normal closure frame and releases the connection.
func (t *WSTransport) Close() error {
	if !t.shutdown(nil) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *WSTransport) readLoop() {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || t.closed() {
				t.shutdown(nil)
			} else {
				log.Warn().Err(err).Msg("bridge.ws: read failed")
				t.shutdown(err)
			}
			_ = t.conn.Close()
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.PongTimeout))
		if kind != websocket.TextMessage {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("bridge.ws: discarding non-json message")
			continue
		}
		if err := env.Validate(); err != nil {
			log.Warn().Err(err).Msg("bridge.ws: discarding invalid envelope")
			continue
		}
		if !t.deliver(env) {
			return
		}
	}
}

func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Msg("bridge.ws: ping failed")
				return
			}
		}
	}
}
