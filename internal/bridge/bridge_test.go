package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/testutil/testlog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, tr Transport) protocol.Envelope {
	t.Helper()
	select {
	case env := <-tr.Inbound():
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing received")
		return protocol.Envelope{}
	}
}

func waitDone(t *testing.T, tr Transport) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("transport did not shut down")
	}
}

// echoPeer answers every request on tr with {"method": <method>}.
func echoPeer(tr Transport) {
	for {
		select {
		case <-tr.Done():
			return
		case env := <-tr.Inbound():
			if env.Kind != protocol.KindRequest {
				continue
			}
			reply, err := protocol.NewReply(env.ID, map[string]string{"method": string(env.Method)})
			if err != nil {
				continue
			}
			_ = tr.Send(context.Background(), reply)
		}
	}
}

func TestAvailable(t *testing.T) {
	testlog.Start(t)
	assert.False(t, Available(nil))

	a, b := Pipe()
	assert.True(t, Available(a))
	require.NoError(t, b.Close())
	assert.False(t, Available(a))
	assert.False(t, Available(b))
}

func TestPipeDeliversBothWays(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	t.Cleanup(func() { _ = a.Close() })

	req, err := protocol.NewRequest("1", protocol.MethodGetSessionStatus, 0, nil)
	require.NoError(t, err)
	require.NoError(t, a.Send(context.Background(), req))
	got := recv(t, b)
	assert.Equal(t, "1", got.ID)

	require.NoError(t, b.Send(context.Background(), protocol.NewNotification(protocol.EventWalletConnected)))
	note := recv(t, a)
	assert.Equal(t, protocol.KindNotification, note.Kind)
}

func TestPipeSendAfterClose(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err := b.Send(context.Background(), protocol.NewNotification(protocol.EventWalletConnected))
	assert.ErrorIs(t, err, ErrClosed)

	err = a.Send(context.Background(), protocol.Envelope{Kind: "bogus"})
	assert.ErrorIs(t, err, protocol.ErrInvalidEnvelope)
}

func TestCorrelatorOverPipe(t *testing.T) {
	testlog.Start(t)
	client, peer := Pipe()
	t.Cleanup(func() { _ = client.Close() })
	go echoPeer(peer)

	c := rpc.NewCorrelator(client, rpc.Config{RequestTimeout: 2 * time.Second})
	t.Cleanup(func() { _ = c.Close() })

	raw, err := c.Call(context.Background(), protocol.MethodGetWalletAddress, nil, protocol.ChainTestnet)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"getWalletAddress"}`, string(raw))

	require.NoError(t, peer.Close())
	_, err = c.Call(context.Background(), protocol.MethodGetWalletAddress, nil, protocol.ChainTestnet)
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)
}

func TestNativeTransportFrames(t *testing.T) {
	testlog.Start(t)
	hostR, clientW := io.Pipe()
	clientR, hostW := io.Pipe()

	client := NewNativeTransport(clientR, clientW, protocol.Limits{})
	host := NewNativeTransport(hostR, hostW, protocol.Limits{})
	t.Cleanup(func() {
		_ = client.Close()
		_ = host.Close()
	})
	go echoPeer(host)

	req, err := protocol.NewRequest("n-1", protocol.MethodSignMessage, protocol.ChainTestnet, map[string]string{"message": "hello"})
	require.NoError(t, err)
	require.NoError(t, client.Send(context.Background(), req))

	reply := recv(t, client)
	assert.Equal(t, protocol.KindReply, reply.Kind)
	assert.Equal(t, "n-1", reply.ID)
	assert.JSONEq(t, `{"method":"signMessage"}`, string(reply.Result))
}

func TestCorrelatorTimesOutWhenPeerStopsReading(t *testing.T) {
	testlog.Start(t)
	client, peer := Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = peer.Close()
	})

	c := rpc.NewCorrelator(client, rpc.Config{RequestTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = c.Close() })

	// enough calls to fill the peer's inbound buffer and then some
	for i := 0; i < 40; i++ {
		done := make(chan error, 1)
		go func() {
			_, err := c.Call(context.Background(), protocol.MethodGetSessionStatus, nil, 0)
			done <- err
		}()
		select {
		case err := <-done:
			require.ErrorIs(t, err, protocol.ErrRequestTimeout, "call %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("call %d still blocked; pending=%d", i, len(c.Pending()))
		}
	}
	assert.Empty(t, c.Pending())
}

func TestNativeTransportSendHonoursContextOnStalledWriter(t *testing.T) {
	testlog.Start(t)
	stdinR, stdinW := io.Pipe()
	stalledR, stalledW := io.Pipe()
	tr := NewNativeTransport(stdinR, stalledW, protocol.DefaultLimits())
	t.Cleanup(func() {
		_ = tr.Close()
		_ = stdinW.Close()
		_ = stalledR.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := tr.Send(ctx, protocol.NewNotification(protocol.EventWalletConnected))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send(context.Background(), protocol.NewNotification(protocol.EventWalletConnected)), ErrClosed)
}

func TestNativeTransportSkipsInvalidFrameAndStopsOnEOF(t *testing.T) {
	testlog.Start(t)
	var stream bytes.Buffer
	bad := []byte(`{"kind":"nope"}`)
	head := make([]byte, protocol.FrameHeaderSize)
	binary.LittleEndian.PutUint32(head, uint32(len(bad)))
	stream.Write(head)
	stream.Write(bad)
	require.NoError(t, protocol.Encode(&stream, protocol.NewNotification(protocol.EventWalletConnected), protocol.DefaultLimits()))

	tr := NewNativeTransport(&stream, io.Discard, protocol.DefaultLimits())
	note := recv(t, tr)
	assert.Equal(t, protocol.EventWalletConnected, note.Event)

	waitDone(t, tr)
	assert.NoError(t, tr.Err())
	assert.ErrorIs(t, tr.Send(context.Background(), note), ErrClosed)
}

func TestNativeTransportTruncatedStream(t *testing.T) {
	testlog.Start(t)
	head := make([]byte, protocol.FrameHeaderSize)
	binary.LittleEndian.PutUint32(head, 64)
	tr := NewNativeTransport(bytes.NewReader(append(head, '{')), io.Discard, protocol.DefaultLimits())
	waitDone(t, tr)
	assert.ErrorIs(t, tr.Err(), protocol.ErrTruncated)
}

func newWSPeer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get(PairingTokenHeader) != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peer := NewWSTransport(conn, rpc.Config{})
		echoPeer(peer)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSTransportRoundTrip(t *testing.T) {
	testlog.Start(t)
	srv := newWSPeer(t, "pair-123")

	tr, err := DialWS(context.Background(), wsURL(srv), "pair-123", rpc.Config{MaxConnectAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	c := rpc.NewCorrelator(tr, rpc.Config{RequestTimeout: 2 * time.Second})
	t.Cleanup(func() { _ = c.Close() })

	raw, err := c.Call(context.Background(), protocol.MethodGetWalletBalance, map[string]any{"decimals": 8}, protocol.ChainTestnet)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"getWalletBalance"}`, string(raw))

	require.NoError(t, tr.Close())
	waitDone(t, tr)
	assert.ErrorIs(t, tr.Send(context.Background(), protocol.NewNotification("x")), ErrClosed)
}

func TestWSDialRefusedTokenIsNotRetried(t *testing.T) {
	testlog.Start(t)
	srv := newWSPeer(t, "right")

	start := time.Now()
	_, err := DialWS(context.Background(), wsURL(srv), "wrong", rpc.Config{
		MaxConnectAttempts: 5,
		Backoff:            rpc.BackoffConfig{InitialDelay: time.Second, Multiplier: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)
	assert.Contains(t, err.Error(), "401")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWSDialUnreachableIsUnavailable(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	_, err := DialWS(context.Background(), url, "", rpc.Config{
		MaxConnectAttempts: 2,
		Backoff:            rpc.BackoffConfig{InitialDelay: 5 * time.Millisecond, Multiplier: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)
	assert.Contains(t, err.Error(), "2 attempt(s)")
}

func TestOpen(t *testing.T) {
	testlog.Start(t)
	_, err := Open(context.Background(), Options{Kind: "carrier-pigeon"})
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)

	_, err = Open(context.Background(), Options{Kind: KindWebSocket})
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)

	r, w := io.Pipe()
	tr, err := Open(context.Background(), Options{Kind: "NATIVE", Stdin: r, Stdout: io.Discard})
	require.NoError(t, err)
	assert.True(t, Available(tr))
	require.NoError(t, w.Close())
	waitDone(t, tr)
	assert.NoError(t, tr.(*NativeTransport).Err())
}
