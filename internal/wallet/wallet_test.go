package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method  protocol.Method
	params  json.RawMessage
	chainID int64
}

// fakeCaller answers calls from per-method handlers.
type fakeCaller struct {
	mu        sync.Mutex
	down      bool
	handlers  map[protocol.Method]func(params json.RawMessage) (json.RawMessage, error)
	calls     []recordedCall
	observers map[string][]func()
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		handlers:  map[protocol.Method]func(json.RawMessage) (json.RawMessage, error){},
		observers: map[string][]func(){},
	}
}

func (f *fakeCaller) reply(method protocol.Method, body string) {
	f.handle(method, func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func (f *fakeCaller) fail(method protocol.Method, err error) {
	f.handle(method, func(json.RawMessage) (json.RawMessage, error) {
		return nil, err
	})
}

func (f *fakeCaller) handle(method protocol.Method, fn func(json.RawMessage) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

func (f *fakeCaller) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeCaller) Call(_ context.Context, method protocol.Method, params any, chainID int64) (json.RawMessage, error) {
	encoded, _ := json.Marshal(params)
	f.mu.Lock()
	if f.down {
		f.mu.Unlock()
		return nil, protocol.ErrBridgeUnavailable
	}
	f.calls = append(f.calls, recordedCall{method: method, params: encoded, chainID: chainID})
	fn := f.handlers[method]
	f.mu.Unlock()
	if fn == nil {
		return json.RawMessage(`{}`), nil
	}
	return fn(encoded)
}

func (f *fakeCaller) Subscribe(event string, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers[event] = append(f.observers[event], fn)
	idx := len(f.observers[event]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.observers[event][idx] = nil
	}
}

func (f *fakeCaller) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *fakeCaller) push(event string) {
	f.mu.Lock()
	list := append([]func(){}, f.observers[event]...)
	f.mu.Unlock()
	for _, fn := range list {
		if fn != nil {
			fn()
		}
	}
}

func (f *fakeCaller) callCount(method protocol.Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakeCaller) lastCall(method protocol.Method) (recordedCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i], true
		}
	}
	return recordedCall{}, false
}

func testMetadata() DappMetadata {
	return DefaultDappMetadata("https://demo.ribbit.test")
}

func connected(t *testing.T, f *fakeCaller) *Manager {
	t.Helper()
	f.reply(protocol.MethodConnect, `{"approved":true,"sessionId":"abc","accounts":["0x1"],"chainId":6}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })
	_, err := m.Connect(context.Background(), testMetadata())
	require.NoError(t, err)
	require.Equal(t, StateConnected, m.State())
	return m
}

func TestCanonicalSessionIDTable(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, []string{"", "null", "undefined", "0", "false", "true", "NaN"}, NoSessionSentinels())
	assert.Len(t, noSession, len(NoSessionSentinels()))

	mutated := NoSessionSentinels()
	mutated[1] = "session-1"
	_, active := CanonicalSessionID("null")
	assert.False(t, active)

	for _, raw := range NoSessionSentinels() {
		id, active := CanonicalSessionID(raw)
		assert.False(t, active, "%q", raw)
		assert.Empty(t, id)
	}
	for _, raw := range []string{"   ", "\tnull\n", " NaN "} {
		_, active := CanonicalSessionID(raw)
		assert.False(t, active, "%q", raw)
	}
	for _, raw := range []string{"abc", " s-1 ", "00", "NULL", "1"} {
		_, active := CanonicalSessionID(raw)
		assert.True(t, active, "%q", raw)
	}
	id, _ := CanonicalSessionID("  abc ")
	assert.Equal(t, "abc", id)
}

func TestRefreshStatusSentinelsDisconnect(t *testing.T) {
	testlog.Start(t)
	replies := []string{
		`{}`,
		`{"sessionId":null}`,
		`null`,
		`{"sessionId":0}`,
		`{"sessionId":false}`,
		`{"sessionId":true}`,
		`0`,
		`true`,
	}
	for _, s := range NoSessionSentinels() {
		encoded, _ := json.Marshal(map[string]string{"sessionId": s})
		replies = append(replies, string(encoded))
		bare, _ := json.Marshal(s)
		replies = append(replies, string(bare))
	}

	for _, body := range replies {
		t.Run(body, func(t *testing.T) {
			f := newFakeCaller()
			m := connected(t, f)
			f.reply(protocol.MethodGetSessionStatus, body)

			sess, err := m.RefreshStatus(context.Background())
			require.NoError(t, err)
			assert.False(t, sess.Connected)
			assert.Equal(t, StateDisconnected, m.State())
			assert.Empty(t, m.Snapshot().SessionID)
		})
	}
}

func TestRefreshStatusActiveIDsConnect(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		`{"sessionId":"abc"}`:                      "abc",
		`{"sessionId":" xyz ","accounts":["0x2"]}`: "xyz",
		`{"sessionId":42}`:                         "42",
		`"bare-id"`:                                "bare-id",
	}
	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			f := newFakeCaller()
			f.reply(protocol.MethodGetSessionStatus, body)
			m := NewManager(f, Config{})
			t.Cleanup(func() { _ = m.Close() })

			sess, err := m.RefreshStatus(context.Background())
			require.NoError(t, err)
			assert.True(t, sess.Connected)
			assert.Equal(t, want, sess.SessionID)
			assert.Equal(t, protocol.ChainTestnet, sess.ChainID)
			assert.Equal(t, StateConnected, m.State())
		})
	}
}

func TestRefreshKeepsAccountsForSameSession(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"abc"}`)
	sess, err := m.RefreshStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1"}, sess.Accounts)
	assert.Equal(t, int64(6), sess.ChainID)

	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"other","chainId":8}`)
	sess, err = m.RefreshStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sess.Accounts)
	assert.Equal(t, protocol.ChainMainnet, sess.ChainID)
}

func TestConnectApprovalIsStrict(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		body string
		msg  string
	}{
		{`{"sessionId":"abc","accounts":["0x1"]}`, protocol.ExtensionNotAvailable},
		{`{"approved":"true","sessionId":"abc","accounts":["0x1"]}`, protocol.ExtensionNotAvailable},
		{`{"approved":1,"sessionId":"abc","accounts":["0x1"]}`, protocol.ExtensionNotAvailable},
		{`{"approved":false,"message":"closed popup"}`, "closed popup"},
		{`{"approved":false,"error":"denied","message":"ignored"}`, "denied"},
		{`{"approved":false,"error":"  ","message":"fallback"}`, "fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			f := newFakeCaller()
			f.reply(protocol.MethodConnect, tc.body)
			m := NewManager(f, Config{})
			t.Cleanup(func() { _ = m.Close() })

			_, err := m.Connect(context.Background(), testMetadata())
			require.ErrorIs(t, err, protocol.ErrUserRejected)
			msg, ok := protocol.RejectionMessage(err)
			require.True(t, ok)
			assert.Equal(t, tc.msg, msg)
			assert.Equal(t, StateDisconnected, m.State())
		})
	}
}

func TestConnectApprovedWithoutSessionIsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, body := range []string{
		`{"approved":true,"accounts":["0x1"]}`,
		`{"approved":true,"sessionId":"undefined","accounts":["0x1"]}`,
		`{"approved":true,"sessionId":"abc"}`,
		`[1,2]`,
		`not json`,
	} {
		f := newFakeCaller()
		f.reply(protocol.MethodConnect, body)
		m := NewManager(f, Config{})
		_, err := m.Connect(context.Background(), testMetadata())
		assert.ErrorIs(t, err, protocol.ErrMalformedResponse, body)
		assert.False(t, m.Snapshot().Connected)
		_ = m.Close()
	}
}

func TestConnectWhileConnectedSkipsBridge(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	sess, err := m.Connect(context.Background(), testMetadata())
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.SessionID)
	assert.Equal(t, 1, f.callCount(protocol.MethodConnect))
}

func TestConnectRejectsInvalidMetadata(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.Connect(context.Background(), DappMetadata{Name: "x", URL: "/relative"})
	assert.ErrorIs(t, err, ErrInvalidMetadata)
	assert.Equal(t, 0, f.callCount(protocol.MethodConnect))
}

func TestConnectingStateAndPendingRefresh(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	release := make(chan struct{})
	entered := make(chan struct{})
	f.handle(protocol.MethodConnect, func(json.RawMessage) (json.RawMessage, error) {
		close(entered)
		<-release
		return json.RawMessage(`{"approved":true,"sessionId":"abc","accounts":["0x1"],"chainId":6}`), nil
	})
	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"null"}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), testMetadata())
		done <- err
	}()
	<-entered
	assert.Equal(t, StateConnecting, m.State())
	assert.False(t, m.Snapshot().Connected)

	_, err := m.Connect(context.Background(), testMetadata())
	assert.ErrorIs(t, err, ErrConnectInProgress)

	_, err = m.RefreshStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, m.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateConnected, m.State())
}

func TestBridgeUnavailable(t *testing.T) {
	testlog.Start(t)
	m := NewManager(nil, Config{})
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.Connect(context.Background(), testMetadata())
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)

	sess, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, sess.Connected)
	require.NoError(t, m.Disconnect(context.Background()))
}

func TestBridgeLossClearsSession(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	f.setDown(true)
	_, err := m.WalletBalance(context.Background(), DefaultBalanceRequest())
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestCallFailureOtherThanUnavailableKeepsSession(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	f.fail(protocol.MethodGetSessionStatus, protocol.ErrRequestTimeout)
	_, err := m.RefreshStatus(context.Background())
	assert.ErrorIs(t, err, protocol.ErrRequestTimeout)
	assert.Equal(t, StateConnected, m.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, StateDisconnected, m.State())
	require.NoError(t, m.Disconnect(context.Background()))
	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, StateDisconnected, m.State())

	fresh := NewManager(newFakeCaller(), Config{})
	require.NoError(t, fresh.Disconnect(context.Background()))
	require.NoError(t, fresh.Close())
}

func TestDisconnectClearsEvenWhenBridgeFails(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)
	f.fail(protocol.MethodDisconnect, protocol.ErrRequestTimeout)

	err := m.Disconnect(context.Background())
	assert.ErrorIs(t, err, protocol.ErrRequestTimeout)
	assert.Equal(t, StateDisconnected, m.State())
	assert.NoError(t, m.Disconnect(context.Background()))

	g := newFakeCaller()
	n := connected(t, g)
	g.setDown(true)
	require.NoError(t, n.Disconnect(context.Background()))
	assert.Equal(t, StateDisconnected, n.State())
}

func TestReconnectNotificationRefreshesUntilClose(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"pushed","accounts":["0x9"],"chainId":6}`)
	m := NewManager(f, Config{})

	f.push(protocol.EventWalletConnected)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, "pushed", m.Snapshot().SessionID)
	assert.Equal(t, 1, f.callCount(protocol.MethodGetSessionStatus))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	f.push(protocol.EventWalletConnected)
	assert.Equal(t, 1, f.callCount(protocol.MethodGetSessionStatus))
}

func TestOnChangeSkipsOvertakenChanges(t *testing.T) {
	testlog.Start(t)
	m := NewManager(newFakeCaller(), Config{})
	t.Cleanup(func() { _ = m.Close() })

	var seen []Session
	m.OnChange(func(s Session) { seen = append(seen, s) })

	// a refresh writes Connected, a disconnect overtakes it, and the
	// refresh's delivery arrives last
	m.mu.Lock()
	connected, first := m.setLocked(StateConnected, Session{SessionID: "abc", ChainID: 6})
	cleared, second := m.setLocked(StateDisconnected, Session{})
	m.mu.Unlock()
	m.emit(cleared, second)
	m.emit(connected, first)

	require.Len(t, seen, 1)
	assert.False(t, seen[0].Connected)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestOnChangeLastDeliveryMatchesState(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"abc","accounts":["0x1"],"chainId":6}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })

	var mu sync.Mutex
	var last Session
	m.OnChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		last = s
	})

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.RefreshStatus(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = m.Disconnect(context.Background())
		}()
		wg.Wait()

		mu.Lock()
		got := last.Connected
		mu.Unlock()
		assert.Equal(t, m.State() == StateConnected, got, "round %d", i)
	}
}

func TestOnChangeObservesTransitions(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	f.reply(protocol.MethodConnect, `{"approved":true,"sessionId":"abc","accounts":["0x1"],"chainId":6}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })

	var mu sync.Mutex
	var seen []bool
	stop := m.OnChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Connected)
	})

	_, err := m.Connect(context.Background(), testMetadata())
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(context.Background()))
	stop()
	stop()
	require.NoError(t, m.Disconnect(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false}, seen)
}

func TestQueriesRequireSession(t *testing.T) {
	testlog.Start(t)
	m := NewManager(newFakeCaller(), Config{})
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	_, err := m.WalletAddress(ctx, 0)
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
	_, err = m.WalletBalance(ctx, DefaultBalanceRequest())
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
	_, err = m.SignMessage(ctx, NewSignMessageRequest("hi", time.Now()))
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
	_, err = m.SignAndSendRawTransaction(ctx, RawTxnSubmission{RawTxn: "AA=="})
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
}

func TestWalletAddress(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	f.reply(protocol.MethodGetWalletAddress, `"0xabc"`)
	addr, err := m.WalletAddress(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)
	call, ok := f.lastCall(protocol.MethodGetWalletAddress)
	require.True(t, ok)
	assert.Equal(t, protocol.ChainTestnet, call.chainID)
	assert.JSONEq(t, `{"chainId":6}`, string(call.params))

	f.reply(protocol.MethodGetWalletAddress, `{"address":"0xdef"}`)
	addr, err = m.WalletAddress(context.Background(), protocol.ChainMainnet)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", addr)

	f.reply(protocol.MethodGetWalletAddress, `{"error":"locked"}`)
	_, err = m.WalletAddress(context.Background(), 0)
	assert.ErrorIs(t, err, protocol.ErrUserRejected)

	f.reply(protocol.MethodGetWalletAddress, `{}`)
	_, err = m.WalletAddress(context.Background(), 0)
	assert.ErrorIs(t, err, protocol.ErrMalformedResponse)
}

func TestSignMessage(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	m := connected(t, f)

	req := NewSignMessageRequest("Hello Ribbit", time.UnixMilli(1700000000123))
	assert.Equal(t, "Hello Ribbit at 1700000000123", req.Message)
	assert.Equal(t, int64(1700000000123), req.Nonce)

	f.reply(protocol.MethodSignMessage, `{"approved":true,"signature":"0xsig"}`)
	res, err := m.SignMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SignedResult{Approved: true, Signature: "0xsig"}, res)
	call, _ := f.lastCall(protocol.MethodSignMessage)
	assert.JSONEq(t, `{"message":"Hello Ribbit at 1700000000123","nonce":1700000000123,"chainId":6}`, string(call.params))

	f.reply(protocol.MethodSignMessage, `{"approved":false}`)
	res, err = m.SignMessage(context.Background(), req)
	assert.ErrorIs(t, err, protocol.ErrUserRejected)
	assert.Equal(t, SignedResult{Error: protocol.ExtensionNotAvailable}, res)
	assert.Equal(t, StateConnected, m.State())
}

func TestEndToEndConnectBalanceDisconnect(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"undefined"}`)
	f.reply(protocol.MethodConnect, `{"sessionId":"abc","accounts":["0x1"],"chainId":6,"approved":true}`)
	f.reply(protocol.MethodGetWalletBalance, `{"balance":"12.5"}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	sess, err := m.Start(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Connected)

	sess, err = m.Connect(ctx, testMetadata())
	require.NoError(t, err)
	assert.Equal(t, Session{SessionID: "abc", Accounts: []string{"0x1"}, ChainID: 6, Connected: true}, sess)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, "Supra Testnet", sess.ChainLabel())

	bal, err := m.WalletBalance(ctx, BalanceRequest{ChainID: 6, ResourceType: "<0x1::supra_coin::SupraCoin>", Decimals: 8})
	require.NoError(t, err)
	assert.Equal(t, "12.5", bal.Amount)
	assert.InDelta(t, 12.5, bal.Value, 1e-9)
	call, _ := f.lastCall(protocol.MethodGetWalletBalance)
	assert.JSONEq(t, `{"chainId":6,"resourceType":"<0x1::supra_coin::SupraCoin>","decimals":8}`, string(call.params))

	require.NoError(t, m.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, Session{}, m.Snapshot())
}

func TestSnapshotReadsDuringWrites(t *testing.T) {
	testlog.Start(t)
	f := newFakeCaller()
	f.reply(protocol.MethodGetSessionStatus, `{"sessionId":"abc","accounts":["0x1"]}`)
	m := NewManager(f, Config{})
	t.Cleanup(func() { _ = m.Close() })

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := m.Snapshot()
				if s.Connected {
					assert.NotEmpty(t, s.SessionID)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, _ = m.RefreshStatus(context.Background())
		_ = m.Disconnect(context.Background())
	}
	close(stop)
	wg.Wait()
}
