package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/testutil/testlog"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/walletsim"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fixture struct {
	sim     *walletsim.Wallet
	bridge  *rpc.Correlator
	manager *wallet.Manager
	handler http.Handler
}

func newFixture(t *testing.T, policy walletsim.Policy) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sim, err := walletsim.New(walletsim.Config{Policy: policy})
	require.NoError(t, err)

	client, peer := bridge.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sim.Serve(ctx, peer) }()

	c := rpc.NewCorrelator(client, rpc.Config{RequestTimeout: time.Second})
	m := wallet.NewManager(c, wallet.Config{})
	srv := New(m, c, Config{
		AllowOrigins: []string{"http://localhost:3000"},
		Dapp:         wallet.DefaultDappMetadata("http://localhost:3000"),
	})
	t.Cleanup(func() {
		srv.Close()
		_ = m.Close()
		_ = c.Close()
		cancel()
		_ = client.Close()
	})
	return fixture{sim: sim, bridge: c, manager: m, handler: srv.Handler()}
}

func (f fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, walletsim.Policy{AutoApprove: true})

	rec := f.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ribbitctl", gjson.GetBytes(rec.Body.Bytes(), "service").String())

	rec = f.do(t, http.MethodGet, "/health/bridge")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/health/session")
	assert.Equal(t, "disconnected", gjson.GetBytes(rec.Body.Bytes(), "status").String())
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/health/ledger").Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, walletsim.Policy{AutoApprove: true})

	rec := f.do(t, http.MethodPost, "/session/connect")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, f.sim.Address().String(), gjson.GetBytes(rec.Body.Bytes(), "session.accounts.0").String())

	rec = f.do(t, http.MethodGet, "/session")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	assert.Equal(t, "connected", gjson.GetBytes(body, "state").String())
	assert.Equal(t, "Supra Testnet", gjson.GetBytes(body, "chain").String())
	assert.Equal(t, f.sim.SessionID(), gjson.GetBytes(body, "session.sessionId").String())

	rec = f.do(t, http.MethodPost, "/session/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.GetBytes(rec.Body.Bytes(), "session.connected").Bool())

	rec = f.do(t, http.MethodPost, "/session/disconnect")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", gjson.GetBytes(rec.Body.Bytes(), "state").String())
	assert.Empty(t, f.sim.SessionID())
}

func TestConnectRejectedMapsToForbidden(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, walletsim.Policy{AutoApprove: false, RejectMessage: "nope"})

	rec := f.do(t, http.MethodPost, "/session/connect")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, gjson.GetBytes(rec.Body.Bytes(), "error").String(), "nope")
	assert.Equal(t, wallet.StateDisconnected, f.manager.State())
}

func TestPendingShowsInFlightCalls(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, walletsim.Policy{
		AutoApprove: true,
		Silent:      []protocol.Method{protocol.MethodGetWalletBalance},
	})
	_, err := f.manager.Connect(context.Background(), wallet.DefaultDappMetadata("http://localhost:3000"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.WalletBalance(context.Background(), wallet.DefaultBalanceRequest())
		done <- err
	}()

	require.Eventually(t, func() bool { return len(f.bridge.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	rec := f.do(t, http.MethodGet, "/pending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.GetBytes(rec.Body.Bytes(), "available").Bool())
	assert.Equal(t, string(protocol.MethodGetWalletBalance), gjson.GetBytes(rec.Body.Bytes(), "pending.0.method").String())

	assert.ErrorIs(t, <-done, protocol.ErrRequestTimeout)
	rec = f.do(t, http.MethodGet, "/pending")
	assert.Equal(t, int64(0), gjson.GetBytes(rec.Body.Bytes(), "pending.#").Int())
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, walletsim.Policy{AutoApprove: true})
	f.do(t, http.MethodGet, "/healthz")

	rec := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ribbit_http_requests_total"))
	assert.True(t, strings.Contains(rec.Body.String(), "ribbit_wallet_session_connected"))
}

func TestStatusFor(t *testing.T) {
	testlog.Start(t)
	cases := map[error]int{
		protocol.ErrBridgeUnavailable:                     http.StatusServiceUnavailable,
		protocol.ErrRequestTimeout:                        http.StatusGatewayTimeout,
		&protocol.RejectedError{Message: "x"}:             http.StatusForbidden,
		protocol.ErrNotConnected:                          http.StatusConflict,
		wallet.ErrConnectInProgress:                       http.StatusConflict,
		wallet.ErrInvalidMetadata:                         http.StatusBadRequest,
		protocol.ErrMalformedResponse:                     http.StatusBadGateway,
		&protocol.PeerError{Method: "x", Message: "boom"}: http.StatusBadGateway,
		context.Canceled:                                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
