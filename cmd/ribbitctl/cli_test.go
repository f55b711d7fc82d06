package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/config"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/testutil/testlog"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/walletsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testSeed      = "9bf49a6a0755f953811fce125f2683d50429c3bb49e074147e0089a52eae155f"
	testRecipient = "0xcd57ba74df68ceea6c46b0e30ac77204bd043d1f57b92384c8d42acb9ed63184"
	testToken     = "cli-pairing-token"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, cfg config.ClientConfig) string {
	t.Helper()
	out, err := config.Render(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ribbitctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))
	return path
}

// startSimulator serves a simulated wallet and returns it with a config
// that points both the bridge and the ledger at it.
func startSimulator(t *testing.T) (*walletsim.Wallet, string) {
	t.Helper()
	simCfg := walletsim.DefaultConfig()
	simCfg.Seed = testSeed
	w, err := walletsim.New(simCfg)
	require.NoError(t, err)

	srv := httptest.NewServer(walletsim.NewServer(w, walletsim.ServerConfig{PairingToken: testToken}).Handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultClientConfig()
	cfg.Bridge.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg.Bridge.PairingToken = testToken
	cfg.Bridge.MaxConnectAttempts = 1
	cfg.Ledger.RPCURL = srv.URL
	return w, writeConfig(t, cfg)
}

func TestSessionCommands(t *testing.T) {
	testlog.Start(t)
	w, path := startSimulator(t)

	out, _, err := executeCLI(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state:    disconnected")

	out, _, err = executeCLI(t, "--config", path, "--json", "connect")
	require.NoError(t, err)
	assert.Equal(t, "connected", gjson.Get(out, "state").String())
	assert.Equal(t, "Supra Testnet", gjson.Get(out, "chain").String())
	assert.Equal(t, w.SessionID(), gjson.Get(out, "session.sessionId").String())

	out, _, err = executeCLI(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state:    connected")
	assert.Contains(t, out, w.Address().String())

	out, _, err = executeCLI(t, "--config", path, "disconnect")
	require.NoError(t, err)
	assert.Contains(t, out, "state:    disconnected")
	assert.Empty(t, w.SessionID())
}

func TestQueryCommands(t *testing.T) {
	testlog.Start(t)
	w, path := startSimulator(t)
	_, _, err := executeCLI(t, "--config", path, "connect")
	require.NoError(t, err)

	out, _, err := executeCLI(t, "--config", path, "address")
	require.NoError(t, err)
	assert.Equal(t, w.Address().String(), strings.TrimSpace(out))

	out, _, err = executeCLI(t, "--config", path, "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "100.00000000")

	out, _, err = executeCLI(t, "--config", path, "--json", "sign", "--verbatim", "hello ribbit")
	require.NoError(t, err)
	assert.Equal(t, "hello ribbit", gjson.Get(out, "message").String())
	assert.NotEmpty(t, gjson.Get(out, "result.signature").String())

	out, _, err = executeCLI(t, "--config", path, "sign", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "message:   hello at ")
}

func TestSendCommand(t *testing.T) {
	testlog.Start(t)
	w, path := startSimulator(t)
	_, _, err := executeCLI(t, "--config", path, "connect")
	require.NoError(t, err)

	out, _, err := executeCLI(t, "--config", path, "--json", "send", "--dry-run", testRecipient, "1000")
	require.NoError(t, err)
	assert.Equal(t, w.Address().String(), gjson.Get(out, "sender").String())
	assert.Equal(t, int64(0), gjson.Get(out, "sequence").Int())
	assert.NotEmpty(t, gjson.Get(out, "rawTxn").String())
	assert.Empty(t, w.Submitted())

	out, _, err = executeCLI(t, "--config", path, "--json", "send", testRecipient, "1000")
	require.NoError(t, err)
	require.Len(t, w.Submitted(), 1)
	assert.Equal(t, w.Submitted()[0], gjson.Get(out, "txHash").String())

	w.SetAutoApprove(false)
	_, _, err = executeCLI(t, "--config", path, "send", testRecipient, "5")
	assert.ErrorIs(t, err, protocol.ErrUserRejected)
	assert.Len(t, w.Submitted(), 1)

	_, _, err = executeCLI(t, "--config", path, "send", testRecipient, "lots")
	assert.ErrorContains(t, err, `amount "lots"`)
}

func TestUnreachableBridge(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()

	cfg := config.DefaultClientConfig()
	cfg.Bridge.URL = url
	cfg.Bridge.MaxConnectAttempts = 1
	path := writeConfig(t, cfg)

	out, _, err := executeCLI(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state:    disconnected")

	_, _, err = executeCLI(t, "--config", path, "connect")
	assert.ErrorIs(t, err, protocol.ErrBridgeUnavailable)

	_, _, err = executeCLI(t, "--config", path, "address")
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
}

func TestWatchStopsAfterDuration(t *testing.T) {
	testlog.Start(t)
	_, path := startSimulator(t)

	start := time.Now()
	out, _, err := executeCLI(t, "--config", path, "watch", "--for", "200ms")
	require.NoError(t, err)
	assert.Contains(t, out, "state:    disconnected")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConfigCommands(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "sim.toml")

	out, _, err := executeCLI(t, "config", "init", "--kind", config.TemplateSimulator, path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote simulator config")

	_, _, err = executeCLI(t, "config", "init", path)
	assert.ErrorContains(t, err, "config already exists")
	_, _, err = executeCLI(t, "config", "init", "--force", path)
	require.NoError(t, err)

	out, _, err = executeCLI(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+": ok")

	out, _, err = executeCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[bridge]")

	_, _, err = executeCLI(t, "config", "init", "--kind", "fax", path+".2")
	assert.ErrorContains(t, err, "unknown config kind")

	_, _, err = executeCLI(t, "config", "validate")
	assert.ErrorContains(t, err, "no path given")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[bridge]\nkind = \"smoke\"\n"), 0o600))
	_, _, err = executeCLI(t, "config", "validate", bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestUnknownLogLevel(t *testing.T) {
	testlog.Start(t)
	_, _, err := executeCLI(t, "--log-level", "loud", "config", "validate", "x")
	assert.ErrorContains(t, err, `unknown log level "loud"`)
}
