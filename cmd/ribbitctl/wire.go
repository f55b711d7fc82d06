package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/config"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/observability"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/rs/zerolog/log"
)

// app is one attached client stack: transport, correlator, session and
// transaction builder.
type app struct {
	cfg       config.ClientConfig
	transport bridge.Transport
	bridge    *rpc.Correlator
	manager   *wallet.Manager
	builder   *txn.Builder
}

// wireApp attaches to the configured bridge and syncs the wallet session.
// A missing bridge still yields an app; calls on it fail with
// protocol.ErrBridgeUnavailable.
func wireApp(ctx context.Context, cfg config.ClientConfig) (*app, error) {
	opts := cfg.BridgeOptions(observability.NewBridgeRecorder())

	t, err := bridge.Open(ctx, opts)
	if err != nil {
		if !errors.Is(err, protocol.ErrBridgeUnavailable) {
			return nil, fmt.Errorf("wire bridge: %w", err)
		}
		log.Warn().Err(err).Msg("ribbitctl: wallet bridge not reachable")
		t = nil
	}

	a := &app{cfg: cfg}
	if t != nil {
		a.transport = t
		a.bridge = rpc.NewCorrelator(t, opts.RPC)
	} else {
		a.bridge = rpc.NewCorrelator(nil, opts.RPC)
	}
	a.manager = wallet.NewManager(a.bridge, cfg.Wallet())
	a.manager.OnChange(func(s wallet.Session) { observability.RecordSession(s.Connected) })
	a.builder = txn.NewBuilder(a.manager, cfg.LedgerClient(), cfg.Txn())

	if _, err := a.manager.Start(ctx); err != nil && !errors.Is(err, protocol.ErrBridgeUnavailable) {
		log.Warn().Err(err).Msg("ribbitctl: session check failed")
	}
	return a, nil
}

func (a *app) Close() {
	_ = a.manager.Close()
	_ = a.bridge.Close()
	if a.transport != nil {
		_ = a.transport.Close()
	}
}

// withApp wires the client stack for the duration of fn.
func withApp(ctx context.Context, g *globals, fn func(*app) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	a, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
