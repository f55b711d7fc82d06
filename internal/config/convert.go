package config

import (
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/walletsim"
)

// RPC returns the correlator and transport settings; rec may be nil.
func (c ClientConfig) RPC(rec rpc.Recorder) rpc.Config {
	cfg := rpc.DefaultConfig()
	cfg.RequestTimeout = c.Bridge.RequestTimeout
	cfg.ConnectTimeout = c.Bridge.ConnectTimeout
	cfg.MaxConnectAttempts = c.Bridge.MaxConnectAttempts
	cfg.Recorder = rec
	return cfg.WithDefaults()
}

func (c ClientConfig) BridgeOptions(rec rpc.Recorder) bridge.Options {
	return bridge.Options{
		Kind:         c.Bridge.Kind,
		URL:          c.Bridge.URL,
		PairingToken: c.Bridge.PairingToken,
		RPC:          c.RPC(rec),
		Limits:       protocol.DefaultLimits(),
	}
}

func (c ClientConfig) Wallet() wallet.Config {
	return wallet.Config{
		ChainID:        c.Bridge.ChainID,
		RefreshTimeout: c.Bridge.RequestTimeout,
	}.WithDefaults()
}

func (c ClientConfig) Txn() txn.Config {
	return txn.Config{
		MaxGasAmount:  c.Tx.MaxGasAmount,
		GasUnitPrice:  c.Tx.GasUnitPrice,
		ExpirationTTL: c.Tx.ExpirationTTL,
		ChainID:       c.Bridge.ChainID,
		Description:   c.Tx.Description,
	}.WithDefaults()
}

// Transfer fills the configured entry point and token into intent.
func (c ClientConfig) Transfer(recipient string, amount uint64) txn.TransferIntent {
	return txn.TransferIntent{
		Recipient:     recipient,
		Amount:        amount,
		TokenType:     c.Tx.TokenType,
		ModuleAddress: c.Tx.ModuleAddress,
		ModuleName:    c.Tx.ModuleName,
		FunctionName:  c.Tx.FunctionName,
		ChainID:       c.Bridge.ChainID,
	}.WithDefaults()
}

func (c ClientConfig) LedgerClient() *txn.LedgerClient {
	return txn.NewLedgerClient(c.Ledger.RPCURL, c.Ledger.Timeout)
}

func (c ClientConfig) WalletSim() walletsim.Config {
	return walletsim.Config{
		ChainID: c.Simulator.ChainID,
		Balance: c.Simulator.Balance,
		Seed:    c.Simulator.Seed,
		Policy: walletsim.Policy{
			AutoApprove:   c.Simulator.AutoApprove,
			RejectMessage: c.Simulator.RejectMessage,
			Delay:         c.Simulator.Delay,
		},
	}.WithDefaults()
}
