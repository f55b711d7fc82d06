package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/logging"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/walletsim"
	"github.com/rs/zerolog/log"
)

var ErrInvalidConfig = errors.New("config: invalid")

const DefaultBridgeURL = "ws://127.0.0.1:7420/ws"

// ClientConfig is everything ribbitctl needs to reach a wallet and a ledger.
type ClientConfig struct {
	Bridge        BridgeConfig
	Ledger        LedgerConfig
	Tx            TxConfig
	Dapp          wallet.DappMetadata
	Observability ObservabilityConfig
	Simulator     SimulatorConfig
}

type BridgeConfig struct {
	Kind               string
	URL                string
	PairingToken       string
	ChainID            int64
	RequestTimeout     time.Duration
	ConnectTimeout     time.Duration
	MaxConnectAttempts int
}

type LedgerConfig struct {
	RPCURL  string
	Timeout time.Duration
}

type TxConfig struct {
	MaxGasAmount  uint64
	GasUnitPrice  uint64
	ExpirationTTL time.Duration
	ModuleAddress string
	ModuleName    string
	FunctionName  string
	TokenType     string
	Description   string
}

type ObservabilityConfig struct {
	ListenAddr  string
	CorsOrigins []string
	LogLevel    string
}

type SimulatorConfig struct {
	ListenAddr    string
	PairingToken  string
	AutoApprove   bool
	RejectMessage string
	Delay         time.Duration
	Seed          string
	ChainID       int64
	Balance       string
}

func DefaultClientConfig() ClientConfig {
	rpcDefaults := rpc.DefaultConfig()
	txDefaults := txn.DefaultConfig()
	return ClientConfig{
		Bridge: BridgeConfig{
			Kind:               bridge.KindWebSocket,
			URL:                DefaultBridgeURL,
			ChainID:            protocol.ChainTestnet,
			RequestTimeout:     rpcDefaults.RequestTimeout,
			ConnectTimeout:     rpcDefaults.ConnectTimeout,
			MaxConnectAttempts: rpcDefaults.MaxConnectAttempts,
		},
		Ledger: LedgerConfig{
			RPCURL:  txn.DefaultLedgerURL,
			Timeout: 10 * time.Second,
		},
		Tx: TxConfig{
			MaxGasAmount:  txDefaults.MaxGasAmount,
			GasUnitPrice:  txDefaults.GasUnitPrice,
			ExpirationTTL: txDefaults.ExpirationTTL,
			ModuleAddress: txn.DefaultTransferModuleAddress,
			ModuleName:    txn.DefaultTransferModuleName,
			FunctionName:  txn.DefaultTransferFunction,
			TokenType:     txn.DefaultTokenType,
			Description:   txDefaults.Description,
		},
		Dapp: wallet.DefaultDappMetadata("http://localhost:3000"),
		Observability: ObservabilityConfig{
			ListenAddr:  "127.0.0.1:7421",
			CorsOrigins: []string{"http://localhost:3000"},
			LogLevel:    "info",
		},
		Simulator: SimulatorConfig{
			ListenAddr:    "127.0.0.1:7420",
			AutoApprove:   true,
			RejectMessage: walletsim.DefaultRejectMessage,
			ChainID:       protocol.ChainTestnet,
			Balance:       walletsim.DefaultConfig().Balance,
		},
	}
}

// Normalize trims text fields and clamps the request timeout into the range
// a human approval can take.
func (c ClientConfig) Normalize() ClientConfig {
	c.Bridge.Kind = strings.ToLower(strings.TrimSpace(c.Bridge.Kind))
	c.Bridge.URL = strings.TrimSpace(c.Bridge.URL)
	c.Bridge.PairingToken = strings.TrimSpace(c.Bridge.PairingToken)
	if t := c.Bridge.RequestTimeout; t < rpc.MinRequestTimeout || t > rpc.MaxRequestTimeout {
		clamped := min(max(t, rpc.MinRequestTimeout), rpc.MaxRequestTimeout)
		log.Warn().Dur("configured", t).Dur("using", clamped).Msg("config: bridge.request_timeout out of range")
		c.Bridge.RequestTimeout = clamped
	}
	c.Ledger.RPCURL = strings.TrimRight(strings.TrimSpace(c.Ledger.RPCURL), "/")
	c.Tx.ModuleAddress = strings.TrimSpace(c.Tx.ModuleAddress)
	c.Tx.ModuleName = strings.TrimSpace(c.Tx.ModuleName)
	c.Tx.FunctionName = strings.TrimSpace(c.Tx.FunctionName)
	c.Tx.TokenType = strings.TrimSpace(c.Tx.TokenType)
	c.Dapp = c.Dapp.Normalize()
	c.Observability.CorsOrigins = normalizeList(c.Observability.CorsOrigins)
	c.Simulator.PairingToken = strings.TrimSpace(c.Simulator.PairingToken)
	c.Simulator.Seed = strings.TrimSpace(c.Simulator.Seed)
	return c
}

func (c ClientConfig) Validate() error {
	if err := c.Bridge.validate(); err != nil {
		return err
	}
	if err := httpURL(c.Ledger.RPCURL); err != nil {
		return fmt.Errorf("%w: ledger.rpc_url: %v", ErrInvalidConfig, err)
	}
	if c.Ledger.Timeout <= 0 {
		return fmt.Errorf("%w: ledger.timeout must be positive", ErrInvalidConfig)
	}
	if err := c.Tx.validate(); err != nil {
		return err
	}
	if err := c.Dapp.Validate(); err != nil {
		return fmt.Errorf("%w: dapp: %v", ErrInvalidConfig, err)
	}
	for _, origin := range c.Observability.CorsOrigins {
		if origin == "*" {
			continue
		}
		if err := httpURL(origin); err != nil {
			return fmt.Errorf("%w: observability.cors_origins %q: %v", ErrInvalidConfig, origin, err)
		}
	}
	if lvl := strings.TrimSpace(c.Observability.LogLevel); lvl != "" {
		if _, ok := logging.ParseLevel(lvl); !ok {
			return fmt.Errorf("%w: observability.log_level %q", ErrInvalidConfig, lvl)
		}
	}
	return c.Simulator.validate()
}

func (b BridgeConfig) validate() error {
	switch b.Kind {
	case bridge.KindWebSocket:
		u, err := url.Parse(b.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("%w: bridge.url %q must be a ws:// or wss:// url", ErrInvalidConfig, b.URL)
		}
	case bridge.KindNative:
	default:
		return fmt.Errorf("%w: bridge.kind %q must be %s or %s", ErrInvalidConfig, b.Kind, bridge.KindWebSocket, bridge.KindNative)
	}
	if err := chainID("bridge.chain_id", b.ChainID); err != nil {
		return err
	}
	if b.RequestTimeout < rpc.MinRequestTimeout || b.RequestTimeout > rpc.MaxRequestTimeout {
		return fmt.Errorf("%w: bridge.request_timeout %s outside %s..%s", ErrInvalidConfig, b.RequestTimeout, rpc.MinRequestTimeout, rpc.MaxRequestTimeout)
	}
	if b.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: bridge.connect_timeout must be positive", ErrInvalidConfig)
	}
	if b.MaxConnectAttempts < 0 {
		return fmt.Errorf("%w: bridge.max_connect_attempts must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (t TxConfig) validate() error {
	if t.MaxGasAmount == 0 || t.GasUnitPrice == 0 {
		return fmt.Errorf("%w: tx gas amount and price must be positive", ErrInvalidConfig)
	}
	if t.ExpirationTTL < time.Second {
		return fmt.Errorf("%w: tx.expiration_ttl must be at least 1s", ErrInvalidConfig)
	}
	if _, err := txn.ParseAddress(t.ModuleAddress); err != nil {
		return fmt.Errorf("%w: tx.module_address: %v", ErrInvalidConfig, err)
	}
	if t.ModuleName == "" || t.FunctionName == "" {
		return fmt.Errorf("%w: tx.module_name and tx.function_name are required", ErrInvalidConfig)
	}
	if _, err := txn.StructTypeTag(t.TokenType); err != nil {
		return fmt.Errorf("%w: tx.token_type: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (s SimulatorConfig) validate() error {
	if strings.TrimSpace(s.ListenAddr) == "" {
		return fmt.Errorf("%w: simulator.listen_addr is required", ErrInvalidConfig)
	}
	if s.Delay < 0 {
		return fmt.Errorf("%w: simulator.delay must not be negative", ErrInvalidConfig)
	}
	if err := chainID("simulator.chain_id", s.ChainID); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(s.Balance), 64); err != nil {
		return fmt.Errorf("%w: simulator.balance %q is not numeric", ErrInvalidConfig, s.Balance)
	}
	if s.Seed != "" {
		if _, err := walletsim.New(walletsim.Config{Seed: s.Seed}); err != nil {
			return fmt.Errorf("%w: simulator.seed: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func chainID(field string, id int64) error {
	if id <= 0 || id > 255 {
		return fmt.Errorf("%w: %s %d must be 1..255", ErrInvalidConfig, field, id)
	}
	return nil
}

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("want an absolute http(s) url")
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
