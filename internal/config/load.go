package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// fileConfig mirrors ClientConfig as written on disk; durations are text.
type fileConfig struct {
	Bridge        fileBridge        `toml:"bridge"`
	Ledger        fileLedger        `toml:"ledger"`
	Tx            fileTx            `toml:"tx"`
	Dapp          fileDapp          `toml:"dapp"`
	Observability fileObservability `toml:"observability"`
	Simulator     fileSimulator     `toml:"simulator"`
}

type fileBridge struct {
	Kind               string `toml:"kind"`
	URL                string `toml:"url"`
	PairingToken       string `toml:"pairing_token"`
	ChainID            int64  `toml:"chain_id"`
	RequestTimeout     string `toml:"request_timeout"`
	ConnectTimeout     string `toml:"connect_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

type fileLedger struct {
	RPCURL  string `toml:"rpc_url"`
	Timeout string `toml:"timeout"`
}

type fileTx struct {
	MaxGasAmount  uint64 `toml:"max_gas_amount"`
	GasUnitPrice  uint64 `toml:"gas_unit_price"`
	ExpirationTTL string `toml:"expiration_ttl"`
	ModuleAddress string `toml:"module_address"`
	ModuleName    string `toml:"module_name"`
	FunctionName  string `toml:"function_name"`
	TokenType     string `toml:"token_type"`
	Description   string `toml:"description"`
}

type fileDapp struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Logo        string `toml:"logo"`
	URL         string `toml:"url"`
}

type fileObservability struct {
	ListenAddr  string   `toml:"listen_addr"`
	CorsOrigins []string `toml:"cors_origins"`
	LogLevel    string   `toml:"log_level"`
}

type fileSimulator struct {
	ListenAddr    string `toml:"listen_addr"`
	PairingToken  string `toml:"pairing_token"`
	AutoApprove   bool   `toml:"auto_approve"`
	RejectMessage string `toml:"reject_message"`
	Delay         string `toml:"delay"`
	Seed          string `toml:"seed"`
	ChainID       int64  `toml:"chain_id"`
	Balance       string `toml:"balance"`
}

// Load reads path over DefaultClientConfig. Only keys present in the file
// override a default; the result is normalized and validated.
func Load(path string) (ClientConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn().Str("key", key.String()).Str("path", path).Msg("config: unknown key ignored")
	}

	cfg, err := apply(DefaultClientConfig(), raw, meta)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func apply(cfg ClientConfig, raw fileConfig, meta toml.MetaData) (ClientConfig, error) {
	var err error
	set := func(key ...string) bool { return meta.IsDefined(key...) }

	if set("bridge", "kind") {
		cfg.Bridge.Kind = raw.Bridge.Kind
	}
	if set("bridge", "url") {
		cfg.Bridge.URL = raw.Bridge.URL
	}
	if set("bridge", "pairing_token") {
		cfg.Bridge.PairingToken = raw.Bridge.PairingToken
	}
	if set("bridge", "chain_id") {
		cfg.Bridge.ChainID = raw.Bridge.ChainID
	}
	if set("bridge", "request_timeout") {
		if cfg.Bridge.RequestTimeout, err = duration("bridge.request_timeout", raw.Bridge.RequestTimeout); err != nil {
			return cfg, err
		}
	}
	if set("bridge", "connect_timeout") {
		if cfg.Bridge.ConnectTimeout, err = duration("bridge.connect_timeout", raw.Bridge.ConnectTimeout); err != nil {
			return cfg, err
		}
	}
	if set("bridge", "max_connect_attempts") {
		cfg.Bridge.MaxConnectAttempts = raw.Bridge.MaxConnectAttempts
	}

	if set("ledger", "rpc_url") {
		cfg.Ledger.RPCURL = raw.Ledger.RPCURL
	}
	if set("ledger", "timeout") {
		if cfg.Ledger.Timeout, err = duration("ledger.timeout", raw.Ledger.Timeout); err != nil {
			return cfg, err
		}
	}

	if set("tx", "max_gas_amount") {
		cfg.Tx.MaxGasAmount = raw.Tx.MaxGasAmount
	}
	if set("tx", "gas_unit_price") {
		cfg.Tx.GasUnitPrice = raw.Tx.GasUnitPrice
	}
	if set("tx", "expiration_ttl") {
		if cfg.Tx.ExpirationTTL, err = duration("tx.expiration_ttl", raw.Tx.ExpirationTTL); err != nil {
			return cfg, err
		}
	}
	if set("tx", "module_address") {
		cfg.Tx.ModuleAddress = raw.Tx.ModuleAddress
	}
	if set("tx", "module_name") {
		cfg.Tx.ModuleName = raw.Tx.ModuleName
	}
	if set("tx", "function_name") {
		cfg.Tx.FunctionName = raw.Tx.FunctionName
	}
	if set("tx", "token_type") {
		cfg.Tx.TokenType = raw.Tx.TokenType
	}
	if set("tx", "description") {
		cfg.Tx.Description = raw.Tx.Description
	}

	if set("dapp", "name") {
		cfg.Dapp.Name = raw.Dapp.Name
	}
	if set("dapp", "description") {
		cfg.Dapp.Description = raw.Dapp.Description
	}
	if set("dapp", "logo") {
		cfg.Dapp.Logo = raw.Dapp.Logo
	}
	if set("dapp", "url") {
		cfg.Dapp.URL = raw.Dapp.URL
	}

	if set("observability", "listen_addr") {
		cfg.Observability.ListenAddr = strings.TrimSpace(raw.Observability.ListenAddr)
	}
	if set("observability", "cors_origins") {
		cfg.Observability.CorsOrigins = raw.Observability.CorsOrigins
	}
	if set("observability", "log_level") {
		cfg.Observability.LogLevel = raw.Observability.LogLevel
	}

	if set("simulator", "listen_addr") {
		cfg.Simulator.ListenAddr = strings.TrimSpace(raw.Simulator.ListenAddr)
	}
	if set("simulator", "pairing_token") {
		cfg.Simulator.PairingToken = raw.Simulator.PairingToken
	}
	if set("simulator", "auto_approve") {
		cfg.Simulator.AutoApprove = raw.Simulator.AutoApprove
	}
	if set("simulator", "reject_message") {
		cfg.Simulator.RejectMessage = raw.Simulator.RejectMessage
	}
	if set("simulator", "delay") {
		if cfg.Simulator.Delay, err = duration("simulator.delay", raw.Simulator.Delay); err != nil {
			return cfg, err
		}
	}
	if set("simulator", "seed") {
		cfg.Simulator.Seed = raw.Simulator.Seed
	}
	if set("simulator", "chain_id") {
		cfg.Simulator.ChainID = raw.Simulator.ChainID
	}
	if set("simulator", "balance") {
		cfg.Simulator.Balance = raw.Simulator.Balance
	}
	return cfg, nil
}

func duration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
