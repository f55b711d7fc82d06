package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/pelletier/go-toml/v2"
)

// Template kinds accepted by Template and WriteTemplate.
const (
	TemplateClient    = "client"
	TemplateNative    = "native"
	TemplateSimulator = "simulator"
)

func TemplateKinds() []string {
	return []string{TemplateClient, TemplateNative, TemplateSimulator}
}

// Template renders a starting config of kind from the defaults.
func Template(kind string) (string, error) {
	cfg := DefaultClientConfig()
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", TemplateClient:
	case TemplateNative:
		cfg.Bridge.Kind = bridge.KindNative
		cfg.Bridge.URL = ""
	case TemplateSimulator:
		cfg.Simulator.PairingToken = "change-me"
		cfg.Bridge.PairingToken = "change-me"
		cfg.Simulator.Delay = 0
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	return Render(cfg)
}

// Render encodes cfg in the on-disk layout Load reads.
func Render(cfg ClientConfig) (string, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return "", fmt.Errorf("config render failed: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg ClientConfig) fileConfig {
	return fileConfig{
		Bridge: fileBridge{
			Kind:               cfg.Bridge.Kind,
			URL:                cfg.Bridge.URL,
			PairingToken:       cfg.Bridge.PairingToken,
			ChainID:            cfg.Bridge.ChainID,
			RequestTimeout:     cfg.Bridge.RequestTimeout.String(),
			ConnectTimeout:     cfg.Bridge.ConnectTimeout.String(),
			MaxConnectAttempts: cfg.Bridge.MaxConnectAttempts,
		},
		Ledger: fileLedger{
			RPCURL:  cfg.Ledger.RPCURL,
			Timeout: cfg.Ledger.Timeout.String(),
		},
		Tx: fileTx{
			MaxGasAmount:  cfg.Tx.MaxGasAmount,
			GasUnitPrice:  cfg.Tx.GasUnitPrice,
			ExpirationTTL: cfg.Tx.ExpirationTTL.String(),
			ModuleAddress: cfg.Tx.ModuleAddress,
			ModuleName:    cfg.Tx.ModuleName,
			FunctionName:  cfg.Tx.FunctionName,
			TokenType:     cfg.Tx.TokenType,
			Description:   cfg.Tx.Description,
		},
		Dapp: fileDapp{
			Name:        cfg.Dapp.Name,
			Description: cfg.Dapp.Description,
			Logo:        cfg.Dapp.Logo,
			URL:         cfg.Dapp.URL,
		},
		Observability: fileObservability{
			ListenAddr:  cfg.Observability.ListenAddr,
			CorsOrigins: cfg.Observability.CorsOrigins,
			LogLevel:    cfg.Observability.LogLevel,
		},
		Simulator: fileSimulator{
			ListenAddr:    cfg.Simulator.ListenAddr,
			PairingToken:  cfg.Simulator.PairingToken,
			AutoApprove:   cfg.Simulator.AutoApprove,
			RejectMessage: cfg.Simulator.RejectMessage,
			Delay:         cfg.Simulator.Delay.String(),
			Seed:          cfg.Simulator.Seed,
			ChainID:       cfg.Simulator.ChainID,
			Balance:       cfg.Simulator.Balance,
		},
	}
}
