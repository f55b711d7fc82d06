package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/config"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/logging"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "ribbitctl",
		Short:         "Talk to a Ribbit wallet from the terminal",
		Long:          "ribbitctl connects to a Ribbit wallet bridge, manages the wallet session, signs messages and sends token transfers on Supra. It can also run a simulated wallet for local development.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			observability.InitLogger("ribbitctl")
			if strings.TrimSpace(g.logLevel) == "" {
				return nil
			}
			lvl, ok := logging.ParseLevel(g.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", g.logLevel)
			}
			zerolog.SetGlobalLevel(lvl)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a ribbitctl TOML config (default: built-in defaults)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override the log level (trace, debug, info, warn, error, off)")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "Render JSON output")

	root.AddCommand(
		newConnectCmd(g),
		newStatusCmd(g),
		newAddressCmd(g),
		newBalanceCmd(g),
		newSignCmd(g),
		newSendCmd(g),
		newDisconnectCmd(g),
		newWatchCmd(g),
		newSimulateCmd(g),
		newServeCmd(g),
		newConfigCmd(g),
	)
	return root
}

func (g *globals) load() (config.ClientConfig, error) {
	if strings.TrimSpace(g.configPath) == "" {
		cfg := config.DefaultClientConfig()
		return cfg, cfg.Validate()
	}
	return config.Load(g.configPath)
}

// render writes v as indented JSON with --json and as text otherwise.
func (g *globals) render(w io.Writer, v any, text func(io.Writer) error) error {
	if g.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
