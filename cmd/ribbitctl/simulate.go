package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/auth"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/walletsim"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type simulateFlags struct {
	listen string
	token  string
	seed   string
	reject bool
	native bool
	delay  time.Duration
}

func newSimulateCmd(g *globals) *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated wallet for local development",
		Long:  "simulate runs a wallet with its own ed25519 account that answers the bridge protocol over websocket, or over stdio native-messaging frames with --native. It also serves GET /accounts/<address> so it can stand in for the ledger RPC.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			simCfg := cfg.WalletSim()
			if cmd.Flags().Changed("seed") {
				simCfg.Seed = f.seed
			}
			if cmd.Flags().Changed("reject") {
				simCfg.Policy.AutoApprove = !f.reject
			}
			if cmd.Flags().Changed("delay") {
				simCfg.Policy.Delay = f.delay
			}
			w, err := walletsim.New(simCfg)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if f.native {
				t := bridge.NewNativeTransport(os.Stdin, os.Stdout, protocol.DefaultLimits())
				defer t.Close()
				log.Info().Str("account", w.Address().String()).Msg("simulate: serving native messaging on stdio")
				return w.Serve(ctx, t)
			}

			listen := cfg.Simulator.ListenAddr
			if cmd.Flags().Changed("listen") {
				listen = f.listen
			}
			token := cfg.Simulator.PairingToken
			if cmd.Flags().Changed("token") {
				token = f.token
			}
			if strings.TrimSpace(token) == "" {
				token = auth.NewPairingToken()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "account:       %s\n", w.Address())
			fmt.Fprintf(cmd.OutOrStdout(), "pairing token: %s\n", token)
			fmt.Fprintf(cmd.OutOrStdout(), "bridge url:    ws://%s/ws\n", listen)

			srv := walletsim.NewServer(w, walletsim.ServerConfig{
				PairingToken: token,
				AllowOrigins: cfg.Observability.CorsOrigins,
				RPC:          cfg.RPC(nil),
			})
			return srv.Run(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&f.listen, "listen", "", "Listen address (default: simulator.listen_addr)")
	cmd.Flags().StringVar(&f.token, "token", "", "Pairing token (default: simulator.pairing_token, or a fresh one)")
	cmd.Flags().StringVar(&f.seed, "seed", "", "Hex ed25519 seed of the account")
	cmd.Flags().BoolVar(&f.reject, "reject", false, "Decline every prompt")
	cmd.Flags().BoolVar(&f.native, "native", false, "Serve native-messaging frames on stdin/stdout")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Delay before every reply")
	return cmd
}
