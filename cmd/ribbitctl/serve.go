package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve session status, pending calls and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, g, func(a *app) error {
				addr := a.cfg.Observability.ListenAddr
				if cmd.Flags().Changed("listen") {
					addr = listen
				}
				srv := server.New(a.manager, a.bridge, server.Config{
					Service:      "ribbitctl",
					AllowOrigins: a.cfg.Observability.CorsOrigins,
					Dapp:         a.cfg.Dapp,
				})
				defer srv.Close()
				return srv.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: observability.listen_addr)")
	return cmd
}
