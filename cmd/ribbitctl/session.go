package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/spf13/cobra"
)

type sessionView struct {
	State   string         `json:"state"`
	Chain   string         `json:"chain,omitempty"`
	Session wallet.Session `json:"session"`
}

func (g *globals) printSession(w io.Writer, state wallet.State, s wallet.Session) error {
	view := sessionView{State: state.String(), Session: s}
	if s.Connected {
		view.Chain = s.ChainLabel()
	}
	return g.render(w, view, func(w io.Writer) error {
		fmt.Fprintf(w, "state:    %s\n", view.State)
		if !s.Connected {
			return nil
		}
		fmt.Fprintf(w, "session:  %s\n", s.SessionID)
		fmt.Fprintf(w, "chain:    %s (%d)\n", view.Chain, s.ChainID)
		fmt.Fprintf(w, "accounts: %s\n", strings.Join(s.Accounts, ", "))
		return nil
	})
}

func newConnectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Ask the wallet to approve a session for this dapp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app) error {
				sess, err := a.manager.Connect(cmd.Context(), a.cfg.Dapp)
				if err != nil {
					return fmt.Errorf("connect: %w", err)
				}
				return g.printSession(cmd.OutOrStdout(), a.manager.State(), sess)
			})
		},
	}
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet session as the wallet reports it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app) error {
				return g.printSession(cmd.OutOrStdout(), a.manager.State(), a.manager.Snapshot())
			})
		},
	}
}

func newDisconnectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "End the wallet session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app) error {
				if err := a.manager.Disconnect(cmd.Context()); err != nil {
					return fmt.Errorf("disconnect: %w", err)
				}
				return g.printSession(cmd.OutOrStdout(), a.manager.State(), a.manager.Snapshot())
			})
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print session changes until interrupted",
		Long:  "watch stays attached to the bridge and prints the session every time it changes, including when the wallet announces itself again.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return withApp(ctx, g, func(a *app) error {
				out := cmd.OutOrStdout()
				changes := make(chan wallet.Session, 16)
				unsubscribe := a.manager.OnChange(func(s wallet.Session) {
					select {
					case changes <- s:
					default:
					}
				})
				defer unsubscribe()

				if err := g.printSession(out, a.manager.State(), a.manager.Snapshot()); err != nil {
					return err
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case s := <-changes:
						if err := g.printSession(out, a.manager.State(), s); err != nil {
							return err
						}
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: until interrupted)")
	return cmd
}
