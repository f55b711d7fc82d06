package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/spf13/cobra"
)

func newAddressCmd(g *globals) *cobra.Command {
	var chainID int64
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Ask the wallet for its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app) error {
				addr, err := a.manager.WalletAddress(cmd.Context(), chainID)
				if err != nil {
					return fmt.Errorf("address: %w", err)
				}
				return g.render(cmd.OutOrStdout(), map[string]string{"address": addr}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, addr)
					return err
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id (default: the session chain)")
	return cmd
}

func newBalanceCmd(g *globals) *cobra.Command {
	req := wallet.DefaultBalanceRequest()
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Ask the wallet for its balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app) error {
				bal, err := a.manager.WalletBalance(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("balance: %w", err)
				}
				return g.render(cmd.OutOrStdout(), bal, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %s\n", bal.Amount, bal.ResourceType)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.ResourceType, "resource", req.ResourceType, "Coin resource type")
	cmd.Flags().IntVar(&req.Decimals, "decimals", req.Decimals, "Decimals of the coin")
	cmd.Flags().Int64Var(&req.ChainID, "chain", 0, "Chain id (default: the session chain)")
	return cmd
}

func newSignCmd(g *globals) *cobra.Command {
	var verbatim bool
	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Ask the wallet to sign a message",
		Long:  "sign stamps the message with a millisecond nonce (\"<message> at <nonce>\") unless --verbatim is set, then asks the wallet to sign it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wallet.NewSignMessageRequest(args[0], time.Now())
			if verbatim {
				req.Message = args[0]
			}
			return withApp(cmd.Context(), g, func(a *app) error {
				res, err := a.manager.SignMessage(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("sign: %w", err)
				}
				view := map[string]any{"message": req.Message, "nonce": req.Nonce, "result": res}
				return g.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
					fmt.Fprintf(w, "message:   %s\n", req.Message)
					_, err := fmt.Fprintf(w, "signature: %s\n", res.Signature)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&verbatim, "verbatim", false, "Sign the message exactly as given")
	return cmd
}
