package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/observability"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/spf13/cobra"
)

func newSendCmd(g *globals) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "send <recipient> <amount>",
		Short: "Transfer tokens from the wallet account",
		Long:  "send builds a transfer of <amount> base units to <recipient> with the configured entry function and token, then asks the wallet to sign and submit it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("send: amount %q: %w", args[1], err)
			}
			return withApp(cmd.Context(), g, func(a *app) error {
				intent := a.cfg.Transfer(args[0], amount)
				if dryRun {
					return dryRunTransfer(cmd, g, a, intent)
				}
				res, err := a.builder.SendTransfer(cmd.Context(), intent)
				switch {
				case err == nil:
					observability.RecordTransfer("approved")
				case errors.Is(err, protocol.ErrUserRejected):
					observability.RecordTransfer("rejected")
				default:
					observability.RecordTransfer("failed")
				}
				if err != nil {
					return fmt.Errorf("send: %w", err)
				}
				return g.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "tx hash: %s\n", res.TxHash)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build and print the raw transaction without submitting it")
	return cmd
}

func dryRunTransfer(cmd *cobra.Command, g *globals, a *app, intent txn.TransferIntent) error {
	sender, err := a.builder.Sender()
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	req, err := intent.Request(sender.String())
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	buf, raw, err := a.builder.CreateRawTransactionBuffer(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	view := map[string]any{
		"rawTxn":     buf,
		"sender":     raw.Sender.String(),
		"sequence":   raw.SequenceNumber,
		"expiration": raw.ExpirationTimestampSecs,
		"chainId":    raw.ChainID,
	}
	return g.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
		fmt.Fprintf(w, "sender:   %s\n", raw.Sender)
		fmt.Fprintf(w, "sequence: %d\n", raw.SequenceNumber)
		_, err := fmt.Fprintf(w, "raw txn:  %s\n", buf)
		return err
	})
}
