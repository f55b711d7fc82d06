package walletsim

import (
	"context"
	"errors"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
)

// localAccount presents the wallet's own account to txn.Builder, which is
// how createRawTransactionBuffer is served.
type localAccount struct {
	w *Wallet
}

func (a localAccount) Snapshot() wallet.Session {
	return wallet.Session{
		SessionID: "local",
		Accounts:  []string{a.w.address.String()},
		ChainID:   a.w.cfg.ChainID,
		Connected: true,
	}
}

func (localAccount) SignAndSendRawTransaction(context.Context, wallet.RawTxnSubmission) (wallet.SignedResult, error) {
	return wallet.SignedResult{}, errors.New("walletsim: local account does not submit")
}
