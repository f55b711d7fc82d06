package wallet

import "github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"

// Session is a read-only view of the wallet connection.
type Session struct {
	SessionID string   `json:"sessionId,omitempty"`
	Accounts  []string `json:"accounts,omitempty"`
	// ChainID is 0 when the wallet has not reported one.
	ChainID   int64 `json:"chainId,omitempty"`
	Connected bool  `json:"connected"`
}

// Address returns the active sender account.
func (s Session) Address() (string, bool) {
	if !s.Connected || len(s.Accounts) == 0 {
		return "", false
	}
	return s.Accounts[0], true
}

func (s Session) ChainLabel() string {
	return protocol.ChainLabel(s.ChainID)
}

func (s Session) clone() Session {
	if s.Accounts != nil {
		s.Accounts = append([]string(nil), s.Accounts...)
	}
	return s
}
