package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	DefaultResourceType    = "<0x1::supra_coin::SupraCoin>"
	DefaultBalanceDecimals = 8
)

type BalanceRequest struct {
	ChainID      int64  `json:"chainId,omitempty"`
	ResourceType string `json:"resourceType"`
	Decimals     int    `json:"decimals"`
}

// DefaultBalanceRequest asks for the native SUPRA balance.
func DefaultBalanceRequest() BalanceRequest {
	return BalanceRequest{ResourceType: DefaultResourceType, Decimals: DefaultBalanceDecimals}
}

type SignMessageRequest struct {
	Message string `json:"message"`
	Nonce   int64  `json:"nonce"`
	ChainID int64  `json:"chainId,omitempty"`
}

// NewSignMessageRequest stamps message with a millisecond nonce taken from now,
// as "<message> at <nonce>".
func NewSignMessageRequest(message string, now time.Time) SignMessageRequest {
	nonce := now.UnixMilli()
	return SignMessageRequest{
		Message: fmt.Sprintf("%s at %d", strings.TrimSpace(message), nonce),
		Nonce:   nonce,
	}
}

// RawTxnSubmission hands an encoded transaction to the wallet.
type RawTxnSubmission struct {
	RawTxn  string         `json:"rawTxn"`
	ChainID int64          `json:"chainId,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// WalletAddress asks the wallet for its address on chainID (0 means the
// session chain).
func (m *Manager) WalletAddress(ctx context.Context, chainID int64) (string, error) {
	sess, err := m.requireConnected()
	if err != nil {
		return "", err
	}
	chainID = m.chainFor(sess, chainID)
	raw, err := m.caller.Call(ctx, protocol.MethodGetWalletAddress, map[string]int64{"chainId": chainID}, chainID)
	if err != nil {
		m.observe(err)
		return "", err
	}
	doc, err := normalizeQuery(protocol.MethodGetWalletAddress, raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Get("address").Str), nil
}

func (m *Manager) WalletBalance(ctx context.Context, req BalanceRequest) (Balance, error) {
	sess, err := m.requireConnected()
	if err != nil {
		return Balance{}, err
	}
	def := DefaultBalanceRequest()
	if strings.TrimSpace(req.ResourceType) == "" {
		req.ResourceType = def.ResourceType
	}
	if req.Decimals <= 0 {
		req.Decimals = def.Decimals
	}
	req.ChainID = m.chainFor(sess, req.ChainID)

	raw, err := m.caller.Call(ctx, protocol.MethodGetWalletBalance, req, req.ChainID)
	if err != nil {
		m.observe(err)
		return Balance{}, err
	}
	return normalizeBalance(raw, req)
}

// SignMessage asks the user to sign req.Message. A decline is returned as
// both a non-approved result and a *protocol.RejectedError.
func (m *Manager) SignMessage(ctx context.Context, req SignMessageRequest) (SignedResult, error) {
	sess, err := m.requireConnected()
	if err != nil {
		return SignedResult{}, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return SignedResult{}, fmt.Errorf("wallet: message is empty")
	}
	req.ChainID = m.chainFor(sess, req.ChainID)
	raw, err := m.caller.Call(ctx, protocol.MethodSignMessage, req, req.ChainID)
	if err != nil {
		m.observe(err)
		return SignedResult{}, err
	}
	return NormalizeSigned(protocol.MethodSignMessage, raw)
}

// SignAndSendRawTransaction asks the wallet to sign and broadcast an encoded
// transaction. A rejection leaves the session untouched.
func (m *Manager) SignAndSendRawTransaction(ctx context.Context, sub RawTxnSubmission) (SignedResult, error) {
	sess, err := m.requireConnected()
	if err != nil {
		return SignedResult{}, err
	}
	if strings.TrimSpace(sub.RawTxn) == "" {
		return SignedResult{}, fmt.Errorf("wallet: raw transaction is empty")
	}
	sub.ChainID = m.chainFor(sess, sub.ChainID)
	raw, err := m.caller.Call(ctx, protocol.MethodSignAndSendRawTransaction, sub, sub.ChainID)
	if err != nil {
		m.observe(err)
		return SignedResult{}, err
	}
	res, err := NormalizeSigned(protocol.MethodSignAndSendRawTransaction, raw)
	if err != nil {
		log.Warn().Err(err).Msg("wallet: transaction not sent")
		return res, err
	}
	log.Info().Str("tx_hash", res.TxHash).Msg("wallet: transaction sent")
	return res, nil
}
