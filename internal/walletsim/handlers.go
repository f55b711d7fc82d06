package walletsim

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const errNotConnected = "wallet is not connected to this dapp"

type handlerFunc func(ctx context.Context, req protocol.Envelope) (any, error)

func (w *Wallet) handlers() map[protocol.Method]handlerFunc {
	return map[protocol.Method]handlerFunc{
		protocol.MethodConnect:                    w.handleConnect,
		protocol.MethodGetSessionStatus:           w.handleStatus,
		protocol.MethodGetWalletAddress:           w.handleAddress,
		protocol.MethodGetWalletBalance:           w.handleBalance,
		protocol.MethodSignMessage:                w.handleSignMessage,
		protocol.MethodCreateRawTransactionBuffer: w.handleCreateRawTxn,
		protocol.MethodSignAndSendRawTransaction:  w.handleSignAndSend,
		protocol.MethodDisconnect:                 w.handleDisconnect,
	}
}

// Handle answers one request. It returns false when the request gets no
// reply at all: the method is silent or ctx ended during the reply delay.
func (w *Wallet) Handle(ctx context.Context, req protocol.Envelope) (protocol.Envelope, bool) {
	if w.isSilent(req.Method) {
		log.Debug().Str("id", req.ID).Str("method", string(req.Method)).Msg("walletsim: staying silent")
		return protocol.Envelope{}, false
	}
	if d := w.cfg.Policy.Delay; d > 0 {
		select {
		case <-ctx.Done():
			return protocol.Envelope{}, false
		case <-time.After(d):
		}
	}

	h, ok := w.handlers()[req.Method]
	if !ok {
		return protocol.NewErrorReply(req.ID, fmt.Sprintf("unsupported method %q", req.Method)), true
	}
	result, err := h(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("method", string(req.Method)).Msg("walletsim: request failed")
		return protocol.NewErrorReply(req.ID, err.Error()), true
	}
	reply, err := protocol.NewReply(req.ID, result)
	if err != nil {
		return protocol.NewErrorReply(req.ID, err.Error()), true
	}
	return reply, true
}

func (w *Wallet) reject() map[string]any {
	return map[string]any{"approved": false, "error": w.cfg.Policy.RejectMessage}
}

func (w *Wallet) accounts() []string {
	return []string{w.address.String()}
}

func (w *Wallet) handleConnect(_ context.Context, req protocol.Envelope) (any, error) {
	var meta wallet.DappMetadata
	if len(req.Params) > 0 {
		doc := gjson.ParseBytes(req.Params)
		meta = wallet.DappMetadata{
			Name:        doc.Get("name").String(),
			Description: doc.Get("description").String(),
			Logo:        doc.Get("logo").String(),
			URL:         doc.Get("url").String(),
		}
	}
	if err := meta.Validate(); err != nil {
		return map[string]any{"approved": false, "error": err.Error()}, nil
	}
	if !w.approving() {
		log.Info().Str("dapp", meta.Name).Msg("walletsim: connect declined")
		return w.reject(), nil
	}

	w.mu.Lock()
	if w.session == "" {
		w.session = uuid.NewString()
	}
	session := w.session
	w.mu.Unlock()

	log.Info().Str("dapp", meta.Name).Str("session", session).Msg("walletsim: connect approved")
	return map[string]any{
		"approved":  true,
		"sessionId": session,
		"accounts":  w.accounts(),
		"chainId":   w.cfg.ChainID,
	}, nil
}

func (w *Wallet) handleStatus(context.Context, protocol.Envelope) (any, error) {
	session := w.SessionID()
	if session == "" {
		return map[string]any{"sessionId": nil}, nil
	}
	return map[string]any{
		"sessionId": session,
		"accounts":  w.accounts(),
		"chainId":   w.cfg.ChainID,
	}, nil
}

func (w *Wallet) handleAddress(context.Context, protocol.Envelope) (any, error) {
	if w.SessionID() == "" {
		return map[string]any{"approved": false, "error": errNotConnected}, nil
	}
	return map[string]any{"address": w.address.String()}, nil
}

func (w *Wallet) handleBalance(_ context.Context, req protocol.Envelope) (any, error) {
	if w.SessionID() == "" {
		return map[string]any{"approved": false, "error": errNotConnected}, nil
	}
	resource := gjson.GetBytes(req.Params, "resourceType").String()
	if resource != "" && resource != wallet.DefaultResourceType {
		return map[string]any{"balance": "0"}, nil
	}
	return map[string]any{"balance": w.cfg.Balance}, nil
}

func (w *Wallet) handleSignMessage(_ context.Context, req protocol.Envelope) (any, error) {
	if w.SessionID() == "" {
		return map[string]any{"approved": false, "error": errNotConnected}, nil
	}
	message := gjson.GetBytes(req.Params, "message").String()
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("signMessage: message is empty")
	}
	if !w.approving() {
		return w.reject(), nil
	}
	sig := ed25519.Sign(w.key, []byte(message))
	return map[string]any{
		"approved":  true,
		"signature": "0x" + hex.EncodeToString(sig),
		"publicKey": "0x" + hex.EncodeToString(w.PublicKey()),
	}, nil
}

// handleCreateRawTxn builds a transfer from the wallet's own account using
// {recipient, amount, tokenType?, moduleAddress?, moduleName?, functionName?}.
func (w *Wallet) handleCreateRawTxn(ctx context.Context, req protocol.Envelope) (any, error) {
	if w.SessionID() == "" {
		return map[string]any{"approved": false, "error": errNotConnected}, nil
	}
	doc := gjson.ParseBytes(req.Params)
	intent := txn.TransferIntent{
		Recipient:     doc.Get("recipient").String(),
		Amount:        doc.Get("amount").Uint(),
		TokenType:     doc.Get("tokenType").String(),
		ModuleAddress: doc.Get("moduleAddress").String(),
		ModuleName:    doc.Get("moduleName").String(),
		FunctionName:  doc.Get("functionName").String(),
		ChainID:       req.ChainID,
	}
	request, err := intent.Request(w.address.String())
	if err != nil {
		return nil, err
	}
	buf, _, err := w.builder.CreateRawTransactionBuffer(ctx, request)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rawTxn": buf}, nil
}

func (w *Wallet) handleSignAndSend(_ context.Context, req protocol.Envelope) (any, error) {
	if w.SessionID() == "" {
		return map[string]any{"approved": false, "error": errNotConnected}, nil
	}
	if !w.approving() {
		return w.reject(), nil
	}
	encoded, err := base64.StdEncoding.DecodeString(gjson.GetBytes(req.Params, "rawTxn").String())
	if err != nil {
		return map[string]any{"approved": false, "error": "rawTxn is not base64"}, nil
	}
	raw, err := txn.DecodeRawTransaction(encoded)
	if err != nil {
		return map[string]any{"approved": false, "error": err.Error()}, nil
	}
	if raw.Sender != w.address {
		return map[string]any{"approved": false, "error": "sender is not this wallet's account"}, nil
	}
	if int64(raw.ChainID) != w.cfg.ChainID {
		return map[string]any{"approved": false, "error": fmt.Sprintf("chain id %d does not match wallet chain %d", raw.ChainID, w.cfg.ChainID)}, nil
	}
	if raw.ExpirationTimestampSecs <= uint64(w.cfg.Now().Unix()) {
		return map[string]any{"approved": false, "error": "transaction expired"}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if raw.SequenceNumber != w.sequence {
		return map[string]any{
			"approved": false,
			"error":    fmt.Sprintf("sequence number %d, expected %d", raw.SequenceNumber, w.sequence),
		}, nil
	}
	sig := ed25519.Sign(w.key, txn.SigningMessage(encoded))
	hash := txn.TransactionHash(encoded)
	w.sequence++
	w.submitted = append(w.submitted, hash)

	log.Info().
		Str("tx_hash", hash).
		Uint64("sequence", raw.SequenceNumber).
		Str("function", raw.Payload.Module.String()+"::"+raw.Payload.Function).
		Str("description", gjson.GetBytes(req.Params, "meta.description").String()).
		Msg("walletsim: transaction accepted")
	return map[string]any{
		"approved":  true,
		"txHash":    hash,
		"signature": "0x" + hex.EncodeToString(sig),
	}, nil
}

func (w *Wallet) handleDisconnect(context.Context, protocol.Envelope) (any, error) {
	w.mu.Lock()
	had := w.session != ""
	w.session = ""
	w.mu.Unlock()
	if had {
		log.Info().Msg("walletsim: dapp disconnected")
	}
	return map[string]any{"disconnected": true}, nil
}
