package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates envelopes travelling across the bridge.
type Kind string

const (
	KindRequest      Kind = "request"
	KindReply        Kind = "reply"
	KindNotification Kind = "notification"
)

// Method names one bridge operation.
type Method string

const (
	MethodConnect                    Method = "connectToWallet"
	MethodGetSessionStatus           Method = "getSessionStatus"
	MethodGetWalletAddress           Method = "getWalletAddress"
	MethodGetWalletBalance           Method = "getWalletBalance"
	MethodSignMessage                Method = "signMessage"
	MethodCreateRawTransactionBuffer Method = "createRawTransactionBuffer"
	MethodSignAndSendRawTransaction  Method = "signAndSendRawTransaction"
	MethodDisconnect                 Method = "disconnect"
)

// Methods lists every bridge method in wire order.
func Methods() []Method {
	return []Method{
		MethodConnect,
		MethodGetSessionStatus,
		MethodGetWalletAddress,
		MethodGetWalletBalance,
		MethodSignMessage,
		MethodCreateRawTransactionBuffer,
		MethodSignAndSendRawTransaction,
		MethodDisconnect,
	}
}

// EventWalletConnected is pushed by the wallet when the host should re-check its session.
const EventWalletConnected = "ribbit-wallet-connected"

const (
	ChainTestnet int64 = 6
	ChainMainnet int64 = 8
)

func ChainLabel(chainID int64) string {
	switch chainID {
	case ChainTestnet:
		return "Supra Testnet"
	case ChainMainnet:
		return "Supra Mainnet"
	default:
		return ""
	}
}

// Envelope is one message crossing the page/wallet boundary.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Method  Method          `json:"method,omitempty"`
	ChainID int64           `json:"chainId,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	// Error is set on replies the peer could not process at all.
	Error string `json:"error,omitempty"`
	Event string `json:"event,omitempty"`
}

func NewRequest(id string, method Method, chainID int64, params any) (Envelope, error) {
	env := Envelope{
		Kind:    KindRequest,
		ID:      strings.TrimSpace(id),
		Method:  method,
		ChainID: chainID,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: encode %s params: %w", method, err)
		}
		env.Params = raw
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func NewReply(id string, result any) (Envelope, error) {
	env := Envelope{Kind: KindReply, ID: strings.TrimSpace(id)}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: encode reply %s: %w", id, err)
		}
		env.Result = raw
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// NewErrorReply reports a peer-side failure to handle request id.
func NewErrorReply(id string, message string) Envelope {
	return Envelope{Kind: KindReply, ID: strings.TrimSpace(id), Error: strings.TrimSpace(message)}
}

func NewNotification(event string) Envelope {
	return Envelope{Kind: KindNotification, Event: strings.TrimSpace(event)}
}

func (e Envelope) Validate() error {
	switch e.Kind {
	case KindRequest:
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("%w: request missing id", ErrInvalidEnvelope)
		}
		if strings.TrimSpace(string(e.Method)) == "" {
			return fmt.Errorf("%w: request missing method", ErrInvalidEnvelope)
		}
	case KindReply:
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("%w: reply missing id", ErrInvalidEnvelope)
		}
	case KindNotification:
		if strings.TrimSpace(e.Event) == "" {
			return fmt.Errorf("%w: notification missing event", ErrInvalidEnvelope)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, e.Kind)
	}
	return nil
}
