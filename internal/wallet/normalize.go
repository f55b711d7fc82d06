package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/schema"
	"github.com/tidwall/gjson"
)

// SignedResult is the outcome of every signing or submitting operation.
type SignedResult struct {
	Approved  bool   `json:"approved"`
	TxHash    string `json:"txHash,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Balance is a wallet balance as reported by the wallet.
type Balance struct {
	// Amount is the decimal text the wallet sent.
	Amount       string  `json:"amount"`
	Value        float64 `json:"value"`
	Decimals     int     `json:"decimals"`
	ResourceType string  `json:"resourceType"`
}

// Approved reports whether a reply carries approved as the JSON literal true.
// Strings, numbers and absence are not approval.
func Approved(doc gjson.Result) bool {
	return doc.Get("approved").Type == gjson.True
}

// RejectionText returns the error text of a non-approved reply: the error
// field, then the message field, then protocol.ExtensionNotAvailable.
func RejectionText(doc gjson.Result) string {
	for _, key := range []string{"error", "message"} {
		v := doc.Get(key)
		if v.Type != gjson.String && v.Type != gjson.JSON {
			continue
		}
		if text := strings.TrimSpace(v.String()); text != "" {
			return text
		}
	}
	return protocol.ExtensionNotAvailable
}

// NormalizeSigned maps a signMessage or signAndSendRawTransaction reply.
// A non-approval returns the result together with a *protocol.RejectedError.
func NormalizeSigned(method protocol.Method, raw json.RawMessage) (SignedResult, error) {
	doc, err := parseObject(method, raw)
	if err != nil {
		return SignedResult{}, err
	}
	if !Approved(doc) {
		msg := RejectionText(doc)
		return SignedResult{Error: msg}, &protocol.RejectedError{Method: method, Message: msg}
	}
	if err := schema.Validate(method, raw); err != nil {
		return SignedResult{}, err
	}
	return SignedResult{
		Approved:  true,
		TxHash:    doc.Get("txHash").String(),
		Signature: doc.Get("signature").String(),
	}, nil
}

// normalizeConnect maps a connectToWallet reply onto a Connected session.
func normalizeConnect(raw json.RawMessage, fallbackChain int64) (Session, error) {
	method := protocol.MethodConnect
	doc, err := parseObject(method, raw)
	if err != nil {
		return Session{}, err
	}
	if !Approved(doc) {
		return Session{}, &protocol.RejectedError{Method: method, Message: RejectionText(doc)}
	}
	if err := schema.Validate(method, raw); err != nil {
		return Session{}, err
	}
	id, active := canonicalSessionValue(doc.Get("sessionId"))
	if !active {
		return Session{}, malformed(method, "approved without a usable session id")
	}
	return Session{
		SessionID: id,
		Accounts:  stringList(doc.Get("accounts")),
		ChainID:   chainOr(doc.Get("chainId"), fallbackChain),
		Connected: true,
	}, nil
}

type statusReply struct {
	sessionID   string
	active      bool
	accounts    []string
	hasAccounts bool
	chainID     int64
}

// normalizeStatus accepts either {sessionId, accounts?, chainId?} or a bare
// session id value.
func normalizeStatus(raw json.RawMessage) (statusReply, error) {
	doc, err := parse(protocol.MethodGetSessionStatus, raw)
	if err != nil {
		return statusReply{}, err
	}
	if !doc.IsObject() {
		id, active := canonicalSessionValue(doc)
		return statusReply{sessionID: id, active: active}, nil
	}
	out := statusReply{}
	out.sessionID, out.active = canonicalSessionValue(doc.Get("sessionId"))
	if accounts := doc.Get("accounts"); accounts.IsArray() {
		out.accounts = stringList(accounts)
		out.hasAccounts = true
	}
	out.chainID = chainOr(doc.Get("chainId"), 0)
	return out, nil
}

// normalizeQuery maps replies of read-only methods. A bare scalar is taken as
// the method's single payload field. An explicit non-approval, or an error
// without payload, is a rejection.
func normalizeQuery(method protocol.Method, raw json.RawMessage) (gjson.Result, error) {
	doc, err := parse(method, raw)
	if err != nil {
		return gjson.Result{}, err
	}
	if !doc.IsObject() {
		raw, err = wrapScalar(method, doc)
		if err != nil {
			return gjson.Result{}, err
		}
		doc = gjson.ParseBytes(raw)
	}
	if a := doc.Get("approved"); a.Exists() && a.Type != gjson.True {
		return gjson.Result{}, &protocol.RejectedError{Method: method, Message: RejectionText(doc)}
	}
	if err := schema.Validate(method, raw); err != nil {
		if RejectionText(doc) != protocol.ExtensionNotAvailable {
			return gjson.Result{}, &protocol.RejectedError{Method: method, Message: RejectionText(doc)}
		}
		return gjson.Result{}, err
	}
	return doc, nil
}

func normalizeBalance(raw json.RawMessage, req BalanceRequest) (Balance, error) {
	doc, err := normalizeQuery(protocol.MethodGetWalletBalance, raw)
	if err != nil {
		return Balance{}, err
	}
	field := doc.Get("balance")
	amount := strings.TrimSpace(field.Str)
	if field.Type == gjson.Number {
		amount = field.Raw
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return Balance{}, malformed(protocol.MethodGetWalletBalance, "balance is not numeric")
	}
	return Balance{
		Amount:       amount,
		Value:        value,
		Decimals:     req.Decimals,
		ResourceType: req.ResourceType,
	}, nil
}

func wrapScalar(method protocol.Method, doc gjson.Result) (json.RawMessage, error) {
	reqs, ok := schema.Requirements(method)
	if !ok || len(reqs) != 1 || doc.Type == gjson.Null || doc.IsArray() {
		return nil, malformed(method, "reply is not an object")
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{reqs[0].Path: json.RawMessage(doc.Raw)})
	if err != nil {
		return nil, malformed(method, err.Error())
	}
	return wrapped, nil
}

func parse(method protocol.Method, raw json.RawMessage) (gjson.Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return gjson.Result{}, malformed(method, "empty reply")
	}
	if !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, malformed(method, "reply is not valid json")
	}
	return gjson.ParseBytes(trimmed), nil
}

func parseObject(method protocol.Method, raw json.RawMessage) (gjson.Result, error) {
	doc, err := parse(method, raw)
	if err != nil {
		return gjson.Result{}, err
	}
	if !doc.IsObject() {
		return gjson.Result{}, malformed(method, "reply is not an object")
	}
	return doc, nil
}

func malformed(method protocol.Method, reason string) error {
	return fmt.Errorf("%w: %s: %s", protocol.ErrMalformedResponse, method, reason)
}

func stringList(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	out := make([]string, 0, len(v.Array()))
	v.ForEach(func(_, item gjson.Result) bool {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func chainOr(v gjson.Result, fallback int64) int64 {
	var id int64
	switch v.Type {
	case gjson.Number:
		id = v.Int()
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err == nil {
			id = parsed
		}
	}
	if id <= 0 {
		return fallback
	}
	return id
}
