package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ValueKind is the JSON shape a reply field must have.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
	KindStringArray
	// KindNumeric accepts a JSON number or a decimal string.
	KindNumeric
	// KindScalar accepts a JSON string or number.
	KindScalar
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "string[]"
	case KindNumeric:
		return "numeric"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

type Requirement struct {
	Path string
	Kind ValueKind
}

type ValidationError struct {
	Method protocol.Method
	Path   string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema: method=%s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("schema: method=%s field=%s: %s", e.Method, e.Path, e.Reason)
}

func (e ValidationError) Unwrap() error {
	return protocol.ErrMalformedResponse
}

// requirements lists the payload an approved reply must carry per method.
var requirements = map[protocol.Method][]Requirement{
	protocol.MethodConnect: {
		{"sessionId", KindScalar},
		{"accounts", KindStringArray},
	},
	protocol.MethodGetSessionStatus: {},
	protocol.MethodGetWalletAddress: {
		{"address", KindString},
	},
	protocol.MethodGetWalletBalance: {
		{"balance", KindNumeric},
	},
	protocol.MethodSignMessage: {
		{"signature", KindString},
	},
	protocol.MethodCreateRawTransactionBuffer: {
		{"rawTxn", KindString},
	},
	protocol.MethodSignAndSendRawTransaction: {
		{"txHash", KindString},
	},
	protocol.MethodDisconnect: {},
}

// Requirements returns a copy of the required payload fields of method.
func Requirements(method protocol.Method) ([]Requirement, bool) {
	reqs, ok := requirements[method]
	if !ok {
		return nil, false
	}
	out := make([]Requirement, len(reqs))
	copy(out, reqs)
	return out, true
}

// Validate enforces required reply fields and their shapes for method.
// Unknown fields are ignored.
func Validate(method protocol.Method, reply []byte) error {
	log.Debug().Str("method", string(method)).Int("bytes", len(reply)).Msg("schema.Validate")
	reqs, ok := requirements[method]
	if !ok {
		return ValidationError{Method: method, Reason: "unknown method"}
	}
	if len(reqs) == 0 {
		return nil
	}
	if !gjson.ValidBytes(reply) {
		return ValidationError{Method: method, Reason: "reply is not valid json"}
	}
	doc := gjson.ParseBytes(reply)
	if !doc.IsObject() {
		return ValidationError{Method: method, Reason: "reply is not an object"}
	}
	for _, req := range reqs {
		field := doc.Get(req.Path)
		if !field.Exists() || field.Type == gjson.Null {
			log.Warn().Str("method", string(method)).Str("field", req.Path).Msg("schema.Validate missing field")
			return ValidationError{Method: method, Path: req.Path, Reason: "missing required field"}
		}
		if !matches(field, req.Kind) {
			log.Warn().
				Str("method", string(method)).
				Str("field", req.Path).
				Str("want", req.Kind.String()).
				Msg("schema.Validate type mismatch")
			return ValidationError{Method: method, Path: req.Path, Reason: "type mismatch: want " + req.Kind.String()}
		}
	}
	return nil
}

func matches(v gjson.Result, kind ValueKind) bool {
	switch kind {
	case KindString:
		return v.Type == gjson.String
	case KindNumber:
		return v.Type == gjson.Number
	case KindBool:
		return v.IsBool()
	case KindStringArray:
		if !v.IsArray() {
			return false
		}
		ok := true
		v.ForEach(func(_, item gjson.Result) bool {
			ok = item.Type == gjson.String
			return ok
		})
		return ok
	case KindNumeric:
		if v.Type == gjson.Number {
			return true
		}
		if v.Type != gjson.String {
			return false
		}
		_, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return err == nil
	case KindScalar:
		return v.Type == gjson.String || v.Type == gjson.Number
	default:
		return false
	}
}
