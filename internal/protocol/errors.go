package protocol

import (
	"errors"
	"strings"
)

var (
	ErrBridgeUnavailable   = errors.New("protocol: bridge unavailable")
	ErrNotConnected        = errors.New("protocol: not connected")
	ErrUserRejected        = errors.New("protocol: user rejected")
	ErrRequestTimeout      = errors.New("protocol: request timeout")
	ErrSequenceFetchFailed = errors.New("protocol: sequence fetch failed")
	ErrMalformedResponse   = errors.New("protocol: malformed response")

	ErrInvalidEnvelope = errors.New("protocol: invalid envelope")
	ErrFrameTooLarge   = errors.New("protocol: frame too large")
	ErrTruncated       = errors.New("protocol: truncated data")
)

// ExtensionNotAvailable is the rejection text used when a reply carries neither
// an error nor a message.
const ExtensionNotAvailable = "extension not available"

// RejectedError is an explicit non-approval returned by the wallet.
type RejectedError struct {
	Method  Method
	Message string
}

func (e *RejectedError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = ExtensionNotAvailable
	}
	if e.Method == "" {
		return "protocol: user rejected: " + msg
	}
	return "protocol: user rejected " + string(e.Method) + ": " + msg
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrUserRejected
}

// RejectionMessage returns the wallet-provided text of a rejection, if err is one.
func RejectionMessage(err error) (string, bool) {
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		return "", false
	}
	return rejected.Message, true
}

// PeerError is a reply whose envelope carries an error instead of a result.
type PeerError struct {
	Method  Method
	Message string
}

func (e *PeerError) Error() string {
	return "protocol: peer failed " + string(e.Method) + ": " + e.Message
}

func (e *PeerError) Unwrap() error {
	return ErrMalformedResponse
}
