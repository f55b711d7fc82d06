package rpc

import (
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
)

// Call outcomes reported to a Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeUnavailable = "unavailable"
	OutcomeSendFailed  = "send_failed"
	OutcomePeerError   = "peer_error"
)

// Reasons an inbound envelope was discarded.
const (
	DropUnknownReply         = "unknown_reply"
	DropUnexpectedKind       = "unexpected_kind"
	DropNotificationOverflow = "notification_overflow"
)

// Recorder receives correlator telemetry.
type Recorder interface {
	ObserveCall(method protocol.Method, outcome string, d time.Duration)
	PendingRequests(n int)
	Dropped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCall(protocol.Method, string, time.Duration) {}
func (nopRecorder) PendingRequests(int)                                {}
func (nopRecorder) Dropped(string)                                     {}
