package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
)

const (
	KindWebSocket = "ws"
	KindNative    = "native"
)

// Options selects and configures the transport Open builds.
type Options struct {
	Kind         string
	URL          string
	PairingToken string
	RPC          rpc.Config

	// Native transport streams; default to the process stdio.
	Stdin  io.Reader
	Stdout io.Writer
	Limits protocol.Limits
}

// Open attaches to the bridge peer described by opts. Any failure to attach
// is reported as protocol.ErrBridgeUnavailable.
func Open(ctx context.Context, opts Options) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindWebSocket:
		return DialWS(ctx, opts.URL, opts.PairingToken, opts.RPC)
	case KindNative:
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		return NewNativeTransport(in, out, opts.Limits), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport kind %q", protocol.ErrBridgeUnavailable, opts.Kind)
	}
}
