package bridge

import (
	"context"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
)

// PipeEnd is one side of an in-memory bridge connection.
type PipeEnd struct {
	*link
	peer *PipeEnd
}

// Pipe returns two connected transports. Closing either end closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{link: newLink(0)}
	b := &PipeEnd{link: newLink(0)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Send(ctx context.Context, env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if p.closed() {
		return ErrClosed
	}
	select {
	case p.peer.inbound <- env:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PipeEnd) Close() error {
	p.shutdown(nil)
	p.peer.shutdown(nil)
	return nil
}
