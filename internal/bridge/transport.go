package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
)

var ErrClosed = errors.New("bridge: transport closed")

// Transport is one live connection to a bridge peer.
type Transport interface {
	Send(ctx context.Context, env protocol.Envelope) error
	// Inbound carries every envelope the peer sends. It is never closed;
	// watch Done for shutdown.
	Inbound() <-chan protocol.Envelope
	Done() <-chan struct{}
	Close() error
}

// Available reports whether t is attached and not yet shut down.
func Available(t Transport) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.Done():
		return false
	default:
		return true
	}
}

const defaultInboundBuffer = 32

// link is the inbound queue and shutdown latch shared by every transport.
type link struct {
	inbound chan protocol.Envelope
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

func newLink(buffer int) *link {
	if buffer <= 0 {
		buffer = defaultInboundBuffer
	}
	return &link{
		inbound: make(chan protocol.Envelope, buffer),
		done:    make(chan struct{}),
	}
}

func (l *link) Inbound() <-chan protocol.Envelope { return l.inbound }
func (l *link) Done() <-chan struct{}             { return l.done }

// Err returns the reason the link shut down, or nil while it is open or
// after an orderly close.
func (l *link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// deliver queues env for the reader; it reports false once the link is down.
func (l *link) deliver(env protocol.Envelope) bool {
	select {
	case l.inbound <- env:
		return true
	case <-l.done:
		return false
	}
}

func (l *link) shutdown(err error) bool {
	fired := false
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
		fired = true
	})
	return fired
}

func (l *link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
