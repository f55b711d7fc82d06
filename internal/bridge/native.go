package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/rs/zerolog/log"
)

// NativeTransport speaks the browser native-messaging framing (uint32
// little-endian length, then JSON) over a byte stream such as a host's stdio.
type NativeTransport struct {
	*link
	r      io.Reader
	w      io.Writer
	limits protocol.Limits

	writeMu sync.Mutex
}

// NewNativeTransport starts reading frames from r. Replies are written to w.
func NewNativeTransport(r io.Reader, w io.Writer, limits protocol.Limits) *NativeTransport {
	if limits.MaxFrameBytes == 0 {
		limits = protocol.DefaultLimits()
	}
	n := &NativeTransport{
		link:   newLink(0),
		r:      r,
		w:      w,
		limits: limits,
	}
	go n.readLoop()
	return n
}

// Send writes env as one frame. A writer that stalls past ctx leaves the
// frame to finish in the background; frames never interleave.
func (n *NativeTransport) Send(ctx context.Context, env protocol.Envelope) error {
	if n.closed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() {
		n.writeMu.Lock()
		defer n.writeMu.Unlock()
		errc <- n.write(env)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("bridge.native: write stalled")
		return ctx.Err()
	case <-n.done:
		return ErrClosed
	}
}

func (n *NativeTransport) write(env protocol.Envelope) error {
	if n.closed() {
		return ErrClosed
	}
	if err := protocol.Encode(n.w, env, n.limits); err != nil {
		if errors.Is(err, protocol.ErrFrameTooLarge) || errors.Is(err, protocol.ErrInvalidEnvelope) {
			return err
		}
		n.shutdown(err)
		return err
	}
	return nil
}

// Close stops the transport and closes the underlying stream halves that
// support it.
func (n *NativeTransport) Close() error {
	if !n.shutdown(nil) {
		return nil
	}
	var errs []error
	if c, ok := n.r.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := n.w.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (n *NativeTransport) readLoop() {
	for {
		env, err := protocol.Decode(n.r, n.limits)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Debug().Msg("bridge.native: peer closed stream")
			n.shutdown(nil)
			return
		case errors.Is(err, protocol.ErrInvalidEnvelope):
			// frame boundary is intact; skip the bad payload
			log.Warn().Err(err).Msg("bridge.native: discarding invalid frame")
			continue
		default:
			if !n.closed() {
				log.Warn().Err(err).Msg("bridge.native: read failed")
			}
			n.shutdown(err)
			return
		}
		if !n.deliver(env) {
			return
		}
	}
}
