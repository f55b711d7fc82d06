package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrDuplicateID = errors.New("rpc: correlation id already in flight")

// Transport is the single-reply message channel the correlator multiplexes.
// Inbound carries both replies and notifications.
type Transport interface {
	Send(ctx context.Context, env protocol.Envelope) error
	Inbound() <-chan protocol.Envelope
	Done() <-chan struct{}
}

// Correlator makes a single-reply transport usable by concurrent callers.
type Correlator struct {
	transport Transport
	cfg       Config
	pending   *pendingTable
	observers *observerSet
	notes     chan string

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewCorrelator starts routing t's inbound stream. A nil t yields a correlator
// on which every call fails with protocol.ErrBridgeUnavailable.
func NewCorrelator(t Transport, cfg Config) *Correlator {
	cfg = cfg.WithDefaults()
	c := &Correlator{
		transport: t,
		cfg:       cfg,
		pending:   newPendingTable(),
		observers: newObserverSet(),
		notes:     make(chan string, cfg.NotificationBuffer),
		closed:    make(chan struct{}),
	}
	if t == nil {
		c.shutdown()
		return c
	}
	c.wg.Add(2)
	go c.dispatchLoop()
	go c.notifyLoop()
	return c
}

// Available reports whether a bridge peer is attached and still open.
func (c *Correlator) Available() bool {
	if c == nil || c.transport == nil {
		return false
	}
	if isClosed(c.closed) || isClosed(c.transport.Done()) {
		return false
	}
	return true
}

// Call sends method to the bridge and waits for its correlated reply.
// It never retries: every failure is returned to the caller.
func (c *Correlator) Call(ctx context.Context, method protocol.Method, params any, chainID int64) (json.RawMessage, error) {
	if !c.Available() {
		return nil, protocol.ErrBridgeUnavailable
	}

	id := c.cfg.NewID()
	env, err := protocol.NewRequest(id, method, chainID, params)
	if err != nil {
		return nil, err
	}

	start := c.cfg.Now()
	entry, ok := c.pending.insert(PendingRequest{
		ID:        id,
		Method:    method,
		CreatedAt: start,
		Deadline:  start.Add(c.cfg.RequestTimeout),
	})
	if !ok {
		return nil, fmt.Errorf("%w: id=%q", ErrDuplicateID, id)
	}
	c.cfg.Recorder.PendingRequests(c.pending.len())
	defer func() {
		c.pending.remove(id)
		c.cfg.Recorder.PendingRequests(c.pending.len())
	}()

	// One budget covers the send and the wait, so a peer that stops
	// reading cannot hold the call past its deadline.
	budget := time.Now()
	sendCtx, cancelSend := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancelSend()

	log.Debug().Str("id", id).Str("method", string(method)).Int64("chain_id", chainID).Msg("rpc.Call send")
	if err := c.transport.Send(sendCtx, env); err != nil {
		switch {
		case ctx.Err() != nil:
			c.observe(method, OutcomeCancelled, start)
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, c.timedOut(method, id, start)
		case !c.Available():
			c.observe(method, OutcomeUnavailable, start)
			return nil, fmt.Errorf("%w: send %s: %v", protocol.ErrBridgeUnavailable, method, err)
		}
		c.observe(method, OutcomeSendFailed, start)
		return nil, fmt.Errorf("rpc: send %s: %w", method, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout - time.Since(budget))
	defer timer.Stop()

	select {
	case reply := <-entry.done:
		if reply.Error != "" {
			c.observe(method, OutcomePeerError, start)
			return nil, &protocol.PeerError{Method: method, Message: reply.Error}
		}
		c.observe(method, OutcomeOK, start)
		return reply.Result, nil
	case <-timer.C:
		return nil, c.timedOut(method, id, start)
	case <-ctx.Done():
		c.observe(method, OutcomeCancelled, start)
		return nil, ctx.Err()
	case <-c.closed:
		c.observe(method, OutcomeUnavailable, start)
		return nil, protocol.ErrBridgeUnavailable
	case <-c.transport.Done():
		c.observe(method, OutcomeUnavailable, start)
		return nil, protocol.ErrBridgeUnavailable
	}
}

func (c *Correlator) timedOut(method protocol.Method, id string, start time.Time) error {
	c.observe(method, OutcomeTimeout, start)
	log.Warn().Str("id", id).Str("method", string(method)).Dur("timeout", c.cfg.RequestTimeout).Msg("rpc.Call timed out")
	return fmt.Errorf("%w: method=%s id=%s after %s", protocol.ErrRequestTimeout, method, id, c.cfg.RequestTimeout)
}

// Subscribe registers fn for the named out-of-band event until the returned
// function is called. Observers run on the correlator's notification
// goroutine, never on the reply path, so they may issue calls themselves.
func (c *Correlator) Subscribe(event string, fn func()) func() {
	return c.observers.subscribe(event, fn)
}

// Observers returns how many handlers are registered for event.
func (c *Correlator) Observers(event string) int {
	return c.observers.count(event)
}

// Pending returns the outstanding requests ordered by id.
func (c *Correlator) Pending() []PendingRequest {
	return c.pending.list()
}

// Close stops routing and fails every outstanding call with
// protocol.ErrBridgeUnavailable. It does not close the transport.
func (c *Correlator) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}

func (c *Correlator) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		dropped := c.pending.drain()
		if len(dropped) > 0 {
			log.Debug().Int("pending", len(dropped)).Msg("rpc.Correlator closed with outstanding requests")
		}
		c.cfg.Recorder.PendingRequests(0)
	})
}

func (c *Correlator) dispatchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case <-c.transport.Done():
			c.shutdown()
			return
		case env, ok := <-c.transport.Inbound():
			if !ok {
				c.shutdown()
				return
			}
			c.dispatch(env)
		}
	}
}

func (c *Correlator) dispatch(env protocol.Envelope) {
	switch env.Kind {
	case protocol.KindReply:
		req, ok := c.pending.resolve(env)
		if !ok {
			c.cfg.Recorder.Dropped(DropUnknownReply)
			log.Debug().Str("id", env.ID).Msg("rpc: dropped reply for unknown or expired request")
			return
		}
		log.Debug().
			Str("id", req.ID).
			Str("method", string(req.Method)).
			Dur("elapsed", c.cfg.Now().Sub(req.CreatedAt)).
			Msg("rpc: reply resolved")
	case protocol.KindNotification:
		select {
		case c.notes <- env.Event:
		default:
			c.cfg.Recorder.Dropped(DropNotificationOverflow)
			log.Warn().Str("event", env.Event).Msg("rpc: notification queue full, dropping")
		}
	default:
		c.cfg.Recorder.Dropped(DropUnexpectedKind)
		log.Warn().Str("kind", string(env.Kind)).Str("id", env.ID).Msg("rpc: unexpected inbound envelope")
	}
}

func (c *Correlator) notifyLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case event := <-c.notes:
			n := c.observers.notify(event)
			log.Debug().Str("event", event).Int("observers", n).Msg("rpc: notification delivered")
		}
	}
}

func (c *Correlator) observe(method protocol.Method, outcome string, start time.Time) {
	c.cfg.Recorder.ObserveCall(method, outcome, c.cfg.Now().Sub(start))
}

func newCorrelationID() string {
	return uuid.NewString()
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
