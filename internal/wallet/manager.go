package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/rs/zerolog/log"
)

var ErrConnectInProgress = errors.New("wallet: connect already in progress")

// Caller is the bridge capability the Manager drives.
type Caller interface {
	Call(ctx context.Context, method protocol.Method, params any, chainID int64) (json.RawMessage, error)
	Subscribe(event string, fn func()) func()
	Available() bool
}

var _ Caller = (*rpc.Correlator)(nil)

type Config struct {
	// ChainID is used when a call or reply does not name one.
	ChainID        int64
	RefreshTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ChainID:        protocol.ChainTestnet,
		RefreshTimeout: rpc.DefaultRequestTimeout,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ChainID <= 0 {
		c.ChainID = def.ChainID
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = def.RefreshTimeout
	}
	return c
}

type snapshot struct {
	state   State
	session Session
}

type listener struct {
	id uint64
	fn func(Session)
}

// Manager owns the session with one bridge peer.
type Manager struct {
	caller Caller
	cfg    Config

	// mu serializes writers; epoch counts snapshot writes.
	mu    sync.Mutex
	epoch uint64
	snap  atomic.Pointer[snapshot]

	listenMu     sync.RWMutex
	nextListener uint64
	listeners    []listener

	// emitMu orders deliveries; emitted is the epoch last delivered.
	emitMu  sync.Mutex
	emitted uint64

	unsubscribe func()
	closeOnce   sync.Once
}

// NewManager starts Disconnected and listens for reconnect notifications
// until Close.
func NewManager(caller Caller, cfg Config) *Manager {
	if caller == nil {
		caller = rpc.NewCorrelator(nil, rpc.Config{})
	}
	m := &Manager{caller: caller, cfg: cfg.WithDefaults()}
	m.snap.Store(&snapshot{state: StateDisconnected})
	m.unsubscribe = caller.Subscribe(protocol.EventWalletConnected, m.onWalletConnected)
	return m
}

// Start performs the initial session check. An absent bridge is not an error
// at startup; the manager simply stays Disconnected.
func (m *Manager) Start(ctx context.Context) (Session, error) {
	if !m.caller.Available() {
		log.Info().Msg("wallet: no bridge peer at startup")
		return m.Snapshot(), nil
	}
	return m.RefreshStatus(ctx)
}

// Close stops reacting to reconnect notifications. It is safe to call more
// than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
	return nil
}

func (m *Manager) Snapshot() Session {
	return m.snap.Load().session.clone()
}

func (m *Manager) State() State {
	return m.snap.Load().state
}

func (m *Manager) Config() Config {
	return m.cfg
}

// OnChange registers fn to receive session changes. Callbacks run on the
// goroutine that changed the session, after its write completed, one at a
// time and in write order; a change overtaken by a newer one is skipped, so
// the last callback always matches State. fn must not change the session
// itself.
func (m *Manager) OnChange(fn func(Session)) func() {
	if fn == nil {
		return func() {}
	}
	m.listenMu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenMu.Lock()
			defer m.listenMu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Connect asks the wallet to approve a session for meta. Connecting while
// already Connected returns the current session without a bridge call.
func (m *Manager) Connect(ctx context.Context, meta DappMetadata) (Session, error) {
	meta = meta.Normalize()
	if err := meta.Validate(); err != nil {
		return Session{}, err
	}
	if !m.caller.Available() {
		m.clear("bridge unavailable")
		return Session{}, protocol.ErrBridgeUnavailable
	}

	m.mu.Lock()
	cur := m.snap.Load()
	switch cur.state {
	case StateConnected:
		m.mu.Unlock()
		return cur.session.clone(), nil
	case StateConnecting:
		m.mu.Unlock()
		return Session{}, ErrConnectInProgress
	}
	sess, epoch := m.setLocked(StateConnecting, Session{})
	m.mu.Unlock()
	m.emit(sess, epoch)

	log.Info().Str("dapp", meta.Name).Int64("chain_id", m.cfg.ChainID).Msg("wallet: connecting")
	raw, err := m.caller.Call(ctx, protocol.MethodConnect, meta, m.cfg.ChainID)
	if err == nil {
		sess, err = normalizeConnect(raw, m.cfg.ChainID)
	}

	m.mu.Lock()
	cur = m.snap.Load()
	if err != nil {
		var at uint64
		if m.epoch == epoch || errors.Is(err, protocol.ErrBridgeUnavailable) {
			sess, at = m.setLocked(StateDisconnected, Session{})
		}
		m.mu.Unlock()
		if at != 0 {
			m.emit(sess, at)
		}
		log.Warn().Err(err).Msg("wallet: connect failed")
		return Session{}, err
	}
	if m.epoch != epoch && cur.state != StateConnected {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: disconnected while connecting", protocol.ErrNotConnected)
	}
	sess, at := m.setLocked(StateConnected, sess)
	m.mu.Unlock()
	m.emit(sess, at)
	log.Info().Str("session", sess.SessionID).Strs("accounts", sess.Accounts).Int64("chain_id", sess.ChainID).Msg("wallet: connected")
	return sess, nil
}

// RefreshStatus asks the wallet for its current session and adopts it.
// Accounts and chain are kept from the previous snapshot when the reply
// omits them for the same session.
func (m *Manager) RefreshStatus(ctx context.Context) (Session, error) {
	if !m.caller.Available() {
		m.clear("bridge unavailable")
		return m.Snapshot(), protocol.ErrBridgeUnavailable
	}
	raw, err := m.caller.Call(ctx, protocol.MethodGetSessionStatus, nil, m.cfg.ChainID)
	if err != nil {
		m.observe(err)
		return m.Snapshot(), err
	}
	status, err := normalizeStatus(raw)
	if err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	cur := m.snap.Load()
	if !status.active {
		if cur.state != StateDisconnected {
			log.Debug().Str("previous", cur.state.String()).Msg("wallet: no active session")
		}
		// an unapproved connect is still pending; the wallet has no session yet
		if cur.state == StateConnecting || cur.state == StateDisconnected {
			m.mu.Unlock()
			return m.Snapshot(), nil
		}
		sess, at := m.setLocked(StateDisconnected, Session{})
		m.mu.Unlock()
		m.emit(sess, at)
		return sess, nil
	}

	next := Session{SessionID: status.sessionID, ChainID: status.chainID}
	prev := cur.session
	if status.hasAccounts {
		next.Accounts = status.accounts
	} else if prev.SessionID == status.sessionID {
		next.Accounts = prev.Accounts
	}
	if next.ChainID == 0 {
		next.ChainID = prev.ChainID
	}
	if next.ChainID == 0 {
		next.ChainID = m.cfg.ChainID
	}
	sess, at := m.setLocked(StateConnected, next)
	m.mu.Unlock()
	m.emit(sess, at)
	return sess, nil
}

// Disconnect ends the session. It always leaves the manager Disconnected and
// succeeds when there was no session to end. A failed bridge call is only
// reported when a session was active.
func (m *Manager) Disconnect(ctx context.Context) error {
	wasConnected := m.State() == StateConnected

	var callErr error
	if m.caller.Available() {
		_, callErr = m.caller.Call(ctx, protocol.MethodDisconnect, nil, m.cfg.ChainID)
	}
	m.clear("disconnect")

	if callErr == nil || errors.Is(callErr, protocol.ErrBridgeUnavailable) || !wasConnected {
		return nil
	}
	log.Warn().Err(callErr).Msg("wallet: disconnect call failed; local session cleared")
	return callErr
}

func (m *Manager) onWalletConnected() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
	defer cancel()
	sess, err := m.RefreshStatus(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("wallet: refresh after reconnect notification failed")
		return
	}
	log.Info().Bool("connected", sess.Connected).Msg("wallet: session resynced")
}

// observe clears the session when err shows the bridge is gone.
func (m *Manager) observe(err error) {
	if errors.Is(err, protocol.ErrBridgeUnavailable) {
		m.clear("bridge unavailable")
	}
}

func (m *Manager) clear(reason string) {
	m.mu.Lock()
	if m.snap.Load().state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	sess, at := m.setLocked(StateDisconnected, Session{})
	m.mu.Unlock()
	log.Info().Str("reason", reason).Msg("wallet: session cleared")
	m.emit(sess, at)
}

// setLocked stores a new snapshot and returns it with its epoch. Connected is
// derived from state, and a session whose id is not canonical can never be
// stored as Connected.
func (m *Manager) setLocked(state State, sess Session) (Session, uint64) {
	if state == StateConnected {
		id, active := CanonicalSessionID(sess.SessionID)
		if !active {
			state = StateDisconnected
		}
		sess.SessionID = id
	}
	if state != StateConnected {
		sess = Session{}
	}
	sess.Connected = state == StateConnected
	m.epoch++
	m.snap.Store(&snapshot{state: state, session: sess.clone()})
	return sess.clone(), m.epoch
}

// emit delivers sess, written at epoch, unless a newer write was already
// delivered.
func (m *Manager) emit(sess Session, epoch uint64) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if epoch <= m.emitted {
		log.Debug().Uint64("epoch", epoch).Uint64("delivered", m.emitted).Msg("wallet: skipping stale session change")
		return
	}
	m.emitted = epoch
	m.listenMu.RLock()
	list := append([]listener(nil), m.listeners...)
	m.listenMu.RUnlock()
	for _, l := range list {
		l.fn(sess.clone())
	}
}

func (m *Manager) requireConnected() (Session, error) {
	sess := m.Snapshot()
	if !sess.Connected {
		return Session{}, protocol.ErrNotConnected
	}
	if !m.caller.Available() {
		m.clear("bridge unavailable")
		return Session{}, protocol.ErrBridgeUnavailable
	}
	return sess, nil
}

func (m *Manager) chainFor(sess Session, chainID int64) int64 {
	if chainID > 0 {
		return chainID
	}
	if sess.ChainID > 0 {
		return sess.ChainID
	}
	return m.cfg.ChainID
}
