package walletsim

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/txn"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSeed = errors.New("walletsim: seed must be 32 bytes of hex")

// DefaultRejectMessage is what a declining user "says".
const DefaultRejectMessage = "User rejected the request"

// ed25519 single-key authentication scheme byte.
const schemeEd25519 = 0x00

// Policy decides how the simulated user answers prompts.
type Policy struct {
	AutoApprove   bool
	RejectMessage string
	// Delay is applied before every reply.
	Delay time.Duration
	// Silent methods are never answered.
	Silent []protocol.Method
}

type Config struct {
	ChainID int64
	// Balance is reported verbatim as the account balance.
	Balance string
	// Seed is the hex ed25519 seed; empty generates a fresh key.
	Seed   string
	Policy Policy
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{
		ChainID: protocol.ChainTestnet,
		Balance: "100.00000000",
		Policy: Policy{
			AutoApprove:   true,
			RejectMessage: DefaultRejectMessage,
		},
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ChainID <= 0 {
		c.ChainID = def.ChainID
	}
	if strings.TrimSpace(c.Balance) == "" {
		c.Balance = def.Balance
	}
	if strings.TrimSpace(c.Policy.RejectMessage) == "" {
		c.Policy.RejectMessage = def.Policy.RejectMessage
	}
	if c.Policy.Delay < 0 {
		c.Policy.Delay = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Wallet holds one account and at most one dApp session.
type Wallet struct {
	cfg     Config
	key     ed25519.PrivateKey
	address txn.Address
	builder *txn.Builder

	mu          sync.Mutex
	autoApprove bool
	silent      map[protocol.Method]struct{}
	session     string
	sequence    uint64
	submitted   []string
	peers       map[bridge.Transport]struct{}
}

func New(cfg Config) (*Wallet, error) {
	cfg = cfg.WithDefaults()
	key, err := keyFromSeed(cfg.Seed)
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		cfg:         cfg,
		key:         key,
		address:     DeriveAddress(key.Public().(ed25519.PublicKey)),
		autoApprove: cfg.Policy.AutoApprove,
		silent:      make(map[protocol.Method]struct{}, len(cfg.Policy.Silent)),
		peers:       make(map[bridge.Transport]struct{}),
	}
	for _, m := range cfg.Policy.Silent {
		w.silent[m] = struct{}{}
	}
	w.builder = txn.NewBuilder(localAccount{w}, w, txn.Config{ChainID: cfg.ChainID, Now: cfg.Now})
	return w, nil
}

// DeriveAddress returns sha3-256(public key || scheme).
func DeriveAddress(pub ed25519.PublicKey) txn.Address {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{schemeEd25519})
	var addr txn.Address
	copy(addr[:], h.Sum(nil))
	return addr
}

func keyFromSeed(seed string) (ed25519.PrivateKey, error) {
	seed = strings.TrimPrefix(strings.TrimSpace(seed), "0x")
	if seed == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	}
	raw, err := hex.DecodeString(seed)
	if err != nil || len(raw) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

func (w *Wallet) Address() txn.Address {
	return w.address
}

func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.key.Public().(ed25519.PublicKey)
}

func (w *Wallet) ChainID() int64 {
	return w.cfg.ChainID
}

// SessionID returns the active session id, or "" when no dApp is connected.
func (w *Wallet) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// SetAutoApprove flips how later prompts are answered.
func (w *Wallet) SetAutoApprove(v bool) {
	w.mu.Lock()
	w.autoApprove = v
	w.mu.Unlock()
}

// SequenceNumber reports the next sequence number of the wallet's own
// account; it makes the wallet usable as the client's ledger.
func (w *Wallet) SequenceNumber(_ context.Context, account txn.Address) (uint64, error) {
	if account != w.address {
		return 0, fmt.Errorf("%w: unknown account %s", protocol.ErrSequenceFetchFailed, account)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sequence, nil
}

// Submitted returns the hashes of accepted transactions, oldest first.
func (w *Wallet) Submitted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.submitted...)
}

func (w *Wallet) approving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autoApprove
}

func (w *Wallet) isSilent(m protocol.Method) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.silent[m]
	return ok
}
