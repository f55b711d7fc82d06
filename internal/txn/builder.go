package txn

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/wallet"
	"github.com/rs/zerolog/log"
)

// Wallet is the session the builder signs through.
type Wallet interface {
	Snapshot() wallet.Session
	SignAndSendRawTransaction(ctx context.Context, sub wallet.RawTxnSubmission) (wallet.SignedResult, error)
}

var _ Wallet = (*wallet.Manager)(nil)

type Config struct {
	MaxGasAmount  uint64
	GasUnitPrice  uint64
	ExpirationTTL time.Duration
	// ChainID is used when neither the request nor the session names one.
	ChainID     int64
	Description string
	Now         func() time.Time
}

func DefaultConfig() Config {
	return Config{
		MaxGasAmount:  500000,
		GasUnitPrice:  100,
		ExpirationTTL: 300 * time.Second,
		ChainID:       protocol.ChainTestnet,
		Description:   "Send tokens",
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxGasAmount == 0 {
		c.MaxGasAmount = def.MaxGasAmount
	}
	if c.GasUnitPrice == 0 {
		c.GasUnitPrice = def.GasUnitPrice
	}
	if c.ExpirationTTL < time.Second {
		c.ExpirationTTL = def.ExpirationTTL
	}
	if c.ChainID <= 0 {
		c.ChainID = def.ChainID
	}
	if strings.TrimSpace(c.Description) == "" {
		c.Description = def.Description
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Builder turns transfer intents into signed, submitted transactions.
type Builder struct {
	wallet Wallet
	ledger SequenceSource
	cfg    Config
}

func NewBuilder(w Wallet, ledger SequenceSource, cfg Config) *Builder {
	return &Builder{wallet: w, ledger: ledger, cfg: cfg.WithDefaults()}
}

// Sender returns the active account of the wallet session.
func (b *Builder) Sender() (Address, error) {
	addr, ok := b.wallet.Snapshot().Address()
	if !ok {
		return Address{}, protocol.ErrNotConnected
	}
	return ParseAddress(addr)
}

// Build resolves the sender and sequence number and assembles the raw
// transaction. It sends nothing.
func (b *Builder) Build(ctx context.Context, req RawTxnRequest) (RawTransaction, error) {
	sess := b.wallet.Snapshot()
	if !sess.Connected {
		return RawTransaction{}, protocol.ErrNotConnected
	}
	senderText := strings.TrimSpace(req.Sender)
	if senderText == "" {
		addr, ok := sess.Address()
		if !ok {
			return RawTransaction{}, protocol.ErrNotConnected
		}
		senderText = addr
	}
	sender, err := ParseAddress(senderText)
	if err != nil {
		return RawTransaction{}, fmt.Errorf("txn: sender: %w", err)
	}
	module, err := ParseAddress(req.ModuleAddress)
	if err != nil {
		return RawTransaction{}, fmt.Errorf("txn: module address: %w", err)
	}

	chainID := req.ChainID
	if chainID <= 0 {
		chainID = sess.ChainID
	}
	if chainID <= 0 {
		chainID = b.cfg.ChainID
	}
	if chainID > 255 {
		return RawTransaction{}, fmt.Errorf("txn: chain id %d does not fit in u8", chainID)
	}

	now := b.cfg.Now()
	expiration := req.ExpirationTimestampSecs
	if expiration == 0 {
		expiration = uint64(now.Add(b.cfg.ExpirationTTL).Unix())
	}
	if expiration <= uint64(now.Unix()) {
		return RawTransaction{}, fmt.Errorf("txn: expiration %d is not in the future", expiration)
	}

	seq, err := b.ledger.SequenceNumber(ctx, sender)
	if err != nil {
		return RawTransaction{}, err
	}

	raw := RawTransaction{
		Sender:         sender,
		SequenceNumber: seq,
		Payload: EntryFunction{
			Module:   ModuleID{Address: module, Name: strings.TrimSpace(req.ModuleName)},
			Function: strings.TrimSpace(req.FunctionName),
			TypeArgs: req.TypeArgs,
			Args:     req.Args,
		},
		MaxGasAmount:            orDefault(req.MaxGasAmount, b.cfg.MaxGasAmount),
		GasUnitPrice:            orDefault(req.GasUnitPrice, b.cfg.GasUnitPrice),
		ExpirationTimestampSecs: expiration,
		ChainID:                 uint8(chainID),
	}
	return raw, nil
}

// CreateRawTransactionBuffer builds req and returns its base64 encoding.
func (b *Builder) CreateRawTransactionBuffer(ctx context.Context, req RawTxnRequest) (string, RawTransaction, error) {
	raw, err := b.Build(ctx, req)
	if err != nil {
		return "", RawTransaction{}, err
	}
	encoded, err := raw.Encode()
	if err != nil {
		return "", RawTransaction{}, err
	}
	log.Debug().
		Str("sender", raw.Sender.String()).
		Uint64("sequence", raw.SequenceNumber).
		Str("function", raw.Payload.Module.String()+"::"+raw.Payload.Function).
		Int("bytes", len(encoded)).
		Msg("txn: raw transaction built")
	return base64.StdEncoding.EncodeToString(encoded), raw, nil
}

// SignAndSendRawTransaction submits an encoded transaction with the
// configured description.
func (b *Builder) SignAndSendRawTransaction(ctx context.Context, rawTxn string, chainID int64) (wallet.SignedResult, error) {
	return b.wallet.SignAndSendRawTransaction(ctx, wallet.RawTxnSubmission{
		RawTxn:  rawTxn,
		ChainID: chainID,
		Meta:    map[string]any{"description": b.cfg.Description},
	})
}

// SendTransfer runs the whole pipeline and stops at the first failure.
func (b *Builder) SendTransfer(ctx context.Context, intent TransferIntent) (wallet.SignedResult, error) {
	sender, err := b.Sender()
	if err != nil {
		return wallet.SignedResult{}, err
	}
	req, err := intent.Request(sender.String())
	if err != nil {
		return wallet.SignedResult{}, err
	}
	buf, raw, err := b.CreateRawTransactionBuffer(ctx, req)
	if err != nil {
		return wallet.SignedResult{}, err
	}
	return b.SignAndSendRawTransaction(ctx, buf, int64(raw.ChainID))
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}
