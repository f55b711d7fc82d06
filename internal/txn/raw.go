package txn

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/bcs"
	"golang.org/x/crypto/sha3"
)

// payloadEntryFunction is the TransactionPayload variant of an entry call.
const payloadEntryFunction = 2

// RawTransactionSalt domain-separates raw transaction signing messages.
const RawTransactionSalt = "SUPRA::RawTransaction"

// ModuleID names a published Move module.
type ModuleID struct {
	Address Address
	Name    string
}

func (m ModuleID) String() string {
	return m.Address.String() + "::" + m.Name
}

// EntryFunction is a call to a public entry function. Args are already BCS
// encoded.
type EntryFunction struct {
	Module   ModuleID
	Function string
	TypeArgs []TypeTag
	Args     [][]byte
}

func (e EntryFunction) Serialize(s *bcs.Serializer) error {
	if strings.TrimSpace(e.Module.Name) == "" || strings.TrimSpace(e.Function) == "" {
		return fmt.Errorf("txn: entry function needs module and function names")
	}
	e.Module.Address.Serialize(s)
	if err := s.Str(e.Module.Name); err != nil {
		return err
	}
	if err := s.Str(e.Function); err != nil {
		return err
	}
	if err := serializeTypeTags(s, e.TypeArgs); err != nil {
		return err
	}
	if err := s.SequenceLength(len(e.Args)); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := s.ByteVector(arg); err != nil {
			return err
		}
	}
	return nil
}

// RawTransaction is the unsigned transaction the wallet signs.
type RawTransaction struct {
	Sender                  Address
	SequenceNumber          uint64
	Payload                 EntryFunction
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

// Encode returns the canonical bytes of r.
func (r RawTransaction) Encode() ([]byte, error) {
	s := bcs.NewSerializer()
	r.Sender.Serialize(s)
	s.U64(r.SequenceNumber)
	s.VariantIndex(payloadEntryFunction)
	if err := r.Payload.Serialize(s); err != nil {
		return nil, err
	}
	s.U64(r.MaxGasAmount)
	s.U64(r.GasUnitPrice)
	s.U64(r.ExpirationTimestampSecs)
	s.U8(r.ChainID)
	return s.Bytes(), nil
}

// DecodeRawTransaction parses bytes produced by Encode. Trailing bytes are
// an error.
func DecodeRawTransaction(b []byte) (RawTransaction, error) {
	d := bcs.NewDeserializer(b)
	var r RawTransaction
	var err error
	if r.Sender, err = decodeAddress(d); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: sender: %w", err)
	}
	if r.SequenceNumber, err = d.U64(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: sequence number: %w", err)
	}
	variant, err := d.VariantIndex()
	if err != nil {
		return RawTransaction{}, fmt.Errorf("txn: payload: %w", err)
	}
	if variant != payloadEntryFunction {
		return RawTransaction{}, fmt.Errorf("txn: unsupported payload variant %d", variant)
	}
	if r.Payload, err = decodeEntryFunction(d); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: payload: %w", err)
	}
	if r.MaxGasAmount, err = d.U64(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: max gas: %w", err)
	}
	if r.GasUnitPrice, err = d.U64(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: gas price: %w", err)
	}
	if r.ExpirationTimestampSecs, err = d.U64(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: expiration: %w", err)
	}
	if r.ChainID, err = d.U8(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: chain id: %w", err)
	}
	if err := d.Finish(); err != nil {
		return RawTransaction{}, fmt.Errorf("txn: %w", err)
	}
	return r, nil
}

func decodeEntryFunction(d *bcs.Deserializer) (EntryFunction, error) {
	var e EntryFunction
	var err error
	if e.Module.Address, err = decodeAddress(d); err != nil {
		return EntryFunction{}, err
	}
	if e.Module.Name, err = d.Str(); err != nil {
		return EntryFunction{}, err
	}
	if e.Function, err = d.Str(); err != nil {
		return EntryFunction{}, err
	}
	if e.TypeArgs, err = decodeTypeTags(d, 0); err != nil {
		return EntryFunction{}, err
	}
	n, err := d.SequenceLength()
	if err != nil {
		return EntryFunction{}, err
	}
	e.Args = make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := d.ByteVector()
		if err != nil {
			return EntryFunction{}, err
		}
		e.Args = append(e.Args, arg)
	}
	return e, nil
}

// SigningMessage prefixes encoded raw transaction bytes with the hashed salt.
func SigningMessage(rawTxn []byte) []byte {
	prefix := sha3.Sum256([]byte(RawTransactionSalt))
	out := make([]byte, 0, len(prefix)+len(rawTxn))
	out = append(out, prefix[:]...)
	return append(out, rawTxn...)
}

// TransactionHash is the 0x-prefixed sha3-256 of the signing message.
func TransactionHash(rawTxn []byte) string {
	sum := sha3.Sum256(SigningMessage(rawTxn))
	return "0x" + hex.EncodeToString(sum[:])
}
