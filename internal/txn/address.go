package txn

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/bcs"
)

const AddressLength = 32

var ErrInvalidAddress = errors.New("txn: invalid address")

// Address is a 32-byte account address. It encodes as raw bytes with no
// length prefix.
type Address [AddressLength]byte

// ParseAddress accepts hex with or without 0x. Short forms such as 0x1 are
// left-padded with zeros.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return Address{}, fmt.Errorf("%w: %q is empty", ErrInvalidAddress, raw)
	}
	if len(s) > AddressLength*2 {
		return Address{}, fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidAddress, raw, AddressLength)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, raw, err)
	}
	var a Address
	copy(a[AddressLength-len(decoded):], decoded)
	return a, nil
}

// String renders the long 0x-prefixed form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) Serialize(s *bcs.Serializer) {
	s.FixedBytes(a[:])
}

// SerializeAddress parses raw and returns its BCS bytes.
func SerializeAddress(raw string) ([]byte, error) {
	a, err := ParseAddress(raw)
	if err != nil {
		return nil, err
	}
	s := bcs.NewSerializer()
	a.Serialize(s)
	return s.Bytes(), nil
}

func decodeAddress(d *bcs.Deserializer) (Address, error) {
	raw, err := d.FixedBytes(AddressLength)
	if err != nil {
		return Address{}, err
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// DecodeAddress reads exactly one encoded address.
func DecodeAddress(b []byte) (Address, error) {
	d := bcs.NewDeserializer(b)
	a, err := decodeAddress(d)
	if err != nil {
		return Address{}, err
	}
	return a, d.Finish()
}
