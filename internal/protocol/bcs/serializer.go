package bcs

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrTruncated         = errors.New("bcs: truncated data")
	ErrTrailingBytes     = errors.New("bcs: trailing bytes")
	ErrInvalidBool       = errors.New("bcs: invalid bool value")
	ErrNonCanonicalULEB  = errors.New("bcs: non-canonical uleb128")
	ErrULEB128Overflow   = errors.New("bcs: uleb128 overflows u32")
	ErrLengthOutOfBounds = errors.New("bcs: length out of bounds")
)

// MaxSequenceLength bounds every length prefix.
const MaxSequenceLength = math.MaxUint32

// Serializer accumulates canonical bytes. The zero value is ready to use.
type Serializer struct {
	buf []byte
}

func NewSerializer() *Serializer {
	return &Serializer{buf: make([]byte, 0, 64)}
}

// Bytes returns a copy of everything written so far.
func (s *Serializer) Bytes() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

func (s *Serializer) Len() int {
	return len(s.buf)
}

func (s *Serializer) Bool(v bool) {
	if v {
		s.buf = append(s.buf, 1)
		return
	}
	s.buf = append(s.buf, 0)
}

func (s *Serializer) U8(v uint8) {
	s.buf = append(s.buf, v)
}

func (s *Serializer) U16(v uint16) {
	s.buf = binary.LittleEndian.AppendUint16(s.buf, v)
}

func (s *Serializer) U32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

func (s *Serializer) U64(v uint64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
}

// U128 writes a 128-bit unsigned integer given as low and high 64-bit halves.
func (s *Serializer) U128(lo, hi uint64) {
	s.U64(lo)
	s.U64(hi)
}

// ULEB128 writes v in minimal unsigned LEB128 form.
func (s *Serializer) ULEB128(v uint32) {
	for v >= 0x80 {
		s.buf = append(s.buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
	s.buf = append(s.buf, byte(v))
}

// SequenceLength writes a length prefix.
func (s *Serializer) SequenceLength(n int) error {
	if n < 0 || uint64(n) > MaxSequenceLength {
		return ErrLengthOutOfBounds
	}
	s.ULEB128(uint32(n))
	return nil
}

// VariantIndex writes an enum discriminant.
func (s *Serializer) VariantIndex(i uint32) {
	s.ULEB128(i)
}

// FixedBytes writes v verbatim with no length prefix.
func (s *Serializer) FixedBytes(v []byte) {
	s.buf = append(s.buf, v...)
}

// ByteVector writes a length-prefixed byte sequence.
func (s *Serializer) ByteVector(v []byte) error {
	if err := s.SequenceLength(len(v)); err != nil {
		return err
	}
	s.FixedBytes(v)
	return nil
}

func (s *Serializer) Str(v string) error {
	return s.ByteVector([]byte(v))
}

// SerializeU64 returns the canonical encoding of one u64.
func SerializeU64(v uint64) []byte {
	s := NewSerializer()
	s.U64(v)
	return s.Bytes()
}

func SerializeU8(v uint8) []byte {
	return []byte{v}
}

func SerializeBool(v bool) []byte {
	s := NewSerializer()
	s.Bool(v)
	return s.Bytes()
}

func SerializeStr(v string) ([]byte, error) {
	s := NewSerializer()
	if err := s.Str(v); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

func SerializeByteVector(v []byte) ([]byte, error) {
	s := NewSerializer()
	if err := s.ByteVector(v); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}
