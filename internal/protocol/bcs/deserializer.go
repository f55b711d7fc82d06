package bcs

import (
	"encoding/binary"
)

// Deserializer reads canonical bytes produced by Serializer.
type Deserializer struct {
	data []byte
	off  int
}

func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{data: data}
}

func (d *Deserializer) Remaining() int {
	return len(d.data) - d.off
}

// Finish reports ErrTrailingBytes when input was not fully consumed.
func (d *Deserializer) Finish() error {
	if d.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (d *Deserializer) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, ErrTruncated
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *Deserializer) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (d *Deserializer) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Deserializer) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Deserializer) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Deserializer) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Deserializer) U128() (lo, hi uint64, err error) {
	if lo, err = d.U64(); err != nil {
		return 0, 0, err
	}
	if hi, err = d.U64(); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// ULEB128 reads a minimal-form unsigned LEB128 value that fits in u32.
func (d *Deserializer) ULEB128() (uint32, error) {
	var value uint64
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := d.U8()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift > 0 && b == 0 {
				return 0, ErrNonCanonicalULEB
			}
			if value > MaxSequenceLength {
				return 0, ErrULEB128Overflow
			}
			return uint32(value), nil
		}
	}
	return 0, ErrULEB128Overflow
}

func (d *Deserializer) SequenceLength() (int, error) {
	n, err := d.ULEB128()
	if err != nil {
		return 0, err
	}
	if uint64(n) > uint64(d.Remaining()) {
		// every element is at least one byte wide
		return 0, ErrLengthOutOfBounds
	}
	return int(n), nil
}

func (d *Deserializer) VariantIndex() (uint32, error) {
	return d.ULEB128()
}

// FixedBytes reads exactly n bytes and returns a copy.
func (d *Deserializer) FixedBytes(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Deserializer) ByteVector() ([]byte, error) {
	n, err := d.SequenceLength()
	if err != nil {
		return nil, err
	}
	return d.FixedBytes(n)
}

func (d *Deserializer) Str() (string, error) {
	b, err := d.ByteVector()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
