package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decode reads a single length-prefixed envelope from r.
// A clean end of stream before any header byte is reported as io.EOF.
func Decode(r io.Reader, limits Limits) (Envelope, error) {
	var head [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Envelope{}, io.EOF
		}
		return Envelope{}, ErrTruncated
	}

	size := binary.LittleEndian.Uint32(head[:])
	if limits.MaxFrameBytes > 0 && size > limits.MaxFrameBytes {
		return Envelope{}, ErrFrameTooLarge
	}
	if size == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrInvalidEnvelope)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, ErrTruncated
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
