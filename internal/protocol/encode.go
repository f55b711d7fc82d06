package protocol

import (
	"encoding/binary"
	"encoding/json"
	"io"
)

// FrameHeaderSize is the width of the little-endian length prefix of one frame.
const FrameHeaderSize = 4

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes uint32
}

// DefaultLimits mirrors the 1 MiB cap browsers apply to native-messaging hosts.
func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 1024 * 1024}
}

// Encode writes env to w as one length-prefixed JSON frame.
func Encode(w io.Writer, env Envelope, limits Limits) error {
	if err := env.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if limits.MaxFrameBytes > 0 && uint64(len(payload)) > uint64(limits.MaxFrameBytes) {
		return ErrFrameTooLarge
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:FrameHeaderSize], uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	_, err = w.Write(buf)
	return err
}
