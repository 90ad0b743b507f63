package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 4

	// DefaultMaxMessageSize is the default maximum payload size (16 MB).
	DefaultMaxMessageSize = 16 << 20

	// MaxLogFrameDataSize is the maximum payload size copied into protocol
	// log events (4 KB). Larger payloads are truncated.
	MaxLogFrameDataSize = 4096
)

// ErrMessageTooLarge indicates a payload exceeds the maximum message size.
var ErrMessageTooLarge = errors.New("message too large")

// Header is the fixed-width descriptor that precedes every framed payload.
//
//	┌──────────────────────┬───────────────────────┐
//	│ length (u32, BE, 4B) │ payload (length bytes) │
//	└──────────────────────┴───────────────────────┘
type Header struct {
	// Length is the payload length in bytes.
	Length uint32
}

// DecodeHeader reads a header from the front of b. It returns false when b
// holds fewer than HeaderSize bytes; the caller should wait for more data.
func DecodeHeader(b []byte) (Header, bool) {
	if len(b) < HeaderSize {
		return Header{}, false
	}
	return Header{Length: binary.BigEndian.Uint32(b[:HeaderSize])}, true
}

// FrameSize returns the total wire size of the frame this header describes.
func (h Header) FrameSize() int {
	return HeaderSize + int(h.Length)
}

// Check validates the declared length against maxSize.
func (h Header) Check(maxSize uint32) error {
	if h.Length > maxSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, h.Length, maxSize)
	}
	return nil
}

// PutHeader writes a header declaring length into the first HeaderSize
// bytes of dst.
func PutHeader(dst []byte, length uint32) {
	binary.BigEndian.PutUint32(dst[:HeaderSize], length)
}

// EncodeFrame returns header ++ payload as one contiguous slice.
// Callers must keep len(payload) within uint32 range.
func EncodeFrame(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, FrameSize(len(payload))), payload)
}

// AppendFrame appends header ++ payload to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return HeaderSize + payloadSize
}
