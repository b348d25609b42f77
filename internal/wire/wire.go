// Package wire implements the binary client-to-server frame message
// format: a 4-byte little-endian header length, a UTF-8 JSON header, and
// the remaining bytes as the compressed image payload.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// ErrMalformedMessage reports a frame message that cannot be split into a
// header and image payload.
var ErrMalformedMessage = fmt.Errorf("malformed frame message")

// Header carries the per-frame metadata declared by the client.
type Header struct {
	// TS is the client capture time in milliseconds. Nil when the client
	// did not declare one.
	TS *int64 `json:"ts,omitempty"`
}

// CaptureTS returns the declared capture timestamp, or nowMs when the
// client did not declare one.
func (h Header) CaptureTS(nowMs int64) int64 {
	if h.TS == nil {
		return nowMs
	}
	return *h.TS
}

// Message is one demultiplexed client frame.
type Message struct {
	Header Header
	Image  []byte
}

// Parse splits a binary frame into its header and image payload. It has
// no side effects; all failures are ErrMalformedMessage.
func Parse(buf []byte) (Message, error) {
	if len(buf) < 4 {
		return Message{}, fmt.Errorf("%w: %d bytes, need at least 4", ErrMalformedMessage, len(buf))
	}
	headerLen := binary.LittleEndian.Uint32(buf[:4])
	if uint64(headerLen) > uint64(len(buf)-4) {
		return Message{}, fmt.Errorf("%w: header length %d exceeds remaining %d bytes", ErrMalformedMessage, headerLen, len(buf)-4)
	}
	var h Header
	if err := json.Unmarshal(buf[4:4+headerLen], &h); err != nil {
		return Message{}, fmt.Errorf("%w: header: %v", ErrMalformedMessage, err)
	}
	return Message{Header: h, Image: buf[4+headerLen:]}, nil
}

// Encode builds the binary frame for a header and image payload. It is
// the inverse of Parse and is used by test clients and tooling.
func Encode(h Header, image []byte) ([]byte, error) {
	header, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	buf := make([]byte, 4, 4+len(header)+len(image))
	binary.LittleEndian.PutUint32(buf, uint32(len(header)))
	buf = append(buf, header...)
	buf = append(buf, image...)
	return buf, nil
}
