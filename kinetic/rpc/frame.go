// Package rpc implements the Kinetic wire frame, HMAC authentication,
// and Command/Message envelope described in spec.md §4.3. It has no
// dependency on the transport (kinetic/client owns the socket); this
// package only encodes and decodes bytes.
package rpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/oio-go/blobkit/status"
)

// magicByte is the fixed first byte of every Kinetic frame (spec.md §6).
const magicByte = 'F'

// frameHeaderSize is the fixed 9-byte header: magic + be32 msg_len + be32 val_len.
const frameHeaderSize = 9

// WriteFrame writes one frame: the 9-byte header, then msg, then value.
func WriteFrame(w io.Writer, msg, value []byte) error {
	var header [frameHeaderSize]byte
	header[0] = magicByte
	binary.BigEndian.PutUint32(header[1:5], uint32(len(msg)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(value)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("rpc: write frame header: %w", err)
	}
	if len(msg) > 0 {
		if _, err := w.Write(msg); err != nil {
			return fmt.Errorf("rpc: write frame message: %w", err)
		}
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return fmt.Errorf("rpc: write frame value: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one frame, rejecting message_length/value_length beyond
// maxFrameSize with a ProtocolError status (spec.md §4.3: "Frame size
// limit ... enforced on receive; overflow → ProtocolError").
func ReadFrame(r io.Reader, maxFrameSize uint32) (msg, value []byte, st status.Status) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, nil, status.New(status.NetworkError, "rpc: read frame header: %v", err)
	}
	if header[0] != magicByte {
		return nil, nil, status.New(status.ProtocolError, "rpc: bad magic byte %#x", header[0])
	}

	msgLen := binary.BigEndian.Uint32(header[1:5])
	valLen := binary.BigEndian.Uint32(header[5:9])
	if msgLen > maxFrameSize || valLen > maxFrameSize {
		return nil, nil, status.New(status.ProtocolError, "rpc: frame exceeds max_frame_size (msg=%d val=%d max=%d)", msgLen, valLen, maxFrameSize)
	}

	msg = make([]byte, msgLen)
	if msgLen > 0 {
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, nil, status.New(status.NetworkError, "rpc: read frame message: %v", err)
		}
	}
	value = make([]byte, valLen)
	if valLen > 0 {
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, nil, status.New(status.NetworkError, "rpc: read frame value: %v", err)
		}
	}
	return msg, value, status.Ok()
}
