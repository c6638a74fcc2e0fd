package wire

import (
	"encoding/binary"
	"errors"
)

// Opcodes we handle. Everything else is a protocol error.
const (
	OpText  byte = 0x1
	OpClose byte = 0x8
	OpPing  byte = 0x9
	OpPong  byte = 0xA
)

// MaxMessageBytes is the ceiling for a single inbound message payload.
const MaxMessageBytes = 16 * 1024

var ErrFragmented = errors.New("fragmented_frame")
var ErrUnmaskedFrame = errors.New("unmasked_client_frame")
var ErrBadOpcode = errors.New("unsupported_opcode")
var ErrOversized = errors.New("oversized_frame")

// Frame is a single decoded wire frame.
type Frame struct {
	Opcode  byte
	Masked  bool
	Payload []byte
}

// Decode parses one complete frame from the head of buf and reports how many
// bytes it consumed. A nil frame with zero consumed means buf does not yet
// hold a complete frame and the caller should read more. maxPayload <= 0
// disables the size check.
func Decode(buf []byte, maxPayload int64) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	fin := buf[0]&0x80 != 0
	opcode := buf[0] & 0x0F
	masked := buf[1]&0x80 != 0
	length := int64(buf[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(buf) < offset+2 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return nil, 0, nil
		}
		u := binary.BigEndian.Uint64(buf[offset:])
		if u > uint64(1)<<62 {
			return nil, 0, ErrOversized
		}
		length = int64(u)
		offset += 8
	}

	// Check the declared length before buffering the body so an oversized
	// frame aborts immediately instead of growing the receive buffer.
	if maxPayload > 0 && length > maxPayload {
		return nil, 0, ErrOversized
	}
	if !fin {
		return nil, 0, ErrFragmented
	}
	switch opcode {
	case OpText, OpClose, OpPing, OpPong:
	default:
		return nil, 0, ErrBadOpcode
	}

	var maskKey [4]byte
	if masked {
		if len(buf) < offset+4 {
			return nil, 0, nil
		}
		copy(maskKey[:], buf[offset:offset+4])
		offset += 4
	}

	if int64(len(buf)) < int64(offset)+length {
		return nil, 0, nil
	}
	payload := make([]byte, length)
	copy(payload, buf[offset:int64(offset)+length])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	return &Frame{Opcode: opcode, Masked: masked, Payload: payload}, offset + int(length), nil
}

// Encode builds a server frame (FIN set, never masked) around payload,
// picking the 7/16/64-bit length encoding as needed.
func Encode(opcode byte, payload []byte) []byte {
	length := len(payload)
	var header []byte
	switch {
	case length <= 125:
		header = []byte{0x80 | opcode, byte(length)}
	case length <= 0xFFFF:
		header = []byte{0x80 | opcode, 126, 0, 0}
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0] = 0x80 | opcode
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}
	return append(header, payload...)
}

// EncodeClose builds a close frame whose payload is the 2-byte big-endian
// status code followed by a short reason string.
func EncodeClose(code uint16, reason string) []byte {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	copy(payload[2:], reason)
	return Encode(OpClose, payload)
}

// ParseClose extracts the status code and reason from a close frame payload.
func ParseClose(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return 0, ""
	}
	return binary.BigEndian.Uint16(payload), string(payload[2:])
}
