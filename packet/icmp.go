package packet

import (
	"encoding/binary"
	"fmt"
)

const (
	ICMPProtocol        = 1
	ICMPHeaderLen       = 8
	ICMPTypeEchoReply   = 0
	ICMPTypeEchoRequest = 8
)

// ICMPHeader covers the echo layout of RFC 792; Data runs to the end of the buffer.
type ICMPHeader struct {
	Type       uint8
	Code       uint8
	Checksum   uint16
	Identifier uint16
	Sequence   uint16
	Data       []byte
}

func ParseICMPHeader(b []byte) (*ICMPHeader, error) {
	if len(b) < ICMPHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d for an ICMP header", ErrTooShort, len(b), ICMPHeaderLen)
	}
	h := &ICMPHeader{
		Type:       b[0],
		Code:       b[1],
		Checksum:   binary.BigEndian.Uint16(b[2:4]),
		Identifier: binary.BigEndian.Uint16(b[4:6]),
		Sequence:   binary.BigEndian.Uint16(b[6:8]),
	}
	if len(b) > ICMPHeaderLen {
		h.Data = make([]byte, len(b)-ICMPHeaderLen)
		copy(h.Data, b[ICMPHeaderLen:])
	}
	return h, nil
}

// Marshal encodes the message with the stored checksum.
func (h *ICMPHeader) Marshal() []byte {
	b := make([]byte, ICMPHeaderLen+len(h.Data))
	b[0] = h.Type
	b[1] = h.Code
	binary.BigEndian.PutUint16(b[2:4], h.Checksum)
	binary.BigEndian.PutUint16(b[4:6], h.Identifier)
	binary.BigEndian.PutUint16(b[6:8], h.Sequence)
	copy(b[ICMPHeaderLen:], h.Data)
	return b
}

// MarshalWithChecksum computes the checksum over the encoded message, stores it in h and returns the encoding.
func (h *ICMPHeader) MarshalWithChecksum() []byte {
	h.Checksum = 0
	b := h.Marshal()
	h.Checksum = CalculateChecksum(b)
	binary.BigEndian.PutUint16(b[2:4], h.Checksum)
	return b
}
