package packet

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	IPv4MinHeaderLen = 20
	IPv4Version      = 4
	// DefaultTTL is used for every datagram the router originates.
	DefaultTTL = 64
)

// IPv4Header is a decoded RFC 791 header. Options are carried verbatim and never interpreted.
type IPv4Header struct {
	Version        uint8
	IHL            uint8 // header length in 32-bit words
	DSCPECN        uint8
	TotalLength    uint16
	Identification uint16
	FlagsFragment  uint16
	TTL            uint8
	Protocol       uint8
	Checksum       uint16
	Src            netip.Addr
	Dst            netip.Addr
	Options        []byte
}

// HeaderLen is the encoded length of the header in bytes.
func (h *IPv4Header) HeaderLen() int {
	ihl := h.IHL
	if ihl == 0 {
		ihl = 5
	}
	return int(ihl) * 4
}

func ParseIPv4Header(b []byte) (*IPv4Header, error) {
	if len(b) < IPv4MinHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d for an IPv4 header", ErrTooShort, len(b), IPv4MinHeaderLen)
	}
	h := &IPv4Header{
		Version:        b[0] >> 4,
		IHL:            b[0] & 0x0f,
		DSCPECN:        b[1],
		TotalLength:    binary.BigEndian.Uint16(b[2:4]),
		Identification: binary.BigEndian.Uint16(b[4:6]),
		FlagsFragment:  binary.BigEndian.Uint16(b[6:8]),
		TTL:            b[8],
		Protocol:       b[9],
		Checksum:       binary.BigEndian.Uint16(b[10:12]),
		Src:            netip.AddrFrom4([4]byte(b[12:16])),
		Dst:            netip.AddrFrom4([4]byte(b[16:20])),
	}
	if h.IHL < 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIHL, h.IHL)
	}
	hlen := int(h.IHL) * 4
	if len(b) < hlen {
		return nil, fmt.Errorf("%w: IHL %d needs %d bytes, got %d", ErrTooShort, h.IHL, hlen, len(b))
	}
	if hlen > IPv4MinHeaderLen {
		h.Options = make([]byte, hlen-IPv4MinHeaderLen)
		copy(h.Options, b[IPv4MinHeaderLen:hlen])
	}
	return h, nil
}

// Marshal encodes the header. The stored checksum is written as-is, see SetIPv4Checksum.
func (h *IPv4Header) Marshal() ([]byte, error) {
	if !h.Src.Is4() {
		return nil, fmt.Errorf("%w: source %s", ErrNotIPv4, h.Src)
	}
	if !h.Dst.Is4() {
		return nil, fmt.Errorf("%w: destination %s", ErrNotIPv4, h.Dst)
	}
	version := h.Version
	if version == 0 {
		version = IPv4Version
	}
	ihl := h.IHL
	if ihl == 0 {
		ihl = 5
	}
	if ihl < 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIHL, ihl)
	}
	hlen := int(ihl) * 4
	if len(h.Options) != hlen-IPv4MinHeaderLen {
		return nil, fmt.Errorf("%w: IHL %d expects %d option bytes, have %d", ErrOptionsLength, ihl, hlen-IPv4MinHeaderLen, len(h.Options))
	}

	b := make([]byte, hlen)
	b[0] = version<<4 | ihl&0x0f
	b[1] = h.DSCPECN
	binary.BigEndian.PutUint16(b[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(b[4:6], h.Identification)
	binary.BigEndian.PutUint16(b[6:8], h.FlagsFragment)
	b[8] = h.TTL
	b[9] = h.Protocol
	binary.BigEndian.PutUint16(b[10:12], h.Checksum)
	src, dst := h.Src.As4(), h.Dst.As4()
	copy(b[12:16], src[:])
	copy(b[16:20], dst[:])
	copy(b[IPv4MinHeaderLen:], h.Options)
	return b, nil
}

// SetIPv4Checksum recomputes the header checksum of an encoded datagram in place.
func SetIPv4Checksum(b []byte) error {
	if len(b) < IPv4MinHeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrTooShort, len(b))
	}
	hlen := int(b[0]&0x0f) * 4
	if hlen < IPv4MinHeaderLen || hlen > len(b) {
		return fmt.Errorf("%w: %d", ErrInvalidIHL, b[0]&0x0f)
	}
	b[10], b[11] = 0, 0
	binary.BigEndian.PutUint16(b[10:12], CalculateChecksum(b[:hlen]))
	return nil
}

// DecrementTTL returns a copy of the datagram with its TTL lowered by one and
// the header checksum recomputed. A datagram that would leave with TTL 0 is rejected.
func DecrementTTL(b []byte) ([]byte, error) {
	h, err := ParseIPv4Header(b)
	if err != nil {
		return nil, err
	}
	if h.TTL <= 1 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTTLExpired, h.Src, h.Dst)
	}
	out := make([]byte, len(b))
	copy(out, b)
	out[8]--
	if err := SetIPv4Checksum(out); err != nil {
		return nil, err
	}
	return out, nil
}
