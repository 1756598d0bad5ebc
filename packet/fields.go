package packet

import (
	"fmt"
	"net/netip"
)

func GetSrcIPFromPacket(b []byte) (netip.Addr, error) {
	if len(b) < 16 {
		return netip.Addr{}, fmt.Errorf("%w: %d bytes, cannot read source address", ErrTooShort, len(b))
	}
	return netip.AddrFrom4([4]byte(b[12:16])), nil
}

func GetDestIPFromPacket(b []byte) (netip.Addr, error) {
	if len(b) < IPv4MinHeaderLen {
		return netip.Addr{}, fmt.Errorf("%w: %d bytes, cannot read destination address", ErrTooShort, len(b))
	}
	return netip.AddrFrom4([4]byte(b[16:20])), nil
}

func GetIPProtocolFromPacket(b []byte) (uint8, error) {
	if len(b) < 10 {
		return 0, fmt.Errorf("%w: %d bytes, cannot read protocol", ErrTooShort, len(b))
	}
	return b[9], nil
}

// IsIPv4 reports whether b starts with a plausible IPv4 header.
func IsIPv4(b []byte) bool {
	if len(b) < IPv4MinHeaderLen || b[0]>>4 != IPv4Version {
		return false
	}
	hlen := int(b[0]&0x0f) * 4
	return hlen >= IPv4MinHeaderLen && hlen <= len(b)
}
