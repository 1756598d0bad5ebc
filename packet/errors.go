package packet

import "errors"

var (
	ErrTooShort       = errors.New("packet too short")
	ErrInvalidIHL     = errors.New("invalid IHL value")
	ErrNotIPv4        = errors.New("address is not IPv4")
	ErrOptionsLength  = errors.New("options length mismatch")
	ErrNotEchoRequest = errors.New("not an ICMP echo request")
	ErrTTLExpired     = errors.New("ttl expired in transit")
)
