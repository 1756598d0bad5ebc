package packet

import (
	"fmt"
	"net/netip"
)

// payload returns the bytes following the IP header, bounded by TotalLength when it is sane.
func payload(b []byte, h *IPv4Header) []byte {
	end := len(b)
	if tl := int(h.TotalLength); tl >= h.HeaderLen() && tl < end {
		end = tl
	}
	return b[h.HeaderLen():end]
}

// IsEchoRequest reports whether b is an IPv4 datagram carrying an ICMP echo request.
func IsEchoRequest(b []byte) bool {
	h, err := ParseIPv4Header(b)
	if err != nil || h.Protocol != ICMPProtocol {
		return false
	}
	p := payload(b, h)
	return len(p) >= ICMPHeaderLen && p[0] == ICMPTypeEchoRequest
}

// CreateICMPEchoReply builds the echo reply the router at routerIP sends for request.
// The reply mirrors identifier, sequence and data, and carries fresh checksums.
func CreateICMPEchoReply(request []byte, routerIP netip.Addr) ([]byte, error) {
	if !routerIP.Is4() {
		return nil, fmt.Errorf("%w: router address %s", ErrNotIPv4, routerIP)
	}
	ip, err := ParseIPv4Header(request)
	if err != nil {
		return nil, fmt.Errorf("parse request ip header: %w", err)
	}
	if ip.Protocol != ICMPProtocol {
		return nil, fmt.Errorf("%w: ip protocol %d", ErrNotEchoRequest, ip.Protocol)
	}
	req, err := ParseICMPHeader(payload(request, ip))
	if err != nil {
		return nil, fmt.Errorf("parse request icmp header: %w", err)
	}
	if req.Type != ICMPTypeEchoRequest {
		return nil, fmt.Errorf("%w: type %d", ErrNotEchoRequest, req.Type)
	}

	reply := &ICMPHeader{
		Type:       ICMPTypeEchoReply,
		Code:       0,
		Identifier: req.Identifier,
		Sequence:   req.Sequence,
		Data:       req.Data,
	}
	icmp := reply.MarshalWithChecksum()

	hdr := &IPv4Header{
		Version:        IPv4Version,
		IHL:            5,
		DSCPECN:        ip.DSCPECN,
		TotalLength:    uint16(IPv4MinHeaderLen + len(icmp)),
		Identification: ip.Identification,
		TTL:            DefaultTTL,
		Protocol:       ICMPProtocol,
		Src:            routerIP,
		Dst:            ip.Src,
	}
	b, err := hdr.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal reply ip header: %w", err)
	}
	if err := SetIPv4Checksum(b); err != nil {
		return nil, err
	}
	return append(b, icmp...), nil
}

// CreateICMPEchoRequest builds an echo request from src to dst, used to inject test traffic.
func CreateICMPEchoRequest(src, dst netip.Addr, id, seq uint16, data []byte) ([]byte, error) {
	icmp := (&ICMPHeader{
		Type:       ICMPTypeEchoRequest,
		Identifier: id,
		Sequence:   seq,
		Data:       data,
	}).MarshalWithChecksum()
	hdr := &IPv4Header{
		TotalLength: uint16(IPv4MinHeaderLen + len(icmp)),
		TTL:         DefaultTTL,
		Protocol:    ICMPProtocol,
		Src:         src,
		Dst:         dst,
	}
	b, err := hdr.Marshal()
	if err != nil {
		return nil, err
	}
	if err := SetIPv4Checksum(b); err != nil {
		return nil, err
	}
	return append(b, icmp...), nil
}
