package core

import "slices"

// Packet is the unit moved between routers. DstIP may be empty for raw
// interface traffic, in which case the IPv4 destination inside Data is used.
type Packet struct {
	SrcIP string
	DstIP string
	Data  []byte
}

// Clone returns a copy that shares no memory with p.
func (p Packet) Clone() Packet {
	p.Data = slices.Clone(p.Data)
	return p
}
