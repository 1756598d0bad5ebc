package core

import (
	"net/netip"

	"github.com/encodeous/vrouter/state"
)

// LinkEnds is one side of a point-to-point connection as handed to a router.
// The router never holds a reference to its peer, only to these channels.
type LinkEnds struct {
	PeerId    state.RouterId
	LocalAddr netip.Addr
	PeerAddr  netip.Addr
	Cost      int
	// Outbox is consumed by the peer.
	Outbox chan<- Packet
	// Inbox is fed by the peer.
	Inbox <-chan Packet
	// PeerDone is closed when the peer stops, so sends never block on a dead peer.
	PeerDone <-chan struct{}
}

type Link struct {
	LinkEnds
	done chan struct{} // closed when this side is removed
}

// LinkInfo is a snapshot of a link without its channels.
type LinkInfo struct {
	PeerId    state.RouterId
	LocalAddr netip.Addr
	PeerAddr  netip.Addr
	Cost      int
}

func (l *Link) Info() LinkInfo {
	return LinkInfo{
		PeerId:    l.PeerId,
		LocalAddr: l.LocalAddr,
		PeerAddr:  l.PeerAddr,
		Cost:      l.Cost,
	}
}
