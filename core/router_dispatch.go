package core

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/encodeous/vrouter/packet"
	"github.com/encodeous/vrouter/perf"
	"github.com/encodeous/vrouter/state"
	"github.com/jellydator/ttlcache/v3"
)

func (r *Router) dispatchLoop() {
	defer r.wg.Done()
	r.log.Debug("started dispatch loop")
	for {
		select {
		case pkt := <-r.ingress:
			start := time.Now()
			r.dispatch(pkt)
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnThreshold {
				r.log.Warn("dispatch took a long time!", "elapsed", elapsed, "len", len(r.ingress))
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// destination is DstIP when set, otherwise the IPv4 destination carried in Data.
// Raw traffic that is not IPv4 has no usable destination.
func destination(pkt Packet) (netip.Addr, error) {
	if pkt.DstIP != "" {
		addr, err := netip.ParseAddr(pkt.DstIP)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("invalid destination %q: %w", pkt.DstIP, err)
		}
		return addr, nil
	}
	if !packet.IsIPv4(pkt.Data) {
		return netip.Addr{}, fmt.Errorf("%w: raw packet is not an IPv4 datagram", packet.ErrNotIPv4)
	}
	return packet.GetDestIPFromPacket(pkt.Data)
}

// dispatch makes the forwarding decision for one packet.
func (r *Router) dispatch(pkt Packet) {
	r.stats.received.Add(1)
	perf.IngressPerSecond.Add(1)

	dst, err := destination(pkt)
	if err != nil {
		r.drop(pkt, "unreadable destination", "error", err)
		return
	}
	if state.DBG_log_packets {
		r.log.Debug("dispatch", "src", pkt.SrcIP, "dst", dst, "len", len(pkt.Data))
	}

	if r.isLocal(dst) {
		r.deliverLocal(pkt)
		return
	}

	route, ok := r.table.Lookup(dst)
	if !ok {
		r.dropNoRoute(pkt, dst)
		return
	}
	if route.NextHop == r.Id {
		if r.sendInterface(pkt.Clone().Data) {
			r.stats.forwarded.Add(1)
			perf.ForwardedPerSecond.Add(1)
		}
		return
	}
	r.forward(pkt, dst, route.NextHop)
}

// isLocal reports whether addr is the router address or the local end of one of its links.
func (r *Router) isLocal(addr netip.Addr) bool {
	if addr == r.Addr() {
		return true
	}
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	for _, l := range r.links {
		if l.LocalAddr == addr {
			return true
		}
	}
	return false
}

// deliverLocal answers echo requests for one of its own addresses through the
// interface and hands everything else to Inbox.
func (r *Router) deliverLocal(pkt Packet) {
	if packet.IsEchoRequest(pkt.Data) {
		if inner, err := packet.GetDestIPFromPacket(pkt.Data); err == nil && r.isLocal(inner) {
			r.echo(pkt, inner)
			return
		}
	}
	select {
	case r.delivery <- pkt:
		r.stats.delivered.Add(1)
		perf.DeliveredPerSecond.Add(1)
	default:
		r.drop(pkt, "local delivery queue is full")
	}
}

// echo replies from the address the request was sent to.
func (r *Router) echo(pkt Packet, addr netip.Addr) {
	reply, err := packet.CreateICMPEchoReply(pkt.Data, addr)
	if err != nil {
		r.drop(pkt, "cannot build echo reply", "error", err)
		return
	}
	if r.sendInterface(reply) {
		r.stats.echoReplies.Add(1)
		perf.EchoRepliesPerSecond.Add(1)
	}
}

// forward sends a copy of pkt to a neighbour. Data is passed on unchanged unless
// DBG_decrement_ttl is set, then IPv4 datagrams lose one TTL on the way.
func (r *Router) forward(pkt Packet, dst netip.Addr, peer state.RouterId) {
	link, ok := r.link(peer)
	if !ok {
		r.drop(pkt, "next hop is not a neighbour", "dst", dst, "via", peer)
		return
	}
	if state.DBG_decrement_ttl && packet.IsIPv4(pkt.Data) {
		data, err := packet.DecrementTTL(pkt.Data)
		if err != nil {
			r.drop(pkt, "ttl exceeded", "dst", dst, "via", peer)
			return
		}
		pkt.Data = data
	} else {
		pkt = pkt.Clone()
	}
	select {
	case link.Outbox <- pkt:
		r.stats.forwarded.Add(1)
		perf.ForwardedPerSecond.Add(1)
	case <-link.done:
		r.drop(pkt, "link removed while sending", "via", peer)
	case <-link.PeerDone:
		r.drop(pkt, "next hop stopped", "via", peer)
	case <-r.ctx.Done():
	}
}

func (r *Router) countDrop() {
	r.stats.dropped.Add(1)
	perf.DroppedPerSecond.Add(1)
}

func (r *Router) drop(pkt Packet, reason string, args ...any) {
	r.countDrop()
	args = append([]any{"reason", reason, "src", pkt.SrcIP, "dst", pkt.DstIP, "len", len(pkt.Data)}, args...)
	r.log.Warn("dropped packet", args...)
}

// dropNoRoute logs the first miss per destination at warn level and repeats at debug level.
func (r *Router) dropNoRoute(pkt Packet, dst netip.Addr) {
	r.countDrop()
	if r.dropLog.Get(dst) == nil {
		r.dropLog.Set(dst, struct{}{}, ttlcache.DefaultTTL)
		r.log.Warn("no route to destination, dropping packet", "dst", dst, "src", pkt.SrcIP, "len", len(pkt.Data))
		return
	}
	r.log.Debug("no route to destination, dropping packet", "dst", dst, "src", pkt.SrcIP)
}
