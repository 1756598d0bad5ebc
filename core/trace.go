package core

import (
	"fmt"
	"net/netip"

	"github.com/encodeous/vrouter/state"
)

type HopAction uint8

const (
	// HopLocal means the router owns the destination address.
	HopLocal HopAction = iota
	// HopInterface means the router writes the packet out of its own interface.
	HopInterface
	// HopForward means the router sends the packet to a neighbour.
	HopForward
)

func (a HopAction) String() string {
	switch a {
	case HopLocal:
		return "local"
	case HopInterface:
		return "interface"
	case HopForward:
		return "forward"
	default:
		return fmt.Sprintf("HopAction(%d)", a)
	}
}

// Hop is the forwarding decision one router makes for a destination.
type Hop struct {
	Router  state.RouterId
	Action  HopAction
	NextHop state.RouterId
	Route   netip.Prefix // matched entry, invalid for HopLocal
	Kind    RouteKind
	Cost    int // cost of the link to NextHop
}

// Trace is the path a packet would take, without sending one.
type Trace struct {
	Dst       netip.Addr
	Reachable bool
	Hops      []Hop
	// Metric is the sum of the link costs along the path.
	Metric int
	// Failure names the first point where the packet would be dropped.
	Failure string
}

// Resolve makes the forwarding decision for dst without touching any queue.
func (r *Router) Resolve(dst netip.Addr) (Hop, error) {
	hop := Hop{Router: r.Id}
	if r.isLocal(dst) {
		hop.Action = HopLocal
		return hop, nil
	}
	pfx, route, ok := r.table.LookupPrefix(dst)
	if !ok {
		return hop, fmt.Errorf("no route to %s on %s", dst, r.Id)
	}
	hop.Route = pfx
	hop.Kind = route.Kind
	hop.NextHop = route.NextHop
	if route.NextHop == r.Id {
		hop.Action = HopInterface
		return hop, nil
	}
	link, ok := r.link(route.NextHop)
	if !ok {
		return hop, fmt.Errorf("next hop %s of %s is not a neighbour", route.NextHop, r.Id)
	}
	hop.Action = HopForward
	hop.Cost = link.Cost
	return hop, nil
}

// Trace follows the next hops for dst starting at router from. An unreachable
// destination is reported in the result; the error is for bad arguments only.
func (m *RouterManager) Trace(from state.RouterId, dst string) (*Trace, error) {
	addr, err := netip.ParseAddr(dst)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: destination %q is not an IPv4 address", ErrInvalidArgument, dst)
	}
	r, err := m.GetRouter(from)
	if err != nil {
		return nil, err
	}
	t := &Trace{Dst: addr}
	visited := make(map[state.RouterId]bool)
	for range state.MaxTraceHops {
		visited[r.Id] = true
		hop, err := r.Resolve(addr)
		if err != nil {
			t.Failure = err.Error()
			return t, nil
		}
		t.Hops = append(t.Hops, hop)
		if hop.Action != HopForward {
			t.Reachable = true
			return t, nil
		}
		t.Metric += hop.Cost
		if visited[hop.NextHop] {
			t.Failure = fmt.Sprintf("routing loop at %s", hop.NextHop)
			return t, nil
		}
		next, err := m.GetRouter(hop.NextHop)
		if err != nil {
			t.Failure = err.Error()
			return t, nil
		}
		r = next
	}
	t.Failure = fmt.Sprintf("path longer than %d hops", state.MaxTraceHops)
	return t, nil
}
