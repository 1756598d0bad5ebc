package core

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/vrouter/state"
	"github.com/gaissmai/bart"
)

type RouteKind uint8

const (
	RouteStatic RouteKind = iota
	// RouteConnected is installed for the peer address of a link and removed with it.
	RouteConnected
)

func (k RouteKind) String() string {
	switch k {
	case RouteStatic:
		return "static"
	case RouteConnected:
		return "connected"
	default:
		return fmt.Sprintf("RouteKind(%d)", k)
	}
}

type Route struct {
	NextHop state.RouterId
	Kind    RouteKind
	Metric  int
}

type RouteInfo struct {
	Dst netip.Prefix
	Route
}

// RoutingTable maps destination prefixes to next hops with longest prefix matching.
type RoutingTable struct {
	mu    sync.RWMutex
	table bart.Table[Route]
}

func (t *RoutingTable) Set(dst netip.Prefix, r Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table.Insert(dst.Masked(), r)
}

// SetIfAbsent inserts r unless an entry for exactly dst exists.
func (t *RoutingTable) SetIfAbsent(dst netip.Prefix, r Route) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	dst = dst.Masked()
	if _, ok := t.table.Get(dst); ok {
		return false
	}
	t.table.Insert(dst, r)
	return true
}

func (t *RoutingTable) Remove(dst netip.Prefix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	dst = dst.Masked()
	if _, ok := t.table.Get(dst); !ok {
		return false
	}
	t.table.Delete(dst)
	return true
}

// RemoveFunc deletes every entry matched by del and returns how many were removed.
func (t *RoutingTable) RemoveFunc(del func(dst netip.Prefix, r Route) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	victims := make([]netip.Prefix, 0)
	for pfx, r := range t.table.All() {
		if del(pfx, r) {
			victims = append(victims, pfx)
		}
	}
	for _, pfx := range victims {
		t.table.Delete(pfx)
	}
	return len(victims)
}

func (t *RoutingTable) Lookup(addr netip.Addr) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table.Lookup(addr)
}

// LookupPrefix is Lookup that also returns the matched prefix.
func (t *RoutingTable) LookupPrefix(addr netip.Addr) (netip.Prefix, Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table.LookupPrefixLPM(netip.PrefixFrom(addr, addr.BitLen()))
}

// Routes returns a snapshot ordered by prefix.
func (t *RoutingTable) Routes() []RouteInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	routes := make([]RouteInfo, 0)
	for pfx, r := range t.table.All() {
		routes = append(routes, RouteInfo{Dst: pfx, Route: r})
	}
	slices.SortFunc(routes, func(a, b RouteInfo) int {
		if c := a.Dst.Addr().Compare(b.Dst.Addr()); c != 0 {
			return c
		}
		return cmp.Compare(a.Dst.Bits(), b.Dst.Bits())
	})
	return routes
}
