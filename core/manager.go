package core

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/state"
	"golang.org/x/sync/errgroup"
)

// RouterManager owns every router in the process and the links between them.
// mu guards the registry; linkMu serializes topology changes and is always taken before mu.
type RouterManager struct {
	log     *slog.Logger
	factory device.Factory

	mu      sync.RWMutex
	routers map[state.RouterId]*Router

	linkMu sync.Mutex
}

// LinkPair describes one bidirectional connection.
type LinkPair struct {
	A, B         state.RouterId
	AddrA, AddrB netip.Addr
	Cost         int
}

func NewRouterManager(logger *slog.Logger, factory device.Factory) *RouterManager {
	return &RouterManager{
		log:     logger,
		factory: factory,
		routers: make(map[state.RouterId]*Router),
	}
}

// AddRouter acquires an interface for a new router and starts it. The registry is
// left untouched when the interface cannot be acquired.
func (m *RouterManager) AddRouter(id state.RouterId, name, ip string) (*Router, error) {
	if err := state.NameValidator(string(id)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	prefix, err := state.ParseRouterAddress(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: router %s address %q: %w", ErrInvalidArgument, id, ip, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routers[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRouterExists, id)
	}
	for _, other := range m.routers {
		if other.Addr() == prefix.Addr() {
			return nil, fmt.Errorf("%w: %s is used by %s", ErrAddressInUse, prefix.Addr(), other.Id)
		}
	}
	dev, err := m.factory(device.InterfaceName(string(id)), prefix)
	if err != nil {
		m.log.Warn("cannot acquire interface", "router", id, "prefix", prefix, "error", err)
		return nil, fmt.Errorf("acquire interface for router %s: %w", id, err)
	}
	r := NewRouter(m.log, id, name, prefix, dev)
	m.routers[id] = r
	return r, nil
}

func (m *RouterManager) GetRouter(id state.RouterId) (*Router, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouterNotFound, id)
	}
	return r, nil
}

// ListRouters returns the current routers ordered by id.
func (m *RouterManager) ListRouters() []*Router {
	m.mu.RLock()
	defer m.mu.RUnlock()
	routers := slices.Collect(maps.Values(m.routers))
	slices.SortFunc(routers, func(a, b *Router) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return routers
}

// RemoveRouter unregisters the router, tears down its links on both sides and stops it.
func (m *RouterManager) RemoveRouter(id state.RouterId) error {
	m.linkMu.Lock()
	m.mu.Lock()
	r, ok := m.routers[id]
	if !ok {
		m.mu.Unlock()
		m.linkMu.Unlock()
		return fmt.Errorf("%w: %s", ErrRouterNotFound, id)
	}
	delete(m.routers, id)
	peers := make([]*Router, 0)
	for _, pid := range r.peers() {
		if p, ok := m.routers[pid]; ok {
			peers = append(peers, p)
		}
	}
	m.mu.Unlock()

	errs := make([]error, 0)
	for _, p := range peers {
		errs = append(errs, m.unlink(p, r))
	}
	m.linkMu.Unlock()

	errs = append(errs, r.Stop())
	m.log.Info("removed router", "router", id)
	return errors.Join(errs...)
}

func (m *RouterManager) pair(idA, idB state.RouterId) (*Router, *Router, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, okA := m.routers[idA]
	b, okB := m.routers[idB]
	if !okA {
		return nil, nil, fmt.Errorf("%w: %s", ErrRouterNotFound, idA)
	}
	if !okB {
		return nil, nil, fmt.Errorf("%w: %s", ErrRouterNotFound, idB)
	}
	return a, b, nil
}

func linkAddr(ip string, r *Router) (netip.Addr, error) {
	if ip == "" {
		return r.Addr(), nil
	}
	pfx, err := state.ParseRouterAddress(ip)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: link address %q for %s: %w", ErrInvalidArgument, ip, r.Id, err)
	}
	return pfx.Addr(), nil
}

// AddLinkBetweenRouters connects two routers with a pair of bounded channels. An empty
// link address defaults to the router address. If the second side cannot be attached,
// the first is rolled back and the returned error describes both outcomes.
func (m *RouterManager) AddLinkBetweenRouters(idA, idB state.RouterId, ipA, ipB string, cost int) error {
	if idA == idB {
		return fmt.Errorf("%w: %s", ErrSelfLink, idA)
	}
	m.linkMu.Lock()
	defer m.linkMu.Unlock()

	a, b, err := m.pair(idA, idB)
	if err != nil {
		return err
	}
	addrA, err := linkAddr(ipA, a)
	if err != nil {
		return err
	}
	addrB, err := linkAddr(ipB, b)
	if err != nil {
		return err
	}

	ab := make(chan Packet, state.LinkBufferSize)
	ba := make(chan Packet, state.LinkBufferSize)
	err = a.AddNeighborLink(LinkEnds{
		PeerId: idB, LocalAddr: addrA, PeerAddr: addrB, Cost: cost,
		Outbox: ab, Inbox: ba, PeerDone: b.Done(),
	})
	if err != nil {
		return fmt.Errorf("link %s -> %s: %w", idA, idB, err)
	}
	err = b.AddNeighborLink(LinkEnds{
		PeerId: idA, LocalAddr: addrB, PeerAddr: addrA, Cost: cost,
		Outbox: ba, Inbox: ab, PeerDone: a.Done(),
	})
	if err != nil {
		rbErr := a.RemoveNeighborLink(idB)
		if rbErr != nil {
			return fmt.Errorf("link %s -> %s: %w; rollback of %s -> %s failed: %w", idB, idA, err, idA, idB, rbErr)
		}
		return fmt.Errorf("link %s -> %s: %w; rolled back %s -> %s", idB, idA, err, idA, idB)
	}
	m.log.Info("link established", "a", idA, "b", idB, "addr_a", addrA, "addr_b", addrB, "cost", cost)
	return nil
}

// unlink removes both sides of a connection, attempting each even if the other fails.
func (m *RouterManager) unlink(a, b *Router) error {
	var errs []error
	if err := a.RemoveNeighborLink(b.Id); err != nil {
		errs = append(errs, fmt.Errorf("%s -> %s: %w", a.Id, b.Id, err))
	}
	if err := b.RemoveNeighborLink(a.Id); err != nil {
		errs = append(errs, fmt.Errorf("%s -> %s: %w", b.Id, a.Id, err))
	}
	if len(errs) != 0 {
		return fmt.Errorf("errors during link removal between %s and %s: %w", a.Id, b.Id, errors.Join(errs...))
	}
	return nil
}

func (m *RouterManager) RemoveLinkBetweenRouters(idA, idB state.RouterId) error {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()
	a, b, err := m.pair(idA, idB)
	if err != nil {
		return err
	}
	if err := m.unlink(a, b); err != nil {
		return err
	}
	m.log.Info("link removed", "a", idA, "b", idB)
	return nil
}

// Links returns every connection once, with A < B. It waits for pending topology changes.
func (m *RouterManager) Links() []LinkPair {
	m.linkMu.Lock()
	defer m.linkMu.Unlock()
	pairs := make([]LinkPair, 0)
	for _, r := range m.ListRouters() {
		for peer, l := range r.Links() {
			if r.Id < peer {
				pairs = append(pairs, LinkPair{A: r.Id, B: peer, AddrA: l.LocalAddr, AddrB: l.PeerAddr, Cost: l.Cost})
			}
		}
	}
	slices.SortFunc(pairs, func(x, y LinkPair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return pairs
}

// Close stops every router concurrently and empties the registry. Routers that
// were already stopped are not an error.
func (m *RouterManager) Close() error {
	m.linkMu.Lock()
	m.mu.Lock()
	routers := slices.Collect(maps.Values(m.routers))
	clear(m.routers)
	m.mu.Unlock()
	m.linkMu.Unlock()

	var g errgroup.Group
	for _, r := range routers {
		g.Go(func() error {
			if err := r.Stop(); err != nil && !errors.Is(err, ErrRouterStopped) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// ApplyTopology creates the routers, links and routes of cfg. It stops at the first error.
func (m *RouterManager) ApplyTopology(cfg *state.TopologyCfg) error {
	for _, rc := range cfg.Routers {
		name := rc.Name
		if name == "" {
			name = string(rc.Id)
		}
		if _, err := m.AddRouter(rc.Id, name, rc.Address); err != nil {
			return err
		}
	}
	for _, lc := range cfg.Links {
		cost := lc.Cost
		if cost == 0 {
			cost = state.DefaultLinkCost
		}
		if err := m.AddLinkBetweenRouters(lc.A, lc.B, lc.AddrA, lc.AddrB, cost); err != nil {
			return err
		}
	}
	for _, rt := range cfg.Routes {
		r, err := m.GetRouter(rt.Router)
		if err != nil {
			return err
		}
		if err := r.SetStaticRoute(rt.Dst, rt.Via); err != nil {
			return fmt.Errorf("router %s: %w", rt.Router, err)
		}
	}
	return nil
}
