package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/state"
	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrRouterStopped   = errors.New("router is stopped")
	ErrRouterExists    = errors.New("router already exists")
	ErrRouterNotFound  = errors.New("router not found")
	ErrAddressInUse    = errors.New("address already used by another router")
	ErrLinkExists      = errors.New("link already exists")
	ErrLinkNotFound    = errors.New("link not found")
	ErrSelfLink        = errors.New("a router cannot link to itself")
	ErrRouteNotFound   = errors.New("route not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Router is a single simulated IPv4 router. All of its goroutines share one
// cancellation context; Stop tears them down together.
type Router struct {
	Id     state.RouterId
	Name   string
	Prefix netip.Prefix // own address and the mask used for the interface

	log   *slog.Logger
	dev   device.Device
	table RoutingTable

	linkMu  sync.RWMutex
	links   map[state.RouterId]*Link
	stopped bool // guarded by linkMu

	ingress  chan Packet
	outbound chan []byte
	delivery chan Packet

	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup

	dropLog *ttlcache.Cache[netip.Addr, struct{}]
	stats   routerStats
}

// NewRouter starts a router on dev. The router owns dev from here on.
func NewRouter(logger *slog.Logger, id state.RouterId, name string, prefix netip.Prefix, dev device.Device) *Router {
	ctx, cancel := context.WithCancelCause(context.Background())
	r := &Router{
		Id:       id,
		Name:     name,
		Prefix:   prefix,
		log:      logger.With("router", string(id)),
		dev:      dev,
		links:    make(map[state.RouterId]*Link),
		ingress:  make(chan Packet, state.IngressQueueSize),
		outbound: make(chan []byte, state.OutboundQueueSize),
		delivery: make(chan Packet, state.DeliveryQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		dropLog: ttlcache.New[netip.Addr, struct{}](
			ttlcache.WithTTL[netip.Addr, struct{}](state.DropLogSuppression),
			ttlcache.WithCapacity[netip.Addr, struct{}](state.DropLogCapacity),
			ttlcache.WithDisableTouchOnHit[netip.Addr, struct{}](),
		),
	}
	r.wg.Add(3)
	go r.readInterface()
	go r.writeInterface()
	go r.dispatchLoop()
	r.log.Info("router started", "name", name, "addr", prefix, "interface", dev.Name())
	return r
}

func (r *Router) Addr() netip.Addr {
	return r.Prefix.Addr()
}

// Interface is the name of the host interface backing the router.
func (r *Router) Interface() string {
	return r.dev.Name()
}

// Done is closed once the router begins stopping.
func (r *Router) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Inbox yields packets addressed to the router itself that it does not answer, such as non-echo traffic.
func (r *Router) Inbox() <-chan Packet {
	return r.delivery
}

// SendPacket queues a copy of p for dispatch, blocking while the ingress queue is full.
func (r *Router) SendPacket(p Packet) error {
	select {
	case r.ingress <- p.Clone():
		return nil
	case <-r.ctx.Done():
		return ErrRouterStopped
	}
}

// SetStaticRoute routes dst, an address or prefix, via nextHop. The next hop is not
// required to be a neighbour yet; an existing route for dst is replaced.
func (r *Router) SetStaticRoute(dst string, nextHop state.RouterId) error {
	pfx, err := state.ParseDestination(dst)
	if err != nil {
		return fmt.Errorf("%w: destination %q: %w", ErrInvalidArgument, dst, err)
	}
	r.table.Set(pfx, Route{NextHop: nextHop, Kind: RouteStatic})
	if state.DBG_log_routes {
		r.log.Debug("set static route", "dst", pfx, "via", nextHop)
	}
	return nil
}

func (r *Router) RemoveStaticRoute(dst string) error {
	pfx, err := state.ParseDestination(dst)
	if err != nil {
		return fmt.Errorf("%w: destination %q: %w", ErrInvalidArgument, dst, err)
	}
	if !r.table.Remove(pfx) {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, pfx)
	}
	return nil
}

// RoutingTable returns destination -> next hop.
func (r *Router) RoutingTable() map[string]string {
	out := make(map[string]string)
	for _, rt := range r.table.Routes() {
		out[rt.Dst.String()] = string(rt.NextHop)
	}
	return out
}

func (r *Router) Routes() []RouteInfo {
	return r.table.Routes()
}

// AddNeighborLink attaches one side of a connection. A connected host route to
// the peer address is installed unless a route for it already exists.
func (r *Router) AddNeighborLink(ends LinkEnds) error {
	r.linkMu.Lock()
	if r.stopped {
		r.linkMu.Unlock()
		return ErrRouterStopped
	}
	if _, ok := r.links[ends.PeerId]; ok {
		r.linkMu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrLinkExists, r.Id, ends.PeerId)
	}
	link := &Link{LinkEnds: ends, done: make(chan struct{})}
	r.links[ends.PeerId] = link
	r.wg.Add(1)
	r.linkMu.Unlock()

	if ends.PeerAddr.IsValid() && ends.PeerAddr != r.Addr() {
		r.table.SetIfAbsent(netip.PrefixFrom(ends.PeerAddr, ends.PeerAddr.BitLen()), Route{
			NextHop: ends.PeerId,
			Kind:    RouteConnected,
			Metric:  ends.Cost,
		})
	}
	go r.listen(link)
	r.log.Debug("added neighbour link", "peer", ends.PeerId, "local", ends.LocalAddr, "remote", ends.PeerAddr, "cost", ends.Cost)
	return nil
}

// RemoveNeighborLink detaches the link to peer and the connected routes learned through it.
func (r *Router) RemoveNeighborLink(peer state.RouterId) error {
	r.linkMu.Lock()
	link, ok := r.links[peer]
	if !ok {
		r.linkMu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrLinkNotFound, r.Id, peer)
	}
	delete(r.links, peer)
	close(link.done)
	r.linkMu.Unlock()

	r.table.RemoveFunc(func(_ netip.Prefix, rt Route) bool {
		return rt.Kind == RouteConnected && rt.NextHop == peer
	})
	r.log.Debug("removed neighbour link", "peer", peer)
	return nil
}

func (r *Router) link(peer state.RouterId) (*Link, bool) {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	l, ok := r.links[peer]
	return l, ok
}

func (r *Router) HasLink(peer state.RouterId) bool {
	_, ok := r.link(peer)
	return ok
}

// Links returns a snapshot of the links keyed by peer.
func (r *Router) Links() map[state.RouterId]LinkInfo {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	out := make(map[state.RouterId]LinkInfo, len(r.links))
	for id, l := range r.links {
		out[id] = l.Info()
	}
	return out
}

func (r *Router) peers() []state.RouterId {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	return slices.Sorted(maps.Keys(r.links))
}

func (r *Router) Stats() Stats {
	return r.stats.snapshot()
}

// Stop cancels every task, releases the interface and waits for the tasks to exit.
func (r *Router) Stop() error {
	r.linkMu.Lock()
	if r.stopped {
		r.linkMu.Unlock()
		return ErrRouterStopped
	}
	r.stopped = true
	for _, l := range r.links {
		close(l.done)
	}
	clear(r.links)
	r.linkMu.Unlock()

	r.cancel(ErrRouterStopped)
	err := r.dev.Close()
	r.wg.Wait()
	r.dropLog.DeleteAll()
	if err != nil {
		r.log.Warn("error releasing interface", "error", err)
		return fmt.Errorf("close interface of %s: %w", r.Id, err)
	}
	r.log.Info("router stopped")
	return nil
}
