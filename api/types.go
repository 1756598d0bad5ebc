package api

import (
	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/state"
)

type Router struct {
	Id        state.RouterId `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	Interface string         `json:"interface"`
	Routes    []Route        `json:"routes"`
	Links     []Link         `json:"links"`
	Stats     Stats          `json:"stats"`
}

type Route struct {
	Dst  string         `json:"dst"`
	Via  state.RouterId `json:"via"`
	Kind string         `json:"kind,omitempty"`
}

type Link struct {
	A     state.RouterId `json:"a"`
	B     state.RouterId `json:"b"`
	AddrA string         `json:"a_addr,omitempty"`
	AddrB string         `json:"b_addr,omitempty"`
	Cost  int            `json:"cost"`
}

type Stats struct {
	Received    uint64 `json:"received"`
	Forwarded   uint64 `json:"forwarded"`
	Delivered   uint64 `json:"delivered"`
	EchoReplies uint64 `json:"echo_replies"`
	Dropped     uint64 `json:"dropped"`
	TunRx       uint64 `json:"tun_rx"`
	TunTx       uint64 `json:"tun_tx"`
}

// CreateRouter creates a router. A random id is assigned when Id is empty.
type CreateRouter struct {
	Id      state.RouterId `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Address string         `json:"address"`
}

// SendPacket injects traffic into a router. With Echo set, Data is ignored and an
// ICMP echo request from Src to Dst is built instead.
type SendPacket struct {
	Src  string `json:"src,omitempty"`
	Dst  string `json:"dst"`
	Data []byte `json:"data,omitempty"`
	Echo bool   `json:"echo,omitzero"`
}

// Problem is the body of every error response.
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Reach is the path a packet from a router to Dst would take.
type Reach struct {
	From      state.RouterId `json:"from"`
	Dst       string         `json:"dst"`
	Reachable bool           `json:"reachable"`
	Hops      []Hop          `json:"hops"`
	Metric    int            `json:"metric"`
	Failure   string         `json:"failure,omitempty"`
}

type Hop struct {
	Router  state.RouterId `json:"router"`
	Action  string         `json:"action"`
	NextHop state.RouterId `json:"next_hop,omitempty"`
	Route   string         `json:"route,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Cost    int            `json:"cost,omitzero"`
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return p.Title + ": " + p.Detail
}

func routerView(r *core.Router) Router {
	v := Router{
		Id:        r.Id,
		Name:      r.Name,
		Address:   r.Prefix.String(),
		Interface: r.Interface(),
		Routes:    make([]Route, 0),
		Links:     make([]Link, 0),
		Stats:     statsView(r.Stats()),
	}
	for _, rt := range r.Routes() {
		v.Routes = append(v.Routes, Route{Dst: rt.Dst.String(), Via: rt.NextHop, Kind: rt.Kind.String()})
	}
	links := r.Links()
	for _, peer := range sortedPeers(links) {
		l := links[peer]
		v.Links = append(v.Links, Link{A: r.Id, B: peer, AddrA: l.LocalAddr.String(), AddrB: l.PeerAddr.String(), Cost: l.Cost})
	}
	return v
}

func statsView(s core.Stats) Stats {
	return Stats{
		Received:    s.Received,
		Forwarded:   s.Forwarded,
		Delivered:   s.Delivered,
		EchoReplies: s.EchoReplies,
		Dropped:     s.Dropped,
		TunRx:       s.TunRx,
		TunTx:       s.TunTx,
	}
}

func linkView(p core.LinkPair) Link {
	return Link{A: p.A, B: p.B, AddrA: p.AddrA.String(), AddrB: p.AddrB.String(), Cost: p.Cost}
}

func reachView(from state.RouterId, t *core.Trace) Reach {
	v := Reach{
		From:      from,
		Dst:       t.Dst.String(),
		Reachable: t.Reachable,
		Hops:      make([]Hop, 0, len(t.Hops)),
		Metric:    t.Metric,
		Failure:   t.Failure,
	}
	for _, h := range t.Hops {
		hop := Hop{Router: h.Router, Action: h.Action.String(), NextHop: h.NextHop, Cost: h.Cost}
		if h.Route.IsValid() {
			hop.Route = h.Route.String()
			hop.Kind = h.Kind.String()
		}
		v.Hops = append(v.Hops, hop)
	}
	return v
}
