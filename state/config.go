package state

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type RouterId string

type RouterCfg struct {
	Id      RouterId `yaml:"id"`
	Name    string   `yaml:"name,omitempty"`
	Address string   `yaml:"address"` // optionally with a prefix length, e.g. 10.0.1.1/24
}

type LinkCfg struct {
	A     RouterId `yaml:"a"`
	B     RouterId `yaml:"b"`
	AddrA string   `yaml:"a_addr,omitempty"` // defaults to the address of router A
	AddrB string   `yaml:"b_addr,omitempty"` // defaults to the address of router B
	Cost  int      `yaml:"cost,omitempty"`
}

type RouteCfg struct {
	Router RouterId `yaml:"router"`
	Dst    string   `yaml:"dst"` // address or prefix
	Via    RouterId `yaml:"via"` // next hop router, or the router itself to send out of its interface
}

type TunCfg struct {
	Driver    string `yaml:"driver,omitempty"` // wireguard, water or virtual
	MTU       int    `yaml:"mtu,omitempty"`
	Configure bool   `yaml:"configure,omitempty"` // assign addresses and bring interfaces up
}

// TopologyCfg describes a whole simulated network.
type TopologyCfg struct {
	Tun     TunCfg      `yaml:"tun,omitempty"`
	Api     string      `yaml:"api,omitempty"`      // listen address of the management api, disabled if empty
	LogPath string      `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
	Routers []RouterCfg `yaml:"routers"`
	Links   []LinkCfg   `yaml:"links,omitempty"`
	Graph   []string    `yaml:"graph,omitempty"` // shorthand for links with DefaultLinkCost, see ParseGraph
	Routes  []RouteCfg  `yaml:"routes,omitempty"`
}

func (c *TopologyCfg) GetRouter(id RouterId) *RouterCfg {
	for i := range c.Routers {
		if c.Routers[i].Id == id {
			return &c.Routers[i]
		}
	}
	return nil
}

func (c *TopologyCfg) RouterIds() []string {
	ids := make([]string, 0, len(c.Routers))
	for _, r := range c.Routers {
		ids = append(ids, string(r.Id))
	}
	return ids
}

// ExpandTopologyConfig turns graph lines into explicit links. Explicit links win over graph edges.
func ExpandTopologyConfig(cfg *TopologyCfg) error {
	if len(cfg.Graph) == 0 {
		return nil
	}
	edges, err := ParseGraph(cfg.Graph, cfg.RouterIds())
	if err != nil {
		return err
	}
	existing := make(map[Pair[RouterId, RouterId]]bool)
	for _, l := range cfg.Links {
		existing[MakeSortedPair(l.A, l.B)] = true
	}
	for _, e := range edges {
		if existing[e] {
			continue
		}
		cfg.Links = append(cfg.Links, LinkCfg{A: e.V1, B: e.V2, Cost: DefaultLinkCost})
	}
	cfg.Graph = nil
	return nil
}

// ParseRouterAddress accepts a bare IPv4 address or an address with prefix length.
// A bare address is treated as a /32.
func ParseRouterAddress(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	var pfx netip.Prefix
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		pfx = p
	} else {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		pfx = netip.PrefixFrom(addr, addr.BitLen())
	}
	if !pfx.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%s is not an IPv4 address", s)
	}
	return pfx, nil
}

// ParseDestination parses a routing destination. Bare addresses become host prefixes, prefixes are masked.
func ParseDestination(s string) (netip.Prefix, error) {
	pfx, err := ParseRouterAddress(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return pfx.Masked(), nil
}

func ReadTopologyConfig(path string) (*TopologyCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg TopologyCfg
	err = yaml.UnmarshalWithOptions(file, &cfg, yaml.DisallowUnknownField())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SampleTopology is a two router network with a host route on either side.
func SampleTopology() TopologyCfg {
	return TopologyCfg{
		Tun: TunCfg{Driver: "virtual", MTU: 1500},
		Api: "127.0.0.1:8179",
		Routers: []RouterCfg{
			{Id: "r1", Name: "Router 1", Address: "10.0.1.1/24"},
			{Id: "r2", Name: "Router 2", Address: "10.0.2.1/24"},
		},
		Links: []LinkCfg{
			{A: "r1", B: "r2", AddrA: "10.0.12.1", AddrB: "10.0.12.2", Cost: DefaultLinkCost},
		},
		Routes: []RouteCfg{
			{Router: "r1", Dst: "10.0.2.0/24", Via: "r2"},
			{Router: "r2", Dst: "10.0.1.0/24", Via: "r1"},
		},
	}
}
