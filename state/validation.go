package state

import (
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

// LinkAddrValidator accepts an empty string, meaning the router address is reused.
func LinkAddrValidator(s string) error {
	if s == "" {
		return nil
	}
	_, err := ParseRouterAddress(s)
	return err
}

func TopologyValidator(cfg *TopologyCfg) error {
	if cfg.Api != "" {
		if err := BindValidator(cfg.Api); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	if cfg.Tun.MTU != 0 && (cfg.Tun.MTU < 576 || cfg.Tun.MTU > 65535) {
		return fmt.Errorf("tun.mtu %d is out of range [576, 65535]", cfg.Tun.MTU)
	}

	addrs := make(map[netip.Addr]RouterId)
	for i, r := range cfg.Routers {
		if err := NameValidator(string(r.Id)); err != nil {
			return err
		}
		if cfg.GetRouter(r.Id) != &cfg.Routers[i] {
			return fmt.Errorf("duplicate router id: %s", r.Id)
		}
		pfx, err := ParseRouterAddress(r.Address)
		if err != nil {
			return fmt.Errorf("router %s has an invalid address: %w", r.Id, err)
		}
		if other, ok := addrs[pfx.Addr()]; ok {
			return fmt.Errorf("routers %s and %s share address %s", other, r.Id, pfx.Addr())
		}
		addrs[pfx.Addr()] = r.Id
	}

	edges := make(map[Pair[RouterId, RouterId]]bool)
	for _, l := range cfg.Links {
		if l.A == l.B {
			return fmt.Errorf("link from %s to itself", l.A)
		}
		for _, id := range []RouterId{l.A, l.B} {
			if cfg.GetRouter(id) == nil {
				return fmt.Errorf("router %s not defined", id)
			}
		}
		edge := MakeSortedPair(l.A, l.B)
		if edges[edge] {
			return fmt.Errorf("duplicate link found: %s, %s", edge.V1, edge.V2)
		}
		edges[edge] = true
		if l.Cost < 0 {
			return fmt.Errorf("link %s, %s has negative cost %d", l.A, l.B, l.Cost)
		}
		if err := LinkAddrValidator(l.AddrA); err != nil {
			return fmt.Errorf("link %s, %s: %w", l.A, l.B, err)
		}
		if err := LinkAddrValidator(l.AddrB); err != nil {
			return fmt.Errorf("link %s, %s: %w", l.A, l.B, err)
		}
	}

	for _, rt := range cfg.Routes {
		if cfg.GetRouter(rt.Router) == nil {
			return fmt.Errorf("route for undefined router %s", rt.Router)
		}
		if _, err := ParseDestination(rt.Dst); err != nil {
			return fmt.Errorf("route %s via %s on %s: %w", rt.Dst, rt.Via, rt.Router, err)
		}
		if rt.Via == "" {
			return fmt.Errorf("route %s on %s has no next hop", rt.Dst, rt.Router)
		}
	}
	return nil
}
