package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("1A"))
	assert.Error(t, NameValidator("router name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func validTopology() *TopologyCfg {
	cfg := SampleTopology()
	return &cfg
}

func TestTopologyValidator(t *testing.T) {
	cases := map[string]struct {
		mutate func(cfg *TopologyCfg)
		err    string
	}{
		"duplicate router": {
			mutate: func(cfg *TopologyCfg) {
				cfg.Routers = append(cfg.Routers, RouterCfg{Id: "r1", Address: "10.9.9.9"})
			},
			err: "duplicate router id: r1",
		},
		"shared address": {
			mutate: func(cfg *TopologyCfg) {
				cfg.Routers = append(cfg.Routers, RouterCfg{Id: "r3", Address: "10.0.1.1"})
			},
			err: "share address",
		},
		"bad address": {
			mutate: func(cfg *TopologyCfg) { cfg.Routers[0].Address = "not-an-ip" },
			err:    "invalid address",
		},
		"self link": {
			mutate: func(cfg *TopologyCfg) { cfg.Links = append(cfg.Links, LinkCfg{A: "r1", B: "r1"}) },
			err:    "to itself",
		},
		"duplicate link": {
			mutate: func(cfg *TopologyCfg) { cfg.Links = append(cfg.Links, LinkCfg{A: "r2", B: "r1"}) },
			err:    "duplicate link found: r1, r2",
		},
		"undefined router in link": {
			mutate: func(cfg *TopologyCfg) { cfg.Links = append(cfg.Links, LinkCfg{A: "r1", B: "r9"}) },
			err:    "router r9 not defined",
		},
		"negative cost": {
			mutate: func(cfg *TopologyCfg) { cfg.Links[0].Cost = -1 },
			err:    "negative cost",
		},
		"route for unknown router": {
			mutate: func(cfg *TopologyCfg) { cfg.Routes[0].Router = "r9" },
			err:    "undefined router r9",
		},
		"route without next hop": {
			mutate: func(cfg *TopologyCfg) { cfg.Routes[0].Via = "" },
			err:    "no next hop",
		},
		"bad api bind": {
			mutate: func(cfg *TopologyCfg) { cfg.Api = "localhost" },
			err:    "api",
		},
		"mtu": {
			mutate: func(cfg *TopologyCfg) { cfg.Tun.MTU = 100 },
			err:    "out of range",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validTopology()
			tc.mutate(cfg)
			assert.ErrorContains(t, TopologyValidator(cfg), tc.err)
		})
	}
	assert.NoError(t, TopologyValidator(validTopology()))
}

func TestTopologyValidator_DanglingRoute(t *testing.T) {
	cfg := validTopology()
	cfg.Routes = append(cfg.Routes, RouteCfg{Router: "r1", Dst: "192.168.0.0/16", Via: "r7"})
	assert.NoError(t, TopologyValidator(cfg))
}
