//go:build integration

package integration

import (
	"context"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/vrouter/api"
	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ready records the environment once every earlier module is initialized.
type ready struct {
	env    *core.Env
	signal Signal
}

func (r *ready) Init(e *core.Env) error {
	r.env = e
	r.signal.Trigger()
	return nil
}

func (r *ready) Cleanup(*core.Env) error {
	return nil
}

func TestRuntimeSmoke(t *testing.T) {
	cfg := state.SampleTopology()
	cfg.Tun.Driver = device.DriverVirtual
	cfg.Api = "127.0.0.1:0"
	require.NoError(t, state.ExpandTopologyConfig(&cfg))
	require.NoError(t, state.TopologyValidator(&cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mod := &api.Module{}
	rd := &ready{signal: NewSignal()}
	done := make(chan error, 1)
	go func() {
		done <- core.Start(ctx, &cfg, slog.New(slog.DiscardHandler), mod, rd)
	}()
	require.True(t, rd.signal.WaitFor(5*time.Second), "runtime did not start")

	c := api.NewClient(mod.Addr().String())
	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()

	routers, err := c.ListRouters(rctx)
	require.NoError(t, err)
	assert.Len(t, routers, len(cfg.Routers))
	links, err := c.ListLinks(rctx)
	require.NoError(t, err)
	assert.Len(t, links, len(cfg.Links))

	created, err := c.CreateRouter(rctx, api.CreateRouter{Id: "extra", Address: "10.9.9.9/32"})
	require.NoError(t, err)
	assert.Equal(t, state.RouterId("extra"), created.Id)
	require.NoError(t, c.CreateLink(rctx, api.Link{A: "extra", B: routers[0].Id}))

	first := routers[0].Id
	require.NoError(t, c.SendPacket(rctx, "extra", api.SendPacket{Dst: netip.MustParsePrefix(routers[0].Address).Addr().String(), Echo: true}))
	require.Eventually(t, func() bool {
		r, err := rd.env.Manager.GetRouter(first)
		return err == nil && r.Stats().EchoReplies == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not shut down")
	}
}
