package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Client, *core.RouterManager) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	factory, err := device.NewFactory(logger, device.Options{Driver: device.DriverVirtual})
	require.NoError(t, err)
	mgr := core.NewRouterManager(logger, factory)
	ts := httptest.NewServer(NewServer(logger, mgr).Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, mgr.Close())
	})
	return NewClient(ts.URL), mgr
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	var p *Problem
	require.True(t, errors.As(err, &p), "expected a problem response, got %v", err)
	return p.Status
}

func TestApi_RouterLifecycle(t *testing.T) {
	c, mgr := newTestServer(t)
	ctx := context.Background()

	r, err := c.CreateRouter(ctx, CreateRouter{Id: "r1", Address: "10.0.1.1/24"})
	require.NoError(t, err)
	assert.Equal(t, state.RouterId("r1"), r.Id)
	assert.Equal(t, "r1", r.Name)
	assert.Equal(t, "10.0.1.1/24", r.Address)

	anon, err := c.CreateRouter(ctx, CreateRouter{Address: "10.0.2.1"})
	require.NoError(t, err)
	assert.Len(t, anon.Id, 36)

	_, err = c.CreateRouter(ctx, CreateRouter{Id: "r1", Address: "10.0.3.1"})
	assert.Equal(t, http.StatusConflict, statusCode(t, err))
	_, err = c.CreateRouter(ctx, CreateRouter{Id: "r9", Address: "nope"})
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))

	routers, err := c.ListRouters(ctx)
	require.NoError(t, err)
	assert.Len(t, routers, 2)

	_, err = c.GetRouter(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))

	require.NoError(t, c.DeleteRouter(ctx, anon.Id))
	assert.Equal(t, http.StatusNotFound, statusCode(t, c.DeleteRouter(ctx, anon.Id)))
	assert.Len(t, mgr.ListRouters(), 1)
}

func TestApi_LinksAndRoutes(t *testing.T) {
	c, mgr := newTestServer(t)
	ctx := context.Background()
	for _, req := range []CreateRouter{{Id: "r1", Address: "10.0.1.1"}, {Id: "r2", Address: "10.0.1.2"}} {
		_, err := c.CreateRouter(ctx, req)
		require.NoError(t, err)
	}

	require.NoError(t, c.CreateLink(ctx, Link{A: "r2", B: "r1"}))
	assert.Equal(t, http.StatusConflict, statusCode(t, c.CreateLink(ctx, Link{A: "r1", B: "r2"})))
	assert.Equal(t, http.StatusBadRequest, statusCode(t, c.CreateLink(ctx, Link{A: "r1", B: "r1"})))
	assert.Equal(t, http.StatusNotFound, statusCode(t, c.CreateLink(ctx, Link{A: "r1", B: "r7"})))

	links, err := c.ListLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Link{{A: "r1", B: "r2", AddrA: "10.0.1.1", AddrB: "10.0.1.2", Cost: state.DefaultLinkCost}}, links)

	require.NoError(t, c.SetRoute(ctx, "r1", "10.0.9.0/24", "r2"))
	r1, err := c.GetRouter(ctx, "r1")
	require.NoError(t, err)
	assert.Contains(t, r1.Routes, Route{Dst: "10.0.9.0/24", Via: "r2", Kind: "static"})
	assert.Contains(t, r1.Routes, Route{Dst: "10.0.1.2/32", Via: "r2", Kind: "connected"})
	assert.Equal(t, http.StatusBadRequest, statusCode(t, c.SetRoute(ctx, "r1", "bogus", "r2")))

	require.NoError(t, c.DeleteRoute(ctx, "r1", "10.0.9.0/24"))
	assert.Equal(t, http.StatusNotFound, statusCode(t, c.DeleteRoute(ctx, "r1", "10.0.9.0/24")))

	require.NoError(t, c.SendPacket(ctx, "r1", SendPacket{Dst: "10.0.1.2", Data: []byte("hello")}))
	r2, err := mgr.GetRouter("r2")
	require.NoError(t, err)
	select {
	case p := <-r2.Inbox():
		assert.Equal(t, []byte("hello"), p.Data)
		assert.Equal(t, "10.0.1.1", p.SrcIP)
	case <-time.After(2 * time.Second):
		t.Fatal("packet injected through the api never arrived")
	}

	require.NoError(t, c.SendPacket(ctx, "r1", SendPacket{Dst: "10.0.1.1", Echo: true}))
	r1core, err := mgr.GetRouter("r1")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return r1core.Stats().EchoReplies == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.DeleteLink(ctx, "r1", "r2"))
	assert.Equal(t, http.StatusNotFound, statusCode(t, c.DeleteLink(ctx, "r1", "r2")))
	assert.Empty(t, mgr.Links())
}

func TestApi_Reach(t *testing.T) {
	c, mgr := newTestServer(t)
	ctx := context.Background()
	for _, req := range []CreateRouter{{Id: "r1", Address: "10.0.1.1/24"}, {Id: "r2", Address: "10.0.2.1/24"}} {
		_, err := c.CreateRouter(ctx, req)
		require.NoError(t, err)
	}
	require.NoError(t, c.CreateLink(ctx, Link{A: "r1", B: "r2", Cost: 4}))
	require.NoError(t, c.SetRoute(ctx, "r1", "10.0.2.0/24", "r2"))
	require.NoError(t, c.SetRoute(ctx, "r2", "10.0.2.0/24", "r2"))

	reach, err := c.Reach(ctx, "r1", "10.0.2.9")
	require.NoError(t, err)
	assert.Equal(t, &Reach{
		From:      "r1",
		Dst:       "10.0.2.9",
		Reachable: true,
		Hops: []Hop{
			{Router: "r1", Action: "forward", NextHop: "r2", Route: "10.0.2.0/24", Kind: "static", Cost: 4},
			{Router: "r2", Action: "interface", NextHop: "r2", Route: "10.0.2.0/24", Kind: "static"},
		},
		Metric: 4,
	}, reach)

	reach, err = c.Reach(ctx, "r1", "10.0.2.1")
	require.NoError(t, err)
	assert.True(t, reach.Reachable)
	require.Len(t, reach.Hops, 2)
	assert.Equal(t, Hop{Router: "r2", Action: "local"}, reach.Hops[1])

	reach, err = c.Reach(ctx, "r2", "10.0.1.9")
	require.NoError(t, err)
	assert.False(t, reach.Reachable)
	assert.Empty(t, reach.Hops)
	assert.Equal(t, "no route to 10.0.1.9 on r2", reach.Failure)

	_, err = c.Reach(ctx, "r7", "10.0.2.9")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
	_, err = c.Reach(ctx, "r1", "bogus")
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))

	// tracing sends nothing
	r1, err := mgr.GetRouter("r1")
	require.NoError(t, err)
	assert.Zero(t, r1.Stats().Received)
}

func TestApi_MalformedBody(t *testing.T) {
	c, _ := newTestServer(t)
	for _, body := range []string{"", "{", `{"address": "10.0.0.1", "unexpected": 1}`} {
		resp, err := http.Post(c.base+"/api/routers", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestApi_Metrics(t *testing.T) {
	c, _ := newTestServer(t)
	resp, err := http.Get(c.base + "/debug/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrRouterNotFound, http.StatusNotFound},
		{core.ErrLinkNotFound, http.StatusNotFound},
		{core.ErrRouterExists, http.StatusConflict},
		{core.ErrAddressInUse, http.StatusConflict},
		{core.ErrSelfLink, http.StatusBadRequest},
		{errors.Join(errors.New("wrapped"), core.ErrInvalidArgument), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
