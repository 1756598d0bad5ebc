//go:build integration

package integration

import (
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/vrouter/packet"
	"github.com/encodeous/vrouter/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// chain builds a - b - c with routes between the subnets behind a and c.
func chain() *VirtualHarness {
	vh := &VirtualHarness{}
	vh.NewNode("a", "10.0.1.1/24")
	vh.NewNode("b", "10.0.2.1/24")
	vh.NewNode("c", "10.0.3.1/24")
	vh.Topology.Graph = []string{
		"a, b",
		"b, c",
	}
	vh.AddRoute("a", "10.0.3.0/24", "b")
	vh.AddRoute("b", "10.0.3.0/24", "c")
	vh.AddRoute("c", "10.0.3.0/24", "c")
	vh.AddRoute("c", "10.0.1.0/24", "b")
	vh.AddRoute("b", "10.0.1.0/24", "a")
	vh.AddRoute("a", "10.0.1.0/24", "a")
	return vh
}

func enableTTL(t *testing.T) {
	prev := state.DBG_decrement_ttl
	state.DBG_decrement_ttl = true
	t.Cleanup(func() { state.DBG_decrement_ttl = prev })
}

func TestInProcessRouting(t *testing.T) {
	opt := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, opt)
	enableTTL(t)
	vh := chain()

	arrived := make(chan *packet.IPv4Header, 10)
	vh.Host = func(node state.RouterId, src, dst netip.Addr, pkt []byte) bool {
		if node == "c" && dst.String() == "10.0.3.20" {
			h, err := packet.ParseIPv4Header(pkt)
			if err == nil {
				arrived <- h
			}
			return true
		}
		return false
	}
	require.NoError(t, vh.Start())
	defer func() {
		require.NoError(t, vh.Stop())
	}()

	require.NoError(t, vh.Send("a", "10.0.1.20", "10.0.3.20", []byte("hello"), 64))
	select {
	case h := <-arrived:
		assert.Equal(t, "10.0.1.20", h.Src.String())
		// decremented by a and b, c writes straight out of its interface
		assert.Equal(t, uint8(62), h.TTL)
	case <-time.After(5 * time.Second):
		t.Fatal("packet did not cross the chain")
	}

	b, err := vh.Manager.GetRouter("b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Stats().Forwarded)
}

func TestTTLUntouchedByDefault(t *testing.T) {
	opt := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, opt)
	vh := chain()

	arrived := make(chan []byte, 10)
	vh.Host = func(node state.RouterId, src, dst netip.Addr, pkt []byte) bool {
		if node == "c" {
			arrived <- append([]byte(nil), pkt...)
		}
		return true
	}
	require.NoError(t, vh.Start())
	defer func() {
		require.NoError(t, vh.Stop())
	}()

	require.NoError(t, vh.Send("a", "10.0.1.20", "10.0.3.20", []byte("x"), 2))
	select {
	case pkt := <-arrived:
		h, err := packet.ParseIPv4Header(pkt)
		require.NoError(t, err)
		assert.Equal(t, uint8(2), h.TTL)
	case <-time.After(5 * time.Second):
		t.Fatal("packet did not cross the chain")
	}
}

func TestTTLExpiresInTransit(t *testing.T) {
	opt := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, opt)
	enableTTL(t)
	vh := chain()
	leaked := NewSignal()
	vh.Host = func(node state.RouterId, src, dst netip.Addr, pkt []byte) bool {
		if node == "c" {
			leaked.Trigger()
		}
		return true
	}
	require.NoError(t, vh.Start())
	defer func() {
		require.NoError(t, vh.Stop())
	}()

	require.NoError(t, vh.Send("a", "10.0.1.20", "10.0.3.20", []byte("x"), 2))
	b, err := vh.Manager.GetRouter("b")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return b.Stats().Dropped == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, leaked.WaitFor(200*time.Millisecond))
}

func TestRoutedPing(t *testing.T) {
	opt := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, opt)
	vh := chain()

	reply := NewSignal()
	vh.Host = func(node state.RouterId, src, dst netip.Addr, pkt []byte) bool {
		// c answers through its own interface
		if node == "c" && src.String() == "10.0.3.1" && dst.String() == "10.0.1.20" {
			reply.Trigger()
		}
		return true
	}
	require.NoError(t, vh.Start())
	defer func() {
		require.NoError(t, vh.Stop())
	}()

	require.NoError(t, vh.Ping("a", "10.0.1.20", "10.0.3.1", 1))
	require.True(t, reply.WaitFor(5*time.Second), "no echo reply from c")

	c, err := vh.Manager.GetRouter("c")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().EchoReplies)
}

func TestNoRouteIsDropped(t *testing.T) {
	opt := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, opt)
	vh := chain()
	require.NoError(t, vh.Start())
	defer func() {
		require.NoError(t, vh.Stop())
	}()

	for range 10 {
		require.NoError(t, vh.Send("a", "10.0.1.20", "192.168.0.1", []byte("x"), 64))
	}
	a, err := vh.Manager.GetRouter("a")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return a.Stats().Dropped == 10
	}, 2*time.Second, 10*time.Millisecond)
}
