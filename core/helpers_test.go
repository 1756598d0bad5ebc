package core

import (
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/packet"
	"github.com/encodeous/vrouter/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// virtualNet hands out in-memory devices and remembers them by interface name.
type virtualNet struct {
	mu   sync.Mutex
	devs map[string]*device.Virtual
	fail error
}

func newVirtualNet() *virtualNet {
	return &virtualNet{devs: make(map[string]*device.Virtual)}
}

func (n *virtualNet) factory(name string, _ netip.Prefix) (device.Device, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return nil, n.fail
	}
	v := device.NewVirtual(name)
	n.devs[name] = v
	return v, nil
}

func (n *virtualNet) dev(r *Router) *device.Virtual {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.devs[r.Interface()]
}

var errNoDevice = errors.New("no device available")

func newTestManager(t *testing.T) (*RouterManager, *virtualNet) {
	t.Helper()
	vn := newVirtualNet()
	m := NewRouterManager(slog.New(slog.DiscardHandler), vn.factory)
	t.Cleanup(func() {
		require.NoError(t, m.Close())
	})
	return m, vn
}

func mustAddRouter(t *testing.T, m *RouterManager, id, ip string) *Router {
	t.Helper()
	r, err := m.AddRouter(state.RouterId(id), id, ip)
	require.NoError(t, err)
	return r
}

func receive(t *testing.T, ch <-chan Packet, timeout time.Duration) Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(timeout):
		t.Fatalf("no packet received within %s", timeout)
		return Packet{}
	}
}

func receiveBytes(t *testing.T, ch <-chan []byte, timeout time.Duration) []byte {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(timeout):
		t.Fatalf("no packet received within %s", timeout)
		return nil
	}
}

// datagram builds an IPv4 datagram with a valid header checksum.
func datagram(t *testing.T, src, dst string, ttl uint8, proto uint8, body []byte) []byte {
	t.Helper()
	h := &packet.IPv4Header{
		TotalLength:    uint16(packet.IPv4MinHeaderLen + len(body)),
		Identification: 0x1234,
		TTL:            ttl,
		Protocol:       proto,
		Src:            netip.MustParseAddr(src),
		Dst:            netip.MustParseAddr(dst),
	}
	b, err := h.Marshal()
	require.NoError(t, err)
	require.NoError(t, packet.SetIPv4Checksum(b))
	return append(b, body...)
}

// verifyNoLeaks checks for leaked goroutines after every other cleanup of t has run.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	opt := goleak.IgnoreCurrent()
	t.Cleanup(func() {
		goleak.VerifyNone(t, opt)
	})
}

// decrementTTL enables TTL handling on forward for the duration of t.
func decrementTTL(t *testing.T) {
	t.Helper()
	prev := state.DBG_decrement_ttl
	state.DBG_decrement_ttl = true
	t.Cleanup(func() {
		state.DBG_decrement_ttl = prev
	})
}
