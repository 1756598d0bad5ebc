//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/device"
	"github.com/encodeous/vrouter/packet"
	"github.com/encodeous/vrouter/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait() {
	<-s
}

// WaitFor waits until the signal is triggered, returning false on timeout.
func (s Signal) WaitFor(timeout time.Duration) bool {
	select {
	case <-s:
		return true
	case <-time.After(timeout):
		return false
	}
}

// PacketFilter sees every datagram a router writes to its interface. Return true to mark it handled.
type PacketFilter func(node state.RouterId, src, dst netip.Addr, pkt []byte) bool

func (h PacketFilter) TryApply(node state.RouterId, src, dst netip.Addr, pkt []byte) bool {
	if h == nil {
		return false
	}
	return h(node, src, dst, pkt)
}

// ExperimentalProto is the IPv4 protocol number used for test payloads.
const ExperimentalProto = 253

// VirtualHarness runs a topology of routers on in-memory devices and plays the
// host behind every interface.
type VirtualHarness struct {
	Topology state.TopologyCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Manager  *core.RouterManager
	Log      *slog.Logger
	Host     PacketFilter

	mu   sync.Mutex
	devs map[string]*device.Virtual
	wg   sync.WaitGroup
}

func (v *VirtualHarness) NewNode(id state.RouterId, address string) {
	v.Topology.Routers = append(v.Topology.Routers, state.RouterCfg{
		Id:      id,
		Address: address,
	})
}

func (v *VirtualHarness) AddLink(a, b state.RouterId, cost int) {
	v.Topology.Links = append(v.Topology.Links, state.LinkCfg{A: a, B: b, Cost: cost})
}

func (v *VirtualHarness) AddRoute(router state.RouterId, dst string, via state.RouterId) {
	v.Topology.Routes = append(v.Topology.Routes, state.RouteCfg{Router: router, Dst: dst, Via: via})
}

func (v *VirtualHarness) factory(name string, _ netip.Prefix) (device.Device, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	dev := device.NewVirtual(name)
	v.devs[name] = dev
	return dev, nil
}

// Start validates the topology, builds every router and starts one host loop per interface.
func (v *VirtualHarness) Start() error {
	ctx, cancel := context.WithCancelCause(context.Background())
	v.Context = ctx
	v.Cancel = cancel
	v.devs = make(map[string]*device.Virtual)
	if v.Log == nil {
		v.Log = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:        slog.LevelDebug,
			CustomPrefix: "harness",
		}))
	}

	if err := state.ExpandTopologyConfig(&v.Topology); err != nil {
		cancel(err)
		return err
	}
	if err := state.TopologyValidator(&v.Topology); err != nil {
		cancel(err)
		return err
	}
	v.Manager = core.NewRouterManager(v.Log, v.factory)
	if err := v.Manager.ApplyTopology(&v.Topology); err != nil {
		cancel(err)
		return errors.Join(err, v.Manager.Close())
	}
	for _, r := range v.Manager.ListRouters() {
		dev := v.Device(r.Id)
		v.wg.Add(1)
		go v.host(r.Id, dev)
	}
	return nil
}

func (v *VirtualHarness) host(node state.RouterId, dev *device.Virtual) {
	defer v.wg.Done()
	for {
		select {
		case <-v.Context.Done():
			return
		case pkt := <-dev.Egress():
			src, err := packet.GetSrcIPFromPacket(pkt)
			if err != nil {
				v.Log.Warn("host received a malformed packet", "node", node, "error", err)
				continue
			}
			dst, _ := packet.GetDestIPFromPacket(pkt)
			if !v.Host.TryApply(node, src, dst, pkt) {
				v.Log.Debug("unhandled host packet", "node", node, "src", src, "dst", dst)
			}
		}
	}
}

// Stop closes every router, then the host loops.
func (v *VirtualHarness) Stop() error {
	err := v.Manager.Close()
	v.Cancel(fmt.Errorf("stopping harness"))
	v.wg.Wait()
	return err
}

// Device returns the interface of router id.
func (v *VirtualHarness) Device(id state.RouterId) *device.Virtual {
	r, err := v.Manager.GetRouter(id)
	if err != nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.devs[r.Interface()]
}

func (v *VirtualHarness) inject(node state.RouterId, pkt []byte) error {
	dev := v.Device(node)
	if dev == nil {
		return fmt.Errorf("%w: %s", core.ErrRouterNotFound, node)
	}
	ctx, cancel := context.WithTimeout(v.Context, time.Second)
	defer cancel()
	return dev.Inject(ctx, pkt)
}

// Send writes a datagram into the interface of node, as the host behind it would.
func (v *VirtualHarness) Send(node state.RouterId, src, dst string, data []byte, ttl byte) error {
	h := &packet.IPv4Header{
		TotalLength:    uint16(packet.IPv4MinHeaderLen + len(data)),
		Identification: 0x2a,
		TTL:            ttl,
		Protocol:       ExperimentalProto,
		Src:            netip.MustParseAddr(src),
		Dst:            netip.MustParseAddr(dst),
	}
	b, err := h.Marshal()
	if err != nil {
		return err
	}
	if err = packet.SetIPv4Checksum(b); err != nil {
		return err
	}
	return v.inject(node, append(b, data...))
}

// Ping writes an ICMP echo request into the interface of node.
func (v *VirtualHarness) Ping(node state.RouterId, src, dst string, seq uint16) error {
	req, err := packet.CreateICMPEchoRequest(netip.MustParseAddr(src), netip.MustParseAddr(dst), 0x77, seq, []byte("vrouter"))
	if err != nil {
		return err
	}
	return v.inject(node, req)
}
