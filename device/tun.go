package device

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.zx2c4.com/wireguard/tun"
)

const (
	DefaultMTU = 1500
	// tunOffset leaves headroom in front of every buffer for the virtio-net header some kernels prepend.
	tunOffset = 16
	maxPacket = 65535
)

// Tun adapts a wireguard-go tun.Device, which moves packets in batches, to the one packet at a time Device.
type Tun struct {
	dev  tun.Device
	name string

	rmu     sync.Mutex
	bufs    [][]byte
	sizes   []int
	pending int // packets read from dev but not yet handed out
	next    int

	wmu  sync.Mutex
	wbuf []byte

	closeOnce sync.Once
	closeErr  error
}

// NewTun creates a kernel tun interface.
func NewTun(logger *slog.Logger, name string, mtu int) (*Tun, error) {
	dev, err := tun.CreateTUN(name, mtu)
	if err != nil {
		return nil, fmt.Errorf("create tun %s: %w", name, err)
	}
	t := wrapTun(dev)
	go t.watchEvents(logger.With("device", t.name))
	return t, nil
}

func wrapTun(dev tun.Device) *Tun {
	name, err := dev.Name()
	if err != nil || name == "" {
		name = "tun"
	}
	batch := max(dev.BatchSize(), 1)
	t := &Tun{
		dev:   dev,
		name:  name,
		bufs:  make([][]byte, batch),
		sizes: make([]int, batch),
		wbuf:  make([]byte, tunOffset+maxPacket),
	}
	for i := range t.bufs {
		t.bufs[i] = make([]byte, tunOffset+maxPacket)
	}
	return t
}

func (t *Tun) watchEvents(logger *slog.Logger) {
	for ev := range t.dev.Events() {
		switch ev {
		case tun.EventUp:
			logger.Debug("interface up")
		case tun.EventDown:
			logger.Debug("interface down")
		case tun.EventMTUUpdate:
			mtu, _ := t.dev.MTU()
			logger.Debug("interface mtu changed", "mtu", mtu)
		}
	}
}

func (t *Tun) ReadPacket(buf []byte) (int, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()
	for t.next >= t.pending {
		n, err := t.dev.Read(t.bufs, t.sizes, tunOffset)
		if err != nil {
			return 0, err
		}
		t.pending, t.next = n, 0
	}
	i := t.next
	t.next++
	return copy(buf, t.bufs[i][tunOffset:tunOffset+t.sizes[i]]), nil
}

func (t *Tun) WritePacket(pkt []byte) (int, error) {
	if len(pkt) > maxPacket {
		return 0, fmt.Errorf("packet of %d bytes exceeds %d", len(pkt), maxPacket)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	n := copy(t.wbuf[tunOffset:], pkt)
	_, err := t.dev.Write([][]byte{t.wbuf[:tunOffset+n]}, tunOffset)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tun) Name() string {
	return t.name
}

func (t *Tun) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.dev.Close()
	})
	return t.closeErr
}
