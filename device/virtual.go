package device

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"golang.zx2c4.com/wireguard/tun/tuntest"

	"github.com/encodeous/vrouter/packet"
)

// Virtual is an in-memory device. The host side is modelled by Inject, which
// feeds the router, and Egress, which yields whatever the router writes.
type Virtual struct {
	*Tun
	ch     *tuntest.ChannelTUN
	closed chan struct{}
	once   sync.Once
}

func NewVirtual(name string) *Virtual {
	ch := tuntest.NewChannelTUN()
	t := wrapTun(ch.TUN())
	t.name = name
	return &Virtual{
		Tun:    t,
		ch:     ch,
		closed: make(chan struct{}),
	}
}

// Inject hands pkt to the router as if the host had sent it.
func (v *Virtual) Inject(ctx context.Context, pkt []byte) error {
	buf := make([]byte, len(pkt))
	copy(buf, pkt)
	select {
	case v.ch.Outbound <- buf:
		return nil
	case <-v.closed:
		return os.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Egress returns the packets written by the router.
func (v *Virtual) Egress() <-chan []byte {
	return v.ch.Inbound
}

// Drain consumes Egress until the device is closed, logging what the host would have seen.
func (v *Virtual) Drain(logger *slog.Logger) {
	for {
		select {
		case pkt := <-v.ch.Inbound:
			src, _ := packet.GetSrcIPFromPacket(pkt)
			dst, _ := packet.GetDestIPFromPacket(pkt)
			logger.Debug("host received packet", "src", src, "dst", dst, "len", len(pkt))
		case <-v.closed:
			return
		}
	}
}

func (v *Virtual) Close() error {
	v.once.Do(func() {
		close(v.closed)
	})
	return v.Tun.Close()
}
