package core

import (
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/encodeous/vrouter/perf"
	"github.com/encodeous/vrouter/state"
)

const maxPacketSize = 65535

func isClosed(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

// readInterface feeds traffic from the host into the ingress queue.
func (r *Router) readInterface() {
	defer r.wg.Done()
	buf := make([]byte, maxPacketSize)
	src := r.Addr().String()
	for {
		n, err := r.dev.ReadPacket(buf)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if isClosed(err) {
				r.log.Warn("interface closed, no longer reading from host", "interface", r.dev.Name())
				return
			}
			r.log.Warn("interface read failed", "error", err)
			select {
			case <-time.After(state.ReadErrorBackoff):
			case <-r.ctx.Done():
				return
			}
			continue
		}
		if n == 0 {
			continue
		}
		r.stats.tunRx.Add(1)
		perf.TunReadBytes.Add(float64(n))
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case r.ingress <- Packet{SrcIP: src, Data: data}:
		case <-r.ctx.Done():
			return
		}
	}
}

// writeInterface drains the outbound queue into the host. Failed writes are logged and skipped.
func (r *Router) writeInterface() {
	defer r.wg.Done()
	for {
		select {
		case b := <-r.outbound:
			n, err := r.dev.WritePacket(b)
			if err != nil {
				if r.ctx.Err() != nil {
					return
				}
				r.log.Warn("interface write failed", "error", err, "len", len(b))
				continue
			}
			r.stats.tunTx.Add(1)
			perf.TunWriteBytes.Add(float64(n))
		case <-r.ctx.Done():
			return
		}
	}
}

// sendInterface queues b for the host, blocking while the outbound queue is full.
func (r *Router) sendInterface(b []byte) bool {
	select {
	case r.outbound <- b:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// listen moves packets arriving over link into the ingress queue until the link or router goes away.
func (r *Router) listen(link *Link) {
	defer r.wg.Done()
	for {
		select {
		case pkt, ok := <-link.Inbox:
			if !ok {
				return
			}
			select {
			case r.ingress <- pkt:
			case <-link.done:
				return
			case <-r.ctx.Done():
				return
			}
		case <-link.done:
			return
		case <-r.ctx.Done():
			return
		}
	}
}
