package device

import (
	"fmt"
	"sync"

	"github.com/songgao/water"
)

// Water is a tun interface opened through songgao/water.
type Water struct {
	itf       *water.Interface
	closeOnce sync.Once
	closeErr  error
}

func NewWater(name string) (*Water, error) {
	itf, err := water.New(waterConfig(name))
	if err != nil {
		return nil, fmt.Errorf("create tun %s: %w", name, err)
	}
	return &Water{itf: itf}, nil
}

func (w *Water) ReadPacket(buf []byte) (int, error) {
	return w.itf.Read(buf)
}

func (w *Water) WritePacket(pkt []byte) (int, error) {
	return w.itf.Write(pkt)
}

func (w *Water) Name() string {
	return w.itf.Name()
}

func (w *Water) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.itf.Close()
	})
	return w.closeErr
}
