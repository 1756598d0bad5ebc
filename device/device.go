package device

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
)

// Device is the host-facing side of a router: whole IPv4 datagrams in, whole datagrams out.
type Device interface {
	// ReadPacket blocks until a datagram is available and copies it into buf.
	ReadPacket(buf []byte) (int, error)
	WritePacket(pkt []byte) (int, error)
	Name() string
	// Close releases the interface and unblocks pending reads and writes. It is safe to call more than once.
	Close() error
}

// Factory acquires the device for one router.
type Factory func(name string, prefix netip.Prefix) (Device, error)

const (
	DriverWireGuard = "wireguard"
	DriverWater     = "water"
	DriverVirtual   = "virtual"
)

var (
	ErrUnknownDriver = errors.New("unknown tun driver")
	ErrNotPrivileged = errors.New("insufficient privileges to create a tun device")
	ErrUnsupported   = errors.New("interface configuration is not supported on this platform")
)

type Options struct {
	Driver string
	MTU    int
	// Configure assigns the prefix to the host interface and brings it up.
	Configure bool
}

// NewFactory returns a Factory for the selected driver.
func NewFactory(logger *slog.Logger, opt Options) (Factory, error) {
	if opt.MTU <= 0 {
		opt.MTU = DefaultMTU
	}
	switch opt.Driver {
	case "", DriverWireGuard:
		return func(name string, prefix netip.Prefix) (Device, error) {
			if err := checkPrivileges(); err != nil {
				return nil, err
			}
			dev, err := NewTun(logger, name, opt.MTU)
			if err != nil {
				return nil, err
			}
			return dev, configure(logger, dev, prefix, opt)
		}, nil
	case DriverWater:
		return func(name string, prefix netip.Prefix) (Device, error) {
			if err := checkPrivileges(); err != nil {
				return nil, err
			}
			dev, err := NewWater(name)
			if err != nil {
				return nil, err
			}
			return dev, configure(logger, dev, prefix, opt)
		}, nil
	case DriverVirtual:
		return func(name string, prefix netip.Prefix) (Device, error) {
			v := NewVirtual(name)
			go v.Drain(logger.With("device", name))
			return v, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opt.Driver)
	}
}

func configure(logger *slog.Logger, dev Device, prefix netip.Prefix, opt Options) error {
	if !opt.Configure {
		return nil
	}
	err := ConfigureInterface(logger, dev.Name(), prefix, opt.MTU)
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("configure %s: %w", dev.Name(), err)
	}
	logger.Info("configured interface", "name", dev.Name(), "prefix", prefix, "mtu", opt.MTU)
	return nil
}
