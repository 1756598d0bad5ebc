//go:build !linux && !darwin

package device

import (
	"log/slog"
	"net/netip"
)

func InterfaceName(routerId string) string {
	return sanitizeName("vr-"+routerId, 15)
}

func checkPrivileges() error {
	return nil
}

func ConfigureInterface(*slog.Logger, string, netip.Prefix, int) error {
	return ErrUnsupported
}
