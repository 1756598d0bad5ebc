package device

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// InterfaceName derives the host interface name of a router, bounded by IFNAMSIZ.
func InterfaceName(routerId string) string {
	return sanitizeName("vr-"+routerId, unix.IFNAMSIZ-1)
}

func checkPrivileges() error {
	if unix.Geteuid() != 0 {
		return fmt.Errorf("%w: running as uid %d, need root or CAP_NET_ADMIN", ErrNotPrivileged, unix.Geteuid())
	}
	return nil
}

func ConfigureInterface(logger *slog.Logger, name string, prefix netip.Prefix, mtu int) error {
	err := Exec(logger, "ip", "addr", "add", prefix.String(), "dev", name)
	if err != nil {
		return err
	}
	err = Exec(logger, "ip", "link", "set", "dev", name, "mtu", strconv.Itoa(mtu))
	if err != nil {
		return err
	}
	return Exec(logger, "ip", "link", "set", "dev", name, "up")
}
