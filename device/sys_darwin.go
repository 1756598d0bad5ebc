package device

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// InterfaceName returns "utun"; darwin assigns the unit number itself.
func InterfaceName(string) string {
	return "utun"
}

func checkPrivileges() error {
	if unix.Geteuid() != 0 {
		return fmt.Errorf("%w: running as uid %d", ErrNotPrivileged, unix.Geteuid())
	}
	return nil
}

func ConfigureInterface(logger *slog.Logger, name string, prefix netip.Prefix, mtu int) error {
	addr := prefix.Addr().String()
	err := Exec(logger, "/sbin/ifconfig", name, "inet", addr, addr, "netmask", PrefixToMaskString(prefix), "up")
	if err != nil {
		return err
	}
	return Exec(logger, "/sbin/ifconfig", name, "mtu", strconv.Itoa(mtu))
}
