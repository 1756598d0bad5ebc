package device

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os/exec"
	"strings"
)

func Exec(logger *slog.Logger, name string, arg ...string) error {
	out, err := exec.Command(name, arg...).CombinedOutput()
	logger.Debug("exec command", "cmd", name, "arg", arg, "out", string(out))
	if err != nil {
		return fmt.Errorf("error executing command: %s %s. %w. Output: %s", name, arg, err, out)
	}
	return nil
}

// PrefixToMaskString renders the netmask of an IPv4 prefix in dotted quad form.
func PrefixToMaskString(p netip.Prefix) string {
	if !p.IsValid() || !p.Addr().Is4() {
		return ""
	}
	return net.IP(net.CIDRMask(p.Bits(), 32)).String()
}

// sanitizeName keeps the characters interface names tolerate and truncates to the kernel limit.
func sanitizeName(s string, limit int) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
