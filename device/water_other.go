//go:build !linux

package device

import "github.com/songgao/water"

// the interface name is chosen by the os outside of linux
func waterConfig(string) water.Config {
	return water.Config{DeviceType: water.TUN}
}
