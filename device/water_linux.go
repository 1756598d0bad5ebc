package device

import "github.com/songgao/water"

func waterConfig(name string) water.Config {
	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = name
	return cfg
}
