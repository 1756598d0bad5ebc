package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/encodeous/vrouter/state"
	"github.com/spf13/cobra"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Generates a static hosts override naming every router address",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.ReadTopologyConfig(configPath)
		if err != nil {
			return err
		}
		hosts := make(map[string][]string)
		add := func(addr string, name string) {
			if addr == "" {
				return
			}
			pfx, err := state.ParseRouterAddress(addr)
			if err != nil {
				return
			}
			ip := pfx.Addr().String()
			hosts[ip] = append(hosts[ip], name)
		}
		for _, r := range cfg.Routers {
			add(r.Address, string(r.Id))
		}
		for _, l := range cfg.Links {
			add(l.AddrA, fmt.Sprintf("%s.%s", l.A, l.B))
			add(l.AddrB, fmt.Sprintf("%s.%s", l.B, l.A))
		}
		sb := strings.Builder{}
		for _, ip := range slices.Sorted(maps.Keys(hosts)) {
			sb.WriteString(ip)
			for _, name := range slices.Sorted(slices.Values(hosts[ip])) {
				sb.WriteString(fmt.Sprintf("\t%s", name))
			}
			sb.WriteString("\n")
		}
		fmt.Print(sb.String())
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(hostsCmd)
}
