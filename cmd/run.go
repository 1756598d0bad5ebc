package cmd

import (
	"github.com/encodeous/vrouter/api"
	"github.com/encodeous/vrouter/core"
	"github.com/encodeous/vrouter/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Long: `Builds every router, link and route of the topology and keeps them running until interrupted.
The wireguard and water tun drivers need permission to create interfaces, the virtual driver does not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		return core.Bootstrap(configPath, logPath, verbose, &api.Module{})
	},
	GroupID: "vr",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("log", "l", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_packets, "lpacket", "p", false, "Log every dispatched packet")
	runCmd.Flags().BoolVarP(&state.DBG_log_routes, "lroute", "r", false, "Log routing table changes")
	runCmd.Flags().BoolVar(&state.DBG_decrement_ttl, "ttl", false, "Decrement the TTL of forwarded IPv4 datagrams")
	runCmd.Flags().BoolVar(&state.DBG_debug, "pprof", false, "Serve pprof and expvar on 0.0.0.0:6060")
	runCmd.Flags().BoolVar(&state.DBG_trace, "trace", false, "Write an execution trace to trace.out")
}
