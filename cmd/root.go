package cmd

import (
	"os"

	"github.com/encodeous/vrouter/state"
	"github.com/spf13/cobra"
)

var (
	configPath = state.DefaultConfigPath
	apiAddr    = state.DefaultApiAddress
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vrouter",
	Short: "Virtual IPv4 router simulator",
	Long: `vrouter runs a set of simulated IPv4 routers inside one process.
Each router owns a tun interface, answers pings addressed to it and forwards traffic to its neighbours along static routes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Configure a Topology",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "vr",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "topology config file")
}
