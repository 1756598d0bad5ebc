package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/vrouter/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample two router topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configPath); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", configPath)
		}
		if err := state.PathValidator(configPath); err != nil {
			return err
		}

		cfg := state.SampleTopology()
		if drv, _ := cmd.Flags().GetString("driver"); drv != "" {
			cfg.Tun.Driver = drv
		}
		if err := state.TopologyValidator(&cfg); err != nil {
			return err
		}
		out, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		if err = os.WriteFile(configPath, out, 0600); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing config")
	initCmd.Flags().StringP("driver", "d", "", "tun driver to use: wireguard, water or virtual")
}
