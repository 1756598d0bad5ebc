package cmd

import (
	"fmt"

	"github.com/encodeous/vrouter/core"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the topology config and prints it with graph shorthand expanded",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadTopology(configPath)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Println("Topology is valid")
		fmt.Print(string(out))
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
