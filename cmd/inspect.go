package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/encodeous/vrouter/api"
	"github.com/encodeous/vrouter/state"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [router]",
	Aliases: []string{"i"},
	Short:   "Inspects the routers of a running simulation",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := api.NewClient(apiAddr)
		ctx, cancel := context.WithTimeout(cmd.Context(), state.ApiRequestTimeout)
		defer cancel()

		if len(args) == 1 {
			r, err := c.GetRouter(ctx, state.RouterId(args[0]))
			if err != nil {
				return err
			}
			printRouter(os.Stdout, r)
			return nil
		}

		routers, err := c.ListRouters(ctx)
		if err != nil {
			return err
		}
		links, err := c.ListLinks(ctx)
		if err != nil {
			return err
		}
		printRouters(os.Stdout, routers)
		fmt.Println()
		printLinks(os.Stdout, links)
		return nil
	},
	GroupID: "vr",
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func u(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func printRouters(w io.Writer, routers []api.Router) {
	table := newTable(w, "ID", "NAME", "ADDRESS", "INTERFACE", "LINKS", "RX", "FWD", "LOCAL", "ECHO", "DROP")
	for _, r := range routers {
		table.Append([]string{
			string(r.Id), r.Name, r.Address, r.Interface, strconv.Itoa(len(r.Links)),
			u(r.Stats.Received), u(r.Stats.Forwarded), u(r.Stats.Delivered), u(r.Stats.EchoReplies), u(r.Stats.Dropped),
		})
	}
	table.Render()
}

func printLinks(w io.Writer, links []api.Link) {
	table := newTable(w, "A", "B", "A ADDR", "B ADDR", "COST")
	for _, l := range links {
		table.Append([]string{string(l.A), string(l.B), l.AddrA, l.AddrB, strconv.Itoa(l.Cost)})
	}
	table.Render()
}

func printRouter(w io.Writer, r *api.Router) {
	fmt.Fprintf(w, "%s (%s) %s on %s\n\n", r.Id, r.Name, r.Address, r.Interface)
	table := newTable(w, "DESTINATION", "VIA", "KIND")
	for _, rt := range r.Routes {
		table.Append([]string{rt.Dst, string(rt.Via), rt.Kind})
	}
	table.Render()
	fmt.Fprintln(w)
	printLinks(w, r.Links)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&apiAddr, "api", "a", apiAddr, "address of the management api")
}
