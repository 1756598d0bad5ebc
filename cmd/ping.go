package cmd

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/digineo/go-ping"
	"github.com/encodeous/vrouter/api"
	"github.com/encodeous/vrouter/state"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping <address>",
	Short: "Pings a router address from the host, or injects an echo request into a router",
	Long: `Without --from, ICMP echo requests are sent from the host to the address. This needs
raw socket permissions and a topology using a kernel tun driver with configure enabled.
With --from, the management api traces the path from that router to the address and,
when it is reachable, injects echo requests into the router.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := netip.ParseAddr(args[0])
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		from, _ := cmd.Flags().GetString("from")
		if from != "" {
			return injectPing(cmd.Context(), state.RouterId(from), addr, count)
		}
		return hostPing(addr, count, timeout)
	},
	GroupID: "vr",
}

func hostPing(addr netip.Addr, count int, timeout time.Duration) error {
	pinger, err := ping.New("0.0.0.0", "")
	if err != nil {
		return fmt.Errorf("failed to start pinger: %w", err)
	}
	defer pinger.Close()

	remote := &net.IPAddr{IP: net.IP(addr.AsSlice())}
	lost := 0
	for i := range count {
		rtt, err := pinger.Ping(remote, timeout)
		if err != nil {
			lost++
			fmt.Printf("seq=%d %s: %v\n", i, addr, err)
			continue
		}
		fmt.Printf("seq=%d %s: time=%s\n", i, addr, rtt)
	}
	fmt.Printf("%d sent, %d lost\n", count, lost)
	if lost == count {
		return fmt.Errorf("%s is unreachable", addr)
	}
	return nil
}

func injectPing(ctx context.Context, from state.RouterId, addr netip.Addr, count int) error {
	c := api.NewClient(apiAddr)
	rctx, cancel := context.WithTimeout(ctx, state.ApiRequestTimeout)
	reach, err := c.Reach(rctx, from, addr.String())
	cancel()
	if err != nil {
		return err
	}
	for i, h := range reach.Hops {
		switch h.Action {
		case "forward":
			fmt.Printf("%d: %s -> %s via %s (%s), cost %d\n", i+1, h.Router, h.NextHop, h.Route, h.Kind, h.Cost)
		case "interface":
			fmt.Printf("%d: %s -> interface via %s (%s)\n", i+1, h.Router, h.Route, h.Kind)
		default:
			fmt.Printf("%d: %s owns %s\n", i+1, h.Router, addr)
		}
	}
	if !reach.Reachable {
		return fmt.Errorf("%s is unreachable from %s: %s", addr, from, reach.Failure)
	}
	fmt.Printf("%s is reachable from %s in %d hops, metric %d\n", addr, from, len(reach.Hops), reach.Metric)

	for i := range count {
		ctx, cancel := context.WithTimeout(ctx, state.ApiRequestTimeout)
		err := c.SendPacket(ctx, from, api.SendPacket{Dst: addr.String(), Echo: true})
		cancel()
		if err != nil {
			return err
		}
		fmt.Printf("seq=%d injected echo request %s -> %s\n", i, from, addr)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntP("count", "n", 4, "number of echo requests")
	pingCmd.Flags().DurationP("timeout", "t", state.PingTimeout, "time to wait for each reply")
	pingCmd.Flags().StringP("from", "f", "", "inject the request into this router through the management api")
	pingCmd.Flags().StringVarP(&apiAddr, "api", "a", apiAddr, "address of the management api")
}
