package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency      = metric.NewHistogram("1m1s")
	IngressPerSecond     = metric.NewCounter("10s1s")
	ForwardedPerSecond   = metric.NewCounter("10s1s")
	DeliveredPerSecond   = metric.NewCounter("10s1s")
	EchoRepliesPerSecond = metric.NewCounter("10s1s")
	DroppedPerSecond     = metric.NewCounter("10s1s")
	TunReadBytes         = metric.NewCounter("10s1s")
	TunWriteBytes        = metric.NewCounter("10s1s")
)

// Handler serves every published metric.
func Handler() http.Handler {
	return metric.Handler(metric.Exposed)
}

func init() {
	http.Handle("/debug/metrics", Handler())
	expvar.Publish("vrouter:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("vrouter:Ingress/s", IngressPerSecond)
	expvar.Publish("vrouter:Forwarded/s", ForwardedPerSecond)
	expvar.Publish("vrouter:Delivered/s", DeliveredPerSecond)
	expvar.Publish("vrouter:EchoReplies/s", EchoRepliesPerSecond)
	expvar.Publish("vrouter:Dropped/s", DroppedPerSecond)
	expvar.Publish("vrouter:TunReadBytes/s", TunReadBytes)
	expvar.Publish("vrouter:TunWriteBytes/s", TunWriteBytes)
}
