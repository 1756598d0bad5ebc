package state

import "time"

var (
	// LinkBufferSize is the capacity of each direction of a link.
	LinkBufferSize    = 128
	IngressQueueSize  = 128
	OutboundQueueSize = 128
	DeliveryQueueSize = 128

	DefaultLinkCost = 1
	// DropLogSuppression limits "no route" warnings to one per destination per window.
	DropLogSuppression = time.Second * 10
	DropLogCapacity    = uint64(1024)
	// DispatchWarnThreshold flags packets that took unusually long to dispatch.
	DispatchWarnThreshold = time.Millisecond * 100

	ReadErrorBackoff = time.Millisecond * 10
	// StatsLogInterval is how often the runtime logs per-router counters at debug level.
	StatsLogInterval = time.Second * 30

	// MaxTraceHops bounds a reachability trace.
	MaxTraceHops = 64

	ApiRequestTimeout = time.Second * 5
	PingTimeout       = time.Second * 2

	DefaultConfigPath = "topology.yaml"
	DefaultApiAddress = "127.0.0.1:8179"
)
