package core

import "sync/atomic"

type routerStats struct {
	received    atomic.Uint64
	forwarded   atomic.Uint64
	delivered   atomic.Uint64
	echoReplies atomic.Uint64
	dropped     atomic.Uint64
	tunRx       atomic.Uint64
	tunTx       atomic.Uint64
}

// Stats counts packets handled by a router since it started.
type Stats struct {
	Received    uint64
	Forwarded   uint64
	Delivered   uint64
	EchoReplies uint64
	Dropped     uint64
	TunRx       uint64
	TunTx       uint64
}

func (s *routerStats) snapshot() Stats {
	return Stats{
		Received:    s.received.Load(),
		Forwarded:   s.forwarded.Load(),
		Delivered:   s.delivered.Load(),
		EchoReplies: s.echoReplies.Load(),
		Dropped:     s.dropped.Load(),
		TunRx:       s.tunRx.Load(),
		TunTx:       s.tunTx.Load(),
	}
}
