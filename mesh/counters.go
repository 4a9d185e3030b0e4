package mesh

import "sync/atomic"

// Counters tracks packet routing statistics for a Node, safe for
// concurrent access from the main loop and from Snapshot callers on any
// goroutine. Adapted from device/router/counters.go's RouterCounters:
// the same named-atomic-field shape, narrowed to the packet kinds and
// routing decisions this spec's forwarding engine (core/forward) actually
// produces.
type Counters struct {
	PacketsRecv atomic.Uint64 // every packet pulled off the receive queue
	PacketsSent atomic.Uint64 // every radio.Driver.Send call made
	SentUnicast atomic.Uint64 // forwards sent via forward.Unicast
	SentFlood   atomic.Uint64 // forwards sent via forward.Flood (summed across neighbours)
	Delivered   atomic.Uint64 // Data packets locally delivered (non-duplicate)
	Duplicates  atomic.Uint64 // packets suppressed by either dedupe filter
}

// CountersSnapshot is a plain-value, point-in-time copy of Counters.
type CountersSnapshot struct {
	PacketsRecv uint64
	PacketsSent uint64
	SentUnicast uint64
	SentFlood   uint64
	Delivered   uint64
	Duplicates  uint64
}

// Snapshot returns a consistent point-in-time copy of c.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		PacketsRecv: c.PacketsRecv.Load(),
		PacketsSent: c.PacketsSent.Load(),
		SentUnicast: c.SentUnicast.Load(),
		SentFlood:   c.SentFlood.Load(),
		Delivered:   c.Delivered.Load(),
		Duplicates:  c.Duplicates.Load(),
	}
}

// Counters returns a snapshot of n's routing statistics.
func (n *Node) Counters() CountersSnapshot {
	return n.counters.Snapshot()
}
