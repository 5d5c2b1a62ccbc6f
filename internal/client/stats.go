package client

import (
	"net/netip"
	"sync"
	"sync/atomic"
)

// Statistics is a sample of the send pipeline counters. Every read resets
// them, so each sample covers the interval since the previous one.
type Statistics struct {
	// DroppedPackets counts items dropped for being stale or because their
	// lane was full.
	DroppedPackets uint64
	// QueueLength is the deepest the send queue got.
	QueueLength int
	// SlowSends counts transmissions slower than the slow send threshold.
	SlowSends uint64
	// DestinationCount is the number of distinct endpoints sent to.
	DestinationCount int
}

type counters struct {
	dropped   atomic.Uint64
	slowSends atomic.Uint64
	queueHigh atomic.Int64

	destMu       sync.Mutex
	destinations map[netip.AddrPort]struct{}
}

func newCounters() *counters {
	return &counters{destinations: make(map[netip.AddrPort]struct{})}
}

func (c *counters) observeQueue(depth int) {
	d := int64(depth)
	for {
		cur := c.queueHigh.Load()
		if d <= cur || c.queueHigh.CompareAndSwap(cur, d) {
			return
		}
	}
}

func (c *counters) observeDestination(ep netip.AddrPort) {
	c.destMu.Lock()
	c.destinations[ep] = struct{}{}
	c.destMu.Unlock()
}

func (c *counters) sample() Statistics {
	c.destMu.Lock()
	dests := len(c.destinations)
	clear(c.destinations)
	c.destMu.Unlock()

	return Statistics{
		DroppedPackets:   c.dropped.Swap(0),
		QueueLength:      int(c.queueHigh.Swap(0)),
		SlowSends:        c.slowSends.Swap(0),
		DestinationCount: dests,
	}
}
