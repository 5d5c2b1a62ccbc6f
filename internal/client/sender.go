package client

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/kpelzel/kinet/internal/packet"
)

// sendItem is one encoded datagram waiting in a send lane. The sender
// consumes it exactly once and returns buf to the pool either way.
type sendItem struct {
	dst      netip.AddrPort
	buf      *[]byte
	n        int
	enqueued time.Time
}

// DmxOptions tune SendDmxData.
type DmxOptions struct {
	// Important frames go to the priority lane.
	Important bool
	// StartCode is the DMX start code. Only PortOut carries it.
	StartCode uint8
	// ProtocolVersion selects DmxOut (packet.V1) or PortOut (packet.V2).
	// Zero means packet.V1.
	ProtocolVersion uint16
}

// SendPacket queues p for dst. An invalid dst broadcasts.
func (c *Client) SendPacket(p packet.Packet, dst netip.Addr) error {
	return c.enqueue(p, dst, false, true)
}

// QueuePacket queues p for dst; important packets go to the priority lane,
// which the sender always drains first.
func (c *Client) QueuePacket(p packet.Packet, dst netip.Addr, important bool) error {
	return c.enqueue(p, dst, important, true)
}

// Reply queues p for dst keeping the sequence number already set on p, so
// a response can echo the sequence of its request.
func (c *Client) Reply(p packet.Packet, dst netip.Addr) error {
	return c.enqueue(p, dst, false, false)
}

// SendDmxData queues one DMX frame. Under packet.V1 it is a DmxOut for all
// universes and universe is ignored; under packet.V2 it is a PortOut with
// universe as the port number.
func (c *Client) SendDmxData(dst netip.Addr, universe uint8, data []byte, opts DmxOptions) error {
	var p packet.Packet
	switch opts.ProtocolVersion {
	case 0, packet.V1:
		p = packet.NewDmxOut(data)
	case packet.V2:
		p = packet.NewPortOut(universe, data, opts.StartCode)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedProtocolVersion, opts.ProtocolVersion)
	}
	return c.enqueue(p, dst, opts.Important, true)
}

// SendSync queues a Sync on the priority lane.
func (c *Client) SendSync(dst netip.Addr) error {
	return c.enqueue(&packet.Sync{}, dst, true, true)
}

func (c *Client) enqueue(p packet.Packet, dst netip.Addr, important, assignSeq bool) error {
	if c.closed() {
		return ErrClosed
	}

	if assignSeq {
		p.SetSeq(c.seq.Add(1))
	}
	size, err := packet.Length(p)
	if err != nil {
		return err
	}
	buf := c.pool.get(size)
	n, err := packet.Encode(p, *buf)
	if err != nil {
		c.pool.put(buf)
		return err
	}

	ep, _ := c.resolver.resolve(dst)
	item := sendItem{dst: ep, buf: buf, n: n, enqueued: time.Now()}

	lane := c.normal
	if important {
		lane = c.priority
	}
	select {
	case lane <- item:
		c.stats.observeQueue(len(c.priority) + len(c.normal))
	default:
		c.pool.put(buf)
		c.stats.dropped.Add(1)
		c.log.Debugf("send queue full, dropping %T to %v", p, ep)
	}
	return nil
}

// sendLoop transmits queued items until ctx is cancelled or the network
// becomes unreachable.
func (c *Client) sendLoop(ctx context.Context) error {
	for {
		var item sendItem
		select {
		case item = <-c.priority:
		default:
			select {
			case <-ctx.Done():
				return nil
			case item = <-c.priority:
			case item = <-c.normal:
			}
		}

		if err := c.transmit(item); err != nil {
			return err
		}
	}
}

func (c *Client) transmit(item sendItem) error {
	defer c.pool.put(item.buf)

	if age := time.Since(item.enqueued); age > c.cfg.StaleAfter {
		c.stats.dropped.Add(1)
		c.log.Debugf("dropping stale packet to %v, queued %v", item.dst, age)
		return nil
	}

	c.stats.observeDestination(item.dst)

	start := time.Now()
	_, err := c.sendConn.WriteTo((*item.buf)[:item.n], item.dst)
	if elapsed := time.Since(start); elapsed > c.cfg.SlowSendThreshold {
		c.stats.slowSends.Add(1)
		c.log.Debugf("slow send to %v took %v", item.dst, elapsed)
	}
	if err == nil {
		return nil
	}

	if ferr := fatal(err); ferr != nil {
		c.reportError(ferr)
		return ferr
	}
	c.log.Warnf("failed to send to %v: %v", item.dst, err)
	c.reportError(fmt.Errorf("%w: send to %v: %w", ErrTransport, item.dst, err))
	return nil
}

// drainQueues releases the buffers of items left unsent at shutdown.
func (c *Client) drainQueues() {
	for {
		select {
		case item := <-c.priority:
			c.pool.put(item.buf)
		case item := <-c.normal:
			c.pool.put(item.buf)
		default:
			return
		}
	}
}
