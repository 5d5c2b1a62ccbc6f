package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/kpelzel/kinet/internal/packet"
)

// ReceivedPacket is a decoded datagram.
type ReceivedPacket struct {
	// Timestamp is the arrival time relative to client start, taken before
	// decoding.
	Timestamp time.Duration
	// Source is the sender endpoint.
	Source netip.AddrPort
	// Destination is the local endpoint the datagram arrived on. When the
	// platform does not report it, it is the broadcast endpoint.
	Destination netip.AddrPort
	Packet      packet.Packet
}

type subscriber struct {
	ch       chan ReceivedPacket
	done     chan struct{}
	doneOnce sync.Once

	// sendMu serializes sends on ch with closing it.
	sendMu sync.Mutex
	closed bool
}

func (s *subscriber) send(ctx context.Context, rp ReceivedPacket) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- rp:
	case <-s.done:
	case <-ctx.Done():
		return false
	}
	return true
}

func (s *subscriber) close() {
	s.doneOnce.Do(func() { close(s.done) })

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe returns a channel of received packets in arrival order and a
// function that ends the subscription. The receiver blocks until every
// subscriber has taken a packet, so a subscriber that stops reading must
// cancel. The channel is closed by cancel or when the client stops.
func (c *Client) Subscribe(buffer int) (<-chan ReceivedPacket, func()) {
	s := &subscriber{
		ch:   make(chan ReceivedPacket, max(buffer, 0)),
		done: make(chan struct{}),
	}

	c.subMu.Lock()
	if c.subsClosed {
		c.subMu.Unlock()
		s.close()
		return s.ch, func() {}
	}
	c.subs[s] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		s.close()
		c.subMu.Lock()
		delete(c.subs, s)
		c.subMu.Unlock()
	}
	return s.ch, cancel
}

// publish delivers rp to a snapshot of the subscribers. The lock is not
// held while sending, so subscribers may subscribe or cancel meanwhile.
func (c *Client) publish(ctx context.Context, rp ReceivedPacket) {
	c.subMu.RLock()
	subs := make([]*subscriber, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.subMu.RUnlock()

	for _, s := range subs {
		if !s.send(ctx, rp) {
			return
		}
	}
}

func (c *Client) closeSubscribers() {
	c.subMu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	clear(c.subs)
	c.subsClosed = true
	c.subMu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// receiveLoop reads, filters, decodes and publishes datagrams until ctx is
// cancelled or the network becomes unreachable.
func (c *Client) receiveLoop(ctx context.Context) error {
	defer c.closeSubscribers()

	buf := make([]byte, c.cfg.ReceiveBufferSize)
	for {
		n, src, dst, err := c.recvConn.ReadFrom(buf)
		ts := time.Since(c.start)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ferr := fatal(err); ferr != nil {
				c.reportError(ferr)
				return ferr
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: receive socket closed: %w", ErrTransport, err)
			}
			c.log.Warnf("failed to receive: %v", err)
			c.reportError(fmt.Errorf("%w: receive: %w", ErrTransport, err))
			continue
		}

		if c.isSelf(src) {
			c.log.Debugf("ignoring own datagram from %v", src)
			continue
		}
		if n == 0 {
			continue
		}

		p, err := packet.Decode(buf[:n])
		if err != nil {
			c.log.Debugf("discarding datagram from %v: %v", src, err)
			continue
		}
		if p == nil {
			c.log.Debugf("discarding unknown datagram from %v", src)
			continue
		}

		c.publish(ctx, ReceivedPacket{
			Timestamp:   ts,
			Source:      src,
			Destination: c.destination(dst),
			Packet:      p,
		})
	}
}

// isSelf reports whether src is one of the client's own sockets.
func (c *Client) isSelf(src netip.AddrPort) bool {
	return src == c.sendConn.LocalAddr() || src == netip.AddrPortFrom(c.cfg.LocalAddress, c.cfg.Port)
}

func (c *Client) destination(dst netip.Addr) netip.AddrPort {
	if !dst.IsValid() {
		return c.resolver.broadcast
	}
	return c.resolver.endpoint(dst)
}
