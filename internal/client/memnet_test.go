package client

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"
)

// memNetwork is an in-memory datagram segment. Unicast goes to sockets of
// the addressed host on the destination port; datagrams to the broadcast
// address go to every socket on the port, the sender's own included.
type memNetwork struct {
	broadcast netip.Addr

	// onWrite, when set, runs before delivery and can fail or stall a send.
	onWrite func(src netip.AddrPort, b []byte) error

	mu       sync.Mutex
	conns    map[*memConn]struct{}
	nextPort uint16
}

type memDatagram struct {
	src     netip.AddrPort
	dst     netip.Addr
	payload []byte
}

func newMemNetwork(broadcast string) *memNetwork {
	return &memNetwork{
		broadcast: netip.MustParseAddr(broadcast),
		conns:     make(map[*memConn]struct{}),
		nextPort:  40000,
	}
}

// listener returns the ListenFunc of a host with address host.
func (n *memNetwork) listener(host netip.Addr) ListenFunc {
	return func(_ context.Context, local netip.AddrPort) (Conn, error) {
		n.mu.Lock()
		defer n.mu.Unlock()

		port := local.Port()
		if port == 0 {
			n.nextPort++
			port = n.nextPort
		}
		c := &memConn{
			net:    n,
			host:   host,
			local:  netip.AddrPortFrom(local.Addr(), port),
			inbox:  make(chan memDatagram, 64),
			wake:   make(chan struct{}),
			closed: make(chan struct{}),
		}
		n.conns[c] = struct{}{}
		return c, nil
	}
}

func (n *memNetwork) deliver(d memDatagram, port uint16) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for c := range n.conns {
		if c.local.Port() != port {
			continue
		}
		if d.dst != n.broadcast && d.dst != c.host {
			continue
		}
		select {
		case c.inbox <- d:
		default:
		}
	}
}

type memConn struct {
	net   *memNetwork
	host  netip.Addr
	local netip.AddrPort
	inbox chan memDatagram

	wakeOnce  sync.Once
	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *memConn) ReadFrom(b []byte) (int, netip.AddrPort, netip.Addr, error) {
	select {
	case d := <-c.inbox:
		return copy(b, d.payload), d.src, d.dst, nil
	case <-c.wake:
		return 0, netip.AddrPort{}, netip.Addr{}, os.ErrDeadlineExceeded
	case <-c.closed:
		return 0, netip.AddrPort{}, netip.Addr{}, net.ErrClosed
	}
}

func (c *memConn) WriteTo(b []byte, dst netip.AddrPort) (int, error) {
	src := netip.AddrPortFrom(c.host, c.local.Port())
	if c.net.onWrite != nil {
		if err := c.net.onWrite(src, b); err != nil {
			return 0, err
		}
	}
	c.net.deliver(memDatagram{src: src, dst: dst.Addr(), payload: bytes.Clone(b)}, dst.Port())
	return len(b), nil
}

func (c *memConn) LocalAddr() netip.AddrPort { return c.local }

// SetReadDeadline only supports deadlines in the past, which is all the
// client uses.
func (c *memConn) SetReadDeadline(t time.Time) error {
	if !t.IsZero() && !t.After(time.Now()) {
		c.wakeOnce.Do(func() { close(c.wake) })
	}
	return nil
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.net.mu.Lock()
		delete(c.net.conns, c)
		c.net.mu.Unlock()
	})
	return nil
}
