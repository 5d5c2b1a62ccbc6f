package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
)

// Conn is a datagram socket as the client pipelines use it.
type Conn interface {
	// ReadFrom reads one datagram. dst is the local address it arrived on,
	// or the zero Addr when the platform does not report it.
	ReadFrom(b []byte) (n int, src netip.AddrPort, dst netip.Addr, err error)
	WriteTo(b []byte, dst netip.AddrPort) (int, error)
	LocalAddr() netip.AddrPort
	SetReadDeadline(t time.Time) error
	Close() error
}

// ListenFunc opens a datagram socket bound to local. A zero port asks for
// an ephemeral one.
type ListenFunc func(ctx context.Context, local netip.AddrPort) (Conn, error)

// bufferSizer is implemented by sockets whose kernel buffers can be sized.
type bufferSizer interface {
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
}

// ListenUDP opens a UDP socket with SO_REUSEADDR and SO_BROADCAST set and
// destination-address reporting enabled where the platform supports it.
func ListenUDP(ctx context.Context, local netip.AddrPort) (Conn, error) {
	lc := net.ListenConfig{Control: controlSocket}
	pc, err := lc.ListenPacket(ctx, "udp4", local.String())
	if err != nil {
		return nil, err
	}
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("listen %v: unexpected conn type %T", local, pc)
	}

	c := &udpConn{UDPConn: uc, pc: ipv4.NewPacketConn(uc)}
	// Not supported on windows; ReadFrom then reports no destination.
	c.dst = c.pc.SetControlMessage(ipv4.FlagDst, true) == nil
	return c, nil
}

type udpConn struct {
	*net.UDPConn
	pc  *ipv4.PacketConn
	dst bool
}

func (c *udpConn) ReadFrom(b []byte) (int, netip.AddrPort, netip.Addr, error) {
	if !c.dst {
		n, src, err := c.UDPConn.ReadFromUDPAddrPort(b)
		return n, unmapPort(src), netip.Addr{}, err
	}

	n, cm, src, err := c.pc.ReadFrom(b)
	if err != nil {
		return n, netip.AddrPort{}, netip.Addr{}, err
	}

	var from netip.AddrPort
	if ua, ok := src.(*net.UDPAddr); ok {
		from = unmapPort(ua.AddrPort())
	}
	var dst netip.Addr
	if cm != nil {
		if a, ok := netip.AddrFromSlice(cm.Dst); ok {
			dst = a.Unmap()
		}
	}
	return n, from, dst, nil
}

func (c *udpConn) WriteTo(b []byte, dst netip.AddrPort) (int, error) {
	return c.UDPConn.WriteToUDPAddrPort(b, dst)
}

func (c *udpConn) LocalAddr() netip.AddrPort {
	ua, ok := c.UDPConn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	return unmapPort(ua.AddrPort())
}

func unmapPort(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// controlSocket sets the socket options before bind.
func controlSocket(network, address string, rc syscall.RawConn) error {
	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = setSocketOptions(fd)
	}); err != nil {
		return err
	}
	return serr
}

// isNetworkUnreachable reports whether err means the local network is
// gone. Such errors stop the client.
func isNetworkUnreachable(err error) bool {
	return errors.Is(err, syscall.ENETUNREACH) || isPlatformNetworkUnreachable(err)
}
