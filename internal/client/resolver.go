package client

import (
	"fmt"
	"net/netip"
	"sync"
)

// BroadcastAddress returns address | ^mask. Both must have the same length.
func BroadcastAddress(address, mask netip.Addr) (netip.Addr, error) {
	address, mask = address.Unmap(), mask.Unmap()
	if !address.IsValid() || !mask.IsValid() || address.BitLen() != mask.BitLen() {
		return netip.Addr{}, fmt.Errorf("%w: address %v and mask %v differ in length", ErrInvalidArgument, address, mask)
	}

	a := address.AsSlice()
	m := mask.AsSlice()
	for i := range a {
		a[i] |= ^m[i]
	}
	b, _ := netip.AddrFromSlice(a)
	return b, nil
}

// resolver maps addresses to endpoints at the client port. Both pipeline
// loops use it concurrently.
type resolver struct {
	port      uint16
	broadcast netip.AddrPort
	cache     sync.Map // netip.Addr -> netip.AddrPort
}

func newResolver(broadcast netip.Addr, port uint16) *resolver {
	return &resolver{
		port:      port,
		broadcast: netip.AddrPortFrom(broadcast, port),
	}
}

// resolve returns the send endpoint for addr and whether it is the
// broadcast endpoint. An invalid addr means broadcast. So does an IPv4
// address ending in .255: some stacks handle a directed send to x.y.z.255
// differently from a broadcast, so it is sent as one.
func (r *resolver) resolve(addr netip.Addr) (netip.AddrPort, bool) {
	if !addr.IsValid() {
		return r.broadcast, true
	}
	addr = addr.Unmap()
	if addr.Is4() && addr.As4()[3] == 255 {
		return r.broadcast, true
	}
	return r.endpoint(addr), false
}

// endpoint returns the cached endpoint for addr, creating it on first use.
func (r *resolver) endpoint(addr netip.Addr) netip.AddrPort {
	if ep, ok := r.cache.Load(addr); ok {
		return ep.(netip.AddrPort)
	}
	ep, _ := r.cache.LoadOrStore(addr, netip.AddrPortFrom(addr, r.port))
	return ep.(netip.AddrPort)
}
