package config

import (
	"fmt"
	"net"
	"net/netip"
)

// Endpoint is the resolved local addressing of a client.
type Endpoint struct {
	Address netip.Addr
	Netmask netip.Addr
	Bind    netip.Addr
	Port    uint16
}

// Resolve turns the network section into addresses.
// Priority: address+netmask, then the named interface, then the first up,
// non-loopback IPv4 interface.
func (n NetworkConfig) Resolve() (Endpoint, error) {
	ep := Endpoint{Port: uint16(n.Port)}

	bind, err := parseAddr("network.bind", n.Bind, netip.IPv4Unspecified())
	if err != nil {
		return Endpoint{}, err
	}
	ep.Bind = bind

	if n.Address != "" {
		if ep.Address, err = parseAddr("network.address", n.Address, netip.Addr{}); err != nil {
			return Endpoint{}, err
		}
		if n.Netmask == "" {
			return Endpoint{}, fmt.Errorf("network.netmask is required with network.address")
		}
		if ep.Netmask, err = parseAddr("network.netmask", n.Netmask, netip.Addr{}); err != nil {
			return Endpoint{}, err
		}
		return ep, nil
	}

	var ifaces []net.Interface
	if n.Interface != "" {
		iface, err := net.InterfaceByName(n.Interface)
		if err != nil {
			return Endpoint{}, fmt.Errorf("cannot resolve interface %s: %w", n.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	} else {
		if ifaces, err = net.Interfaces(); err != nil {
			return Endpoint{}, fmt.Errorf("failed to list interfaces: %w", err)
		}
	}

	for _, iface := range ifaces {
		if n.Interface == "" && (iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if addr, mask, ok := firstIPv4(addrs); ok {
			ep.Address, ep.Netmask = addr, mask
			return ep, nil
		}
	}

	if n.Interface != "" {
		return Endpoint{}, fmt.Errorf("interface %s has no IPv4 address", n.Interface)
	}
	return Endpoint{}, fmt.Errorf("no IPv4 interface found: set network.address and network.netmask or network.interface")
}

func firstIPv4(addrs []net.Addr) (netip.Addr, netip.Addr, bool) {
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		// skip link-local 169.254.x.x
		if ip4[0] == 169 && ip4[1] == 254 {
			continue
		}
		m := ipNet.Mask
		if len(m) == net.IPv6len {
			m = m[12:]
		}
		addr, _ := netip.AddrFromSlice(ip4)
		mask, ok := netip.AddrFromSlice(m)
		if !ok {
			continue
		}
		return addr, mask, true
	}
	return netip.Addr{}, netip.Addr{}, false
}

func parseAddr(key, s string, def netip.Addr) (netip.Addr, error) {
	if s == "" {
		return def, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s: %w", key, err)
	}
	return a.Unmap(), nil
}
