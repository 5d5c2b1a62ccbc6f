// Package capture decodes KiNet traffic from pcap files.
package capture

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/kpelzel/kinet/internal/packet"
)

// Record is one UDP datagram on the KiNet port.
type Record struct {
	Index       int
	Timestamp   time.Time
	Source      netip.AddrPort
	Destination netip.AddrPort
	// Packet is nil when the datagram is a KiNet kind the codec does not
	// know, or when Err is set.
	Packet packet.Packet
	Err    error
}

// Summary counts what Read saw.
type Summary struct {
	Frames    int
	Datagrams int
	Decoded   int
	Unknown   int
	Errors    int
}

// Read walks a pcap stream and calls fn for every IPv4 UDP datagram sent
// to or from port. It stops early when fn returns an error.
func Read(r io.Reader, port uint16, fn func(Record) error) (Summary, error) {
	var sum Summary

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return sum, fmt.Errorf("failed to read pcap header: %w", err)
	}
	src := gopacket.NewPacketSource(pr, pr.LinkType())
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true}

	for {
		p, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("failed to read frame %d: %w", sum.Frames+1, err)
		}
		sum.Frames++

		ip, _ := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		udp, _ := p.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if ip == nil || udp == nil {
			continue
		}
		if uint16(udp.SrcPort) != port && uint16(udp.DstPort) != port {
			continue
		}
		sum.Datagrams++

		rec := Record{
			Index:       sum.Frames,
			Timestamp:   p.Metadata().Timestamp,
			Source:      netip.AddrPortFrom(toAddr(ip.SrcIP), uint16(udp.SrcPort)),
			Destination: netip.AddrPortFrom(toAddr(ip.DstIP), uint16(udp.DstPort)),
		}
		rec.Packet, rec.Err = packet.Decode(udp.Payload)
		switch {
		case rec.Err != nil:
			sum.Errors++
		case rec.Packet == nil:
			sum.Unknown++
		default:
			sum.Decoded++
		}

		if err := fn(rec); err != nil {
			return sum, err
		}
	}
}

func toAddr(ip net.IP) netip.Addr {
	a, _ := netip.AddrFromSlice(ip)
	return a.Unmap()
}
