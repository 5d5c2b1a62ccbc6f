// Package supply emulates a KiNet power supply on top of a client: it
// answers discovery the way v1 and v2 supplies do and turns received DMX
// packets into frames.
package supply

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kpelzel/kinet/internal/client"
	"github.com/kpelzel/kinet/internal/config"
	"github.com/kpelzel/kinet/internal/packet"
)

// Transport is the part of client.Client the emulator uses.
type Transport interface {
	Subscribe(buffer int) (<-chan client.ReceivedPacket, func())
	Reply(p packet.Packet, dst netip.Addr) error
	LocalAddress() netip.Addr
}

// Identity is what the emulated supply reports during discovery.
type Identity struct {
	ProtocolVersion uint16
	Details         string
	Model           string
	MAC             [6]byte
	Serial          [8]byte
	Ports           []packet.PortData
}

// IdentityFromConfig parses the supply section of the CLI configuration.
func IdentityFromConfig(cfg config.SupplyConfig) (Identity, error) {
	if cfg.ProtocolVersion != int(packet.V1) && cfg.ProtocolVersion != int(packet.V2) {
		return Identity{}, fmt.Errorf("supply.protocol_version: unsupported version %d", cfg.ProtocolVersion)
	}
	id := Identity{
		ProtocolVersion: uint16(cfg.ProtocolVersion),
		Details:         cfg.Details,
		Model:           cfg.Model,
	}

	mac, err := net.ParseMAC(cfg.MAC)
	if err != nil {
		return Identity{}, fmt.Errorf("supply.mac: %w", err)
	}
	if len(mac) != len(id.MAC) {
		return Identity{}, fmt.Errorf("supply.mac: %s is not a 48-bit MAC", cfg.MAC)
	}
	copy(id.MAC[:], mac)

	serial, err := hex.DecodeString(cfg.Serial)
	if err != nil {
		return Identity{}, fmt.Errorf("supply.serial: %w", err)
	}
	if len(serial) > len(id.Serial) {
		return Identity{}, fmt.Errorf("supply.serial: %s is longer than 8 bytes", cfg.Serial)
	}
	copy(id.Serial[:], serial)

	for _, p := range cfg.Ports {
		if p.ID < 0 || p.ID > 0xff {
			return Identity{}, fmt.Errorf("supply port %d: id out of range", p.ID)
		}
		typ, ok := packet.ParsePortType(p.Type)
		if !ok {
			return Identity{}, fmt.Errorf("supply port %d: unknown type %q", p.ID, p.Type)
		}
		id.Ports = append(id.Ports, packet.PortData{ID: uint8(p.ID), Type: typ})
	}
	return id, nil
}

// Frame is one DMX frame received by the supply.
type Frame struct {
	Received  time.Duration
	Source    netip.AddrPort
	Port      uint8
	Universe  uint32
	StartCode uint8
	Data      []byte
}

// FrameSink consumes frames. HandleFrame runs on the emulator goroutine
// and must not block for long.
type FrameSink interface {
	HandleFrame(f Frame)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(f Frame)

// HandleFrame calls f.
func (fn FrameSinkFunc) HandleFrame(f Frame) { fn(f) }

// Emulator answers discovery and forwards DMX frames to a sink.
type Emulator struct {
	transport Transport
	id        Identity
	sink      FrameSink
	log       log.FieldLogger
}

// New creates an emulator. sink may be nil.
func New(t Transport, id Identity, sink FrameSink, logger log.FieldLogger) *Emulator {
	if logger == nil {
		logger = log.WithField("component", "supply")
	}
	return &Emulator{transport: t, id: id, sink: sink, log: logger}
}

// Run handles packets until ctx is done or the transport stops.
func (e *Emulator) Run(ctx context.Context) error {
	packets, cancel := e.transport.Subscribe(64)
	defer cancel()

	e.log.Infof("emulating %s (protocol v%d) on %v", e.id.Model, e.id.ProtocolVersion, e.transport.LocalAddress())
	for {
		select {
		case <-ctx.Done():
			return nil
		case rp, ok := <-packets:
			if !ok {
				return nil
			}
			if err := e.handle(rp); err != nil {
				e.log.Errorf("failed to answer %T from %v: %v", rp.Packet, rp.Source, err)
			}
		}
	}
}

func (e *Emulator) handle(rp client.ReceivedPacket) error {
	switch p := rp.Packet.(type) {
	case *packet.DiscoverSuppliesRequest:
		e.log.Debugf("discovery from %v (source ip %v)", rp.Source, p.SourceIP)
		resp := &packet.DiscoverSuppliesResponse{
			SourceIP:        e.transport.LocalAddress(),
			MAC:             e.id.MAC,
			ProtocolVersion: e.id.ProtocolVersion,
			Serial:          e.id.Serial,
			Details:         e.id.Details,
			Model:           e.id.Model,
		}
		resp.SetSeq(p.Seq())
		return e.transport.Reply(resp, rp.Source.Addr())

	case *packet.DiscoverPortsRequest:
		if e.id.ProtocolVersion < packet.V2 {
			e.log.Debugf("ignoring port discovery from %v: v1 supply", rp.Source)
			return nil
		}
		resp := &packet.DiscoverPortsResponse{Ports: e.id.Ports}
		resp.SetSeq(p.Seq())
		return e.transport.Reply(resp, rp.Source.Addr())

	case *packet.DmxOut:
		e.emit(Frame{
			Received:  rp.Timestamp,
			Source:    rp.Source,
			Port:      p.Port,
			Universe:  p.Universe,
			StartCode: p.StartCode,
			Data:      p.Data,
		})

	case *packet.PortOut:
		e.emit(Frame{
			Received:  rp.Timestamp,
			Source:    rp.Source,
			Port:      p.Port,
			Universe:  p.Universe,
			StartCode: uint8(p.StartCode),
			Data:      p.Data,
		})

	default:
		e.log.Debugf("ignoring %T from %v", rp.Packet, rp.Source)
	}
	return nil
}

func (e *Emulator) emit(f Frame) {
	if e.sink != nil {
		e.sink.HandleFrame(f)
	}
}
