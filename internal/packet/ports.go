package packet

import (
	"fmt"

	"github.com/kpelzel/kinet/internal/wire"
)

// PortType describes what a supply port does.
type PortType int32

// Port types reported in DiscoverPortsResponse.
const (
	PortUnknown                 PortType = 0
	PortDmxOutputBlinkScannable PortType = 1
	PortDmxOutput               PortType = 2
	PortChromasic               PortType = 3
	PortXMX                     PortType = 4
	PortRDM                     PortType = 5
	PortSACN                    PortType = 6
	PortArtNet                  PortType = 7
	PortVirtual                 PortType = 8
)

var portTypeNames = map[PortType]string{
	PortUnknown:                 "unknown",
	PortDmxOutputBlinkScannable: "dmx-output-blink-scannable",
	PortDmxOutput:               "dmx-output",
	PortChromasic:               "chromasic",
	PortXMX:                     "xmx",
	PortRDM:                     "rdm",
	PortSACN:                    "sacn",
	PortArtNet:                  "artnet",
	PortVirtual:                 "virtual",
}

func (t PortType) String() string {
	if s, ok := portTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("PortType(%d)", int32(t))
}

// portDataLength is id(1) + type(4) + extra(3).
const portDataLength = 8

// PortData describes one port in a DiscoverPortsResponse.
type PortData struct {
	ID    uint8
	Type  PortType
	Extra [3]byte
}

// DiscoverPortsRequest asks a v2 supply to list its ports.
type DiscoverPortsRequest struct {
	Base
	Unknown1 uint32
}

func (*DiscoverPortsRequest) Version() uint16 { return V2 }
func (*DiscoverPortsRequest) Type() uint16    { return typeDiscoverPorts }

func (*DiscoverPortsRequest) payloadLen() (int, error) { return 8, nil }

func (p *DiscoverPortsRequest) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Uint32(p.Unknown1)
}

func decodeDiscoverPortsRequest(r *wire.Reader) (Packet, error) {
	p := &DiscoverPortsRequest{}
	p.Sequence = r.Uint32()
	p.Unknown1 = r.Uint32()
	return p, nil
}

// DiscoverPortsResponse lists the ports of a v2 supply.
type DiscoverPortsResponse struct {
	Base
	Ports []PortData
}

func (*DiscoverPortsResponse) Version() uint16 { return V2 }
func (*DiscoverPortsResponse) Type() uint16    { return typeDiscoverPortsResponse }

func (p *DiscoverPortsResponse) payloadLen() (int, error) {
	return 8 + len(p.Ports)*portDataLength, nil
}

func (p *DiscoverPortsResponse) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Int32(int32(len(p.Ports)))
	for _, port := range p.Ports {
		w.Uint8(port.ID)
		w.Int32(int32(port.Type))
		w.Bytes(port.Extra[:])
	}
}

func decodeDiscoverPortsResponse(r *wire.Reader) (Packet, error) {
	p := &DiscoverPortsResponse{}
	p.Sequence = r.Uint32()
	count := r.Int32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if count < 0 || int(count)*portDataLength > r.BytesLeft() {
		return nil, fmt.Errorf("%w: port count %d with %d bytes left", ErrMalformed, count, r.BytesLeft())
	}

	p.Ports = make([]PortData, count)
	for i := range p.Ports {
		p.Ports[i].ID = r.Uint8()
		p.Ports[i].Type = PortType(r.Int32())
		r.Fixed(p.Ports[i].Extra[:])
	}
	return p, nil
}

// ParsePortType is the inverse of PortType.String.
func ParsePortType(s string) (PortType, bool) {
	for t, name := range portTypeNames {
		if name == s {
			return t, true
		}
	}
	return PortUnknown, false
}
