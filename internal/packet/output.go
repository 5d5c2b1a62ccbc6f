package packet

import (
	"fmt"

	"github.com/kpelzel/kinet/internal/wire"
)

// AllUniverses addresses every universe of a supply.
const AllUniverses uint32 = 0xffffffff

// maxDMXLength bounds Data so the PortOut length field cannot overflow.
const maxDMXLength = 0xffff

func paddedLength(n int) int {
	return max(MinDMXLength, n)
}

// writePadded writes data and zero-pads it up to MinDMXLength.
func writePadded(w *wire.Writer, data []byte) {
	w.Bytes(data)
	if len(data) < MinDMXLength {
		w.Zeros(MinDMXLength - len(data))
	}
}

// DmxOut is the v1 DMX frame.
//
// Layout:
//
//	seq(4) port(1) flags(1) timer(2) universe(4) startcode(1) data(>=24)
//
// There is no length field; the data block runs to the end of the datagram.
type DmxOut struct {
	Base
	Port      uint8
	Flags     uint8
	Timer     uint16
	Universe  uint32
	StartCode uint8
	Data      []byte
}

// NewDmxOut returns a frame for all universes carrying data.
func NewDmxOut(data []byte) *DmxOut {
	return &DmxOut{Universe: AllUniverses, Data: data}
}

func (*DmxOut) Version() uint16 { return V1 }
func (*DmxOut) Type() uint16    { return typeDmxOut }

func (p *DmxOut) payloadLen() (int, error) {
	if len(p.Data) > maxDMXLength {
		return 0, fmt.Errorf("%w: %d bytes of DMX data", ErrInvalidArgument, len(p.Data))
	}
	return 13 + paddedLength(len(p.Data)), nil
}

func (p *DmxOut) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Uint8(p.Port)
	w.Uint8(p.Flags)
	w.Uint16(p.Timer)
	w.Uint32(p.Universe)
	w.Uint8(p.StartCode)
	writePadded(w, p.Data)
}

func decodeDmxOut(r *wire.Reader) (Packet, error) {
	p := &DmxOut{}
	p.Sequence = r.Uint32()
	p.Port = r.Uint8()
	p.Flags = r.Uint8()
	p.Timer = r.Uint16()
	p.Universe = r.Uint32()
	p.StartCode = r.Uint8()
	p.Data = r.Rest()
	return p, nil
}

// PortOut is the v2 DMX frame addressed to a single output port.
//
// Layout:
//
//	seq(4) universe(4) port(1) pad(1) flags(2) length(2) startcode(2) data(length)
//
// length is the padded data length, never below MinDMXLength.
type PortOut struct {
	Base
	Universe  uint32
	Port      uint8
	Pad       uint8
	Flags     uint16
	StartCode uint16
	Data      []byte
}

// NewPortOut returns a frame for port carrying data.
func NewPortOut(port uint8, data []byte, startCode uint8) *PortOut {
	return &PortOut{Universe: AllUniverses, Port: port, StartCode: uint16(startCode), Data: data}
}

func (*PortOut) Version() uint16 { return V2 }
func (*PortOut) Type() uint16    { return typePortOut }

func (p *PortOut) payloadLen() (int, error) {
	if len(p.Data) > maxDMXLength {
		return 0, fmt.Errorf("%w: %d bytes of DMX data", ErrInvalidArgument, len(p.Data))
	}
	return 16 + paddedLength(len(p.Data)), nil
}

func (p *PortOut) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Uint32(p.Universe)
	w.Uint8(p.Port)
	w.Uint8(p.Pad)
	w.Uint16(p.Flags)
	w.Uint16(uint16(paddedLength(len(p.Data))))
	w.Uint16(p.StartCode)
	writePadded(w, p.Data)
}

func decodePortOut(r *wire.Reader) (Packet, error) {
	p := &PortOut{}
	p.Sequence = r.Uint32()
	p.Universe = r.Uint32()
	p.Port = r.Uint8()
	p.Pad = r.Uint8()
	p.Flags = r.Uint16()
	length := r.Uint16()
	p.StartCode = r.Uint16()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if strictFraming && int(length) != r.BytesLeft() {
		return nil, fmt.Errorf("%w: length field %d, %d bytes present", ErrFramingDrift, length, r.BytesLeft())
	}
	p.Data = r.Rest()
	return p, nil
}

// Sync tells supplies to latch the frames received since the last Sync.
// It shares its key with DiscoverSupplies2Request and is encode-only.
type Sync struct {
	Base
	Payload [8]byte
}

func (*Sync) Version() uint16 { return V1 }
func (*Sync) Type() uint16    { return typeSync }

func (*Sync) payloadLen() (int, error) { return 8, nil }

func (p *Sync) writePayload(w *wire.Writer) {
	w.Bytes(p.Payload[:])
}
