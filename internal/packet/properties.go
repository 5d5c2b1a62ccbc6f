package packet

import "github.com/kpelzel/kinet/internal/wire"

const propertiesDefault uint32 = 0x000000c0

// SupplyReadPropertiesRequest asks a supply for its property block.
type SupplyReadPropertiesRequest struct {
	Base
	Unknown1 uint32
}

// NewSupplyReadPropertiesRequest returns a request with the observed
// defaults.
func NewSupplyReadPropertiesRequest() *SupplyReadPropertiesRequest {
	return &SupplyReadPropertiesRequest{Unknown1: propertiesDefault}
}

func (*SupplyReadPropertiesRequest) Version() uint16 { return V1 }
func (*SupplyReadPropertiesRequest) Type() uint16    { return typeSupplyReadProperties }

func (*SupplyReadPropertiesRequest) payloadLen() (int, error) { return 8, nil }

func (p *SupplyReadPropertiesRequest) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Uint32(p.Unknown1)
}

func decodeSupplyReadPropertiesRequest(r *wire.Reader) (Packet, error) {
	p := &SupplyReadPropertiesRequest{}
	p.Sequence = r.Uint32()
	p.Unknown1 = r.Uint32()
	return p, nil
}

// SupplyWritePropertiesRequest updates a supply's property block. The
// property payload is not understood, so encoding fails with
// ErrNotImplemented.
type SupplyWritePropertiesRequest struct {
	Base
	Unknown1 uint32
	Unknown2 uint32
}

func (*SupplyWritePropertiesRequest) Version() uint16 { return V1 }
func (*SupplyWritePropertiesRequest) Type() uint16    { return typeSupplyWriteProperties }

func (*SupplyWritePropertiesRequest) payloadLen() (int, error)  { return 0, ErrNotImplemented }
func (*SupplyWritePropertiesRequest) writePayload(*wire.Writer) {}

func decodeSupplyWritePropertiesRequest(r *wire.Reader) (Packet, error) {
	p := &SupplyWritePropertiesRequest{}
	p.Sequence = r.Uint32()
	p.Unknown1 = r.Uint32()
	p.Unknown2 = r.Uint32()
	return p, nil
}
