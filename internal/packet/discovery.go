package packet

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/kpelzel/kinet/internal/wire"
)

// DiscoverSuppliesRequest asks every supply on the segment to identify
// itself. Controllers broadcast it with their own address as SourceIP.
type DiscoverSuppliesRequest struct {
	Base
	SourceIP netip.Addr
}

// NewDiscoverSuppliesRequest returns a request announcing source.
func NewDiscoverSuppliesRequest(source netip.Addr) *DiscoverSuppliesRequest {
	return &DiscoverSuppliesRequest{SourceIP: source}
}

func (*DiscoverSuppliesRequest) Version() uint16 { return V1 }
func (*DiscoverSuppliesRequest) Type() uint16    { return typeDiscoverSupplies }

func (p *DiscoverSuppliesRequest) payloadLen() (int, error) {
	if _, err := ipv4(p.SourceIP); err != nil {
		return 0, err
	}
	return 8, nil
}

func (p *DiscoverSuppliesRequest) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.SourceIP)
	w.Uint32(p.Sequence)
	w.Bytes(ip[:])
}

func decodeDiscoverSuppliesRequest(r *wire.Reader) (Packet, error) {
	p := &DiscoverSuppliesRequest{}
	p.Sequence = r.Uint32()
	p.SourceIP = readIPv4(r)
	return p, nil
}

// DiscoverSupplies3Request is the discovery request variant with an
// explicit command word. It shares its key with DiscoverSuppliesRequest
// and is therefore encode-only.
type DiscoverSupplies3Request struct {
	Base
	Unknown1 uint8
	Unknown2 uint8
	Unknown3 uint16
	Command  uint32
}

// NewDiscoverSupplies3Request returns a request with the observed defaults.
func NewDiscoverSupplies3Request() *DiscoverSupplies3Request {
	return &DiscoverSupplies3Request{Unknown1: 0x01, Command: 0xfafa010a}
}

func (*DiscoverSupplies3Request) Version() uint16 { return V1 }
func (*DiscoverSupplies3Request) Type() uint16    { return typeDiscoverSupplies }

func (*DiscoverSupplies3Request) payloadLen() (int, error) { return 8, nil }

func (p *DiscoverSupplies3Request) writePayload(w *wire.Writer) {
	w.Uint8(p.Unknown1)
	w.Uint8(p.Unknown2)
	w.Uint16(p.Unknown3)
	w.Uint32(p.Command)
}

// DiscoverSupplies2Request is the discovery request QuickPlay Pro sends ten
// times before a DiscoverSuppliesRequest.
type DiscoverSupplies2Request struct {
	Base
	Unknown1 uint8
	Unknown2 uint8
	Unknown3 uint16
	Unknown4 uint32
}

// NewDiscoverSupplies2Request returns a request with the observed defaults.
func NewDiscoverSupplies2Request() *DiscoverSupplies2Request {
	return &DiscoverSupplies2Request{Unknown1: 0x01}
}

func (*DiscoverSupplies2Request) Version() uint16 { return V1 }
func (*DiscoverSupplies2Request) Type() uint16    { return typeDiscoverSupplies2 }

func (*DiscoverSupplies2Request) payloadLen() (int, error) { return 8, nil }

func (p *DiscoverSupplies2Request) writePayload(w *wire.Writer) {
	w.Uint8(p.Unknown1)
	w.Uint8(p.Unknown2)
	w.Uint16(p.Unknown3)
	w.Uint32(p.Unknown4)
}

func decodeDiscoverSupplies2Request(r *wire.Reader) (Packet, error) {
	p := &DiscoverSupplies2Request{}
	p.Unknown1 = r.Uint8()
	p.Unknown2 = r.Uint8()
	p.Unknown3 = r.Uint16()
	p.Unknown4 = r.Uint32()
	return p, nil
}

// discoverSuppliesResponseTrailer is the zero block after the documented
// fields. Some firmware sends more than this; decode discards all of it.
const discoverSuppliesResponseTrailer = 8

// DiscoverSuppliesResponse is a supply's answer to DiscoverSuppliesRequest.
//
// Layout:
//
//	seq(4) ip(4) mac(6) protocol(2) serial(8) details\0 model\0 unknown(2) zero(8)
type DiscoverSuppliesResponse struct {
	Base
	SourceIP        netip.Addr
	MAC             [6]byte
	ProtocolVersion uint16
	Serial          [8]byte
	// Details is free text, typically "M:<manufacturer>\nD:<description>".
	Details  string
	Model    string
	Unknown1 uint16
}

func (*DiscoverSuppliesResponse) Version() uint16 { return V1 }
func (*DiscoverSuppliesResponse) Type() uint16    { return typeDiscoverSuppliesResponse }

func (p *DiscoverSuppliesResponse) payloadLen() (int, error) {
	if _, err := ipv4(p.SourceIP); err != nil {
		return 0, err
	}
	if strings.IndexByte(p.Details, 0) >= 0 || strings.IndexByte(p.Model, 0) >= 0 {
		return 0, fmt.Errorf("%w: identity strings must not contain NUL", ErrInvalidArgument)
	}
	return 24 + len(p.Details) + 1 + len(p.Model) + 1 + 2 + discoverSuppliesResponseTrailer, nil
}

func (p *DiscoverSuppliesResponse) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.SourceIP)
	w.Uint32(p.Sequence)
	w.Bytes(ip[:])
	w.Bytes(p.MAC[:])
	w.Uint16(p.ProtocolVersion)
	w.Bytes(p.Serial[:])
	w.CString(p.Details)
	w.CString(p.Model)
	w.Uint16(p.Unknown1)
	w.Zeros(discoverSuppliesResponseTrailer)
}

func decodeDiscoverSuppliesResponse(r *wire.Reader) (Packet, error) {
	p := &DiscoverSuppliesResponse{}
	p.Sequence = r.Uint32()
	p.SourceIP = readIPv4(r)
	r.Fixed(p.MAC[:])
	p.ProtocolVersion = r.Uint16()
	r.Fixed(p.Serial[:])
	p.Details = r.CString()
	p.Model = r.CString()
	p.Unknown1 = r.Uint16()
	// sPDS-60ca sends 8 trailing bytes, PDS-150e sends 22 more.
	r.Rest()
	return p, nil
}

// DiscoverSupplyRequest is sent to a supply after it answered discovery.
type DiscoverSupplyRequest struct {
	Base
	Unknown1 uint8
}

// NewDiscoverSupplyRequest returns a request with the observed defaults.
func NewDiscoverSupplyRequest() *DiscoverSupplyRequest {
	return &DiscoverSupplyRequest{Unknown1: 0x11}
}

func (*DiscoverSupplyRequest) Version() uint16 { return V1 }
func (*DiscoverSupplyRequest) Type() uint16    { return typeDiscoverSupply }

func (*DiscoverSupplyRequest) payloadLen() (int, error) { return 5, nil }

func (p *DiscoverSupplyRequest) writePayload(w *wire.Writer) {
	w.Uint32(p.Sequence)
	w.Uint8(p.Unknown1)
}

// DiscoverSupply2Response is only partially understood; it can be decoded
// but not encoded.
type DiscoverSupply2Response struct {
	Base
	Unknown1 uint32
	Unknown2 uint32
}

func (*DiscoverSupply2Response) Version() uint16 { return V1 }
func (*DiscoverSupply2Response) Type() uint16    { return typeDiscoverSupply2Response }

func (*DiscoverSupply2Response) payloadLen() (int, error)  { return 0, ErrNotImplemented }
func (*DiscoverSupply2Response) writePayload(*wire.Writer) {}

func decodeDiscoverSupply2Response(r *wire.Reader) (Packet, error) {
	p := &DiscoverSupply2Response{}
	p.Sequence = r.Uint32()
	p.Unknown1 = r.Uint32()
	p.Unknown2 = r.Uint32()
	return p, nil
}

// DiscoverSupply4Response is only partially understood; it can be decoded
// but not encoded.
type DiscoverSupply4Response struct {
	Base
	Unknown1 uint32
	Unknown2 uint32
}

func (*DiscoverSupply4Response) Version() uint16 { return V1 }
func (*DiscoverSupply4Response) Type() uint16    { return typeDiscoverSupply4Response }

func (*DiscoverSupply4Response) payloadLen() (int, error)  { return 0, ErrNotImplemented }
func (*DiscoverSupply4Response) writePayload(*wire.Writer) {}

func decodeDiscoverSupply4Response(r *wire.Reader) (Packet, error) {
	p := &DiscoverSupply4Response{}
	p.Sequence = r.Uint32()
	p.Unknown1 = r.Uint32()
	p.Unknown2 = r.Uint32()
	return p, nil
}

// DiscoverSupplies3Response is an older discovery answer. It shares
// v1/0x0002 with DiscoverSuppliesResponse, so Decode never returns it;
// use DecodeDiscoverSupplies3Response for supplies known to send it.
//
// Layout:
//
//	seq(4) ip(4) mac(6) data(2) serial(4) zero(4) details\0 model\0 zero(2)
type DiscoverSupplies3Response struct {
	Base
	SourceIP netip.Addr
	MAC      [6]byte
	Data     [2]byte
	Serial   uint32
	Zero1    uint32
	Details  string
	Model    string
	Zero2    uint16
}

func (*DiscoverSupplies3Response) Version() uint16 { return V1 }
func (*DiscoverSupplies3Response) Type() uint16    { return typeDiscoverSuppliesResponse }

func (*DiscoverSupplies3Response) payloadLen() (int, error)  { return 0, ErrNotImplemented }
func (*DiscoverSupplies3Response) writePayload(*wire.Writer) {}

func decodeDiscoverSupplies3Response(r *wire.Reader) (Packet, error) {
	p := &DiscoverSupplies3Response{}
	p.Sequence = r.Uint32()
	p.SourceIP = readIPv4(r)
	r.Fixed(p.MAC[:])
	r.Fixed(p.Data[:])
	p.Serial = r.Uint32()
	p.Zero1 = r.Uint32()
	p.Details = r.CString()
	p.Model = r.CString()
	p.Zero2 = r.Uint16()
	return p, nil
}

// DecodeDiscoverSupplies3Response parses buf with the older discovery
// answer layout.
func DecodeDiscoverSupplies3Response(buf []byte) (*DiscoverSupplies3Response, error) {
	p, err := decodeAs(buf, KeyOf(V1, typeDiscoverSuppliesResponse), decodeDiscoverSupplies3Response)
	if err != nil {
		return nil, err
	}
	return p.(*DiscoverSupplies3Response), nil
}
