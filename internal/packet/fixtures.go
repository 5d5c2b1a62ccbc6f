package packet

import (
	"net/netip"

	"github.com/kpelzel/kinet/internal/wire"
)

// DiscoverFixturesSerialRequest asks a supply for the serials of the
// fixtures attached to it. Encode-only: its key belongs to the response.
type DiscoverFixturesSerialRequest struct {
	Base
	Address netip.Addr
}

func (*DiscoverFixturesSerialRequest) Version() uint16 { return V1 }
func (*DiscoverFixturesSerialRequest) Type() uint16    { return typeDiscoverFixturesSerial }

func (p *DiscoverFixturesSerialRequest) payloadLen() (int, error) {
	if _, err := ipv4(p.Address); err != nil {
		return 0, err
	}
	return 4, nil
}

func (p *DiscoverFixturesSerialRequest) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.Address)
	w.Bytes(ip[:])
}

// DiscoverFixturesSerialResponse reports one fixture serial.
type DiscoverFixturesSerialResponse struct {
	Base
	Address netip.Addr
	Serial  uint32
}

func (*DiscoverFixturesSerialResponse) Version() uint16 { return V1 }
func (*DiscoverFixturesSerialResponse) Type() uint16    { return typeDiscoverFixturesSerial }

func (p *DiscoverFixturesSerialResponse) payloadLen() (int, error) {
	if _, err := ipv4(p.Address); err != nil {
		return 0, err
	}
	return 8, nil
}

func (p *DiscoverFixturesSerialResponse) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.Address)
	w.Bytes(ip[:])
	w.Uint32(p.Serial)
}

func decodeDiscoverFixturesSerialResponse(r *wire.Reader) (Packet, error) {
	p := &DiscoverFixturesSerialResponse{}
	p.Address = readIPv4(r)
	p.Serial = r.Uint32()
	return p, nil
}

const fixturesChannelDefault uint16 = 0x4100

// DiscoverFixturesChannelRequest asks the fixture with Serial for its
// channel assignment.
type DiscoverFixturesChannelRequest struct {
	Base
	Address  netip.Addr
	Serial   uint32
	Unknown1 uint16
}

// NewDiscoverFixturesChannelRequest returns a request with the observed
// defaults.
func NewDiscoverFixturesChannelRequest(address netip.Addr, serial uint32) *DiscoverFixturesChannelRequest {
	return &DiscoverFixturesChannelRequest{Address: address, Serial: serial, Unknown1: fixturesChannelDefault}
}

func (*DiscoverFixturesChannelRequest) Version() uint16 { return V1 }
func (*DiscoverFixturesChannelRequest) Type() uint16    { return typeDiscoverFixturesChannel }

func (p *DiscoverFixturesChannelRequest) payloadLen() (int, error) {
	if _, err := ipv4(p.Address); err != nil {
		return 0, err
	}
	return 10, nil
}

func (p *DiscoverFixturesChannelRequest) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.Address)
	w.Bytes(ip[:])
	w.Uint32(p.Serial)
	w.Uint16(p.Unknown1)
}

// DiscoverFixturesChannelResponse carries a fixture's channel. Its decode
// layout has not been confirmed on the wire, so decoding fails with
// ErrNotImplemented.
type DiscoverFixturesChannelResponse struct {
	Base
	Address  netip.Addr
	Serial   uint32
	Unknown1 uint16
	Channel  uint8
	OK       uint8
}

func (*DiscoverFixturesChannelResponse) Version() uint16 { return V1 }
func (*DiscoverFixturesChannelResponse) Type() uint16    { return typeDiscoverFixturesChannelResponse }

func (p *DiscoverFixturesChannelResponse) payloadLen() (int, error) {
	if _, err := ipv4(p.Address); err != nil {
		return 0, err
	}
	return 12, nil
}

func (p *DiscoverFixturesChannelResponse) writePayload(w *wire.Writer) {
	ip, _ := ipv4(p.Address)
	w.Bytes(ip[:])
	w.Uint32(p.Serial)
	w.Uint16(p.Unknown1)
	w.Uint8(p.Channel)
	w.Uint8(p.OK)
}

func decodeDiscoverFixturesChannelResponse(*wire.Reader) (Packet, error) {
	return nil, ErrNotImplemented
}
