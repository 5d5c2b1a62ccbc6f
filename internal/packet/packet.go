// Package packet implements the KiNet wire format.
//
// Every datagram starts with an 8 byte header:
//
//	Byte 0-3: Magic 0x4ADC0104 (little-endian)
//	Byte 4-5: Version
//	Byte 6-7: Type
//	Byte 8+:  Variant payload
//
// Version and Type together select the variant. Decode looks the pair up in
// a fixed table; pairs missing from the table decode to (nil, nil) because
// the network routinely carries kinds this package does not know.
//
// Several variants share a (Version, Type) pair with another variant. Only
// one of them can own the key in the decode table; the others are
// encode-only. See the table in decoders.
package packet

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/kpelzel/kinet/internal/wire"
)

// Magic identifies KiNet datagrams.
const Magic uint32 = 0x4ADC0104

// HeaderLength is the size of magic + version + type.
const HeaderLength = 8

// MinDMXLength is the minimum DMX block devices accept. Shorter data is
// zero-padded on encode.
const MinDMXLength = 24

// Protocol versions.
const (
	V1 uint16 = 0x0001
	V2 uint16 = 0x0002
)

// Variant types. The same number can mean different things under V1 and V2.
const (
	typeDiscoverSupplies                uint16 = 0x0001
	typeDiscoverSuppliesResponse        uint16 = 0x0002
	typeDiscoverSupply                  uint16 = 0x000a
	typeDiscoverSupply4Response         uint16 = 0x000b
	typeDmxOut                          uint16 = 0x0101
	typeSupplyWriteProperties           uint16 = 0x0103
	typeSupplyReadProperties            uint16 = 0x0105
	typeDiscoverSupply2Response         uint16 = 0x0106
	typeDiscoverSupplies2               uint16 = 0x0109
	typeSync                            uint16 = 0x0109
	typeDiscoverFixturesSerial          uint16 = 0x0201
	typeDiscoverFixturesChannelResponse uint16 = 0x0203
	typeDiscoverFixturesChannel         uint16 = 0x0303

	typeDiscoverPorts         uint16 = 0x000a
	typeDiscoverPortsResponse uint16 = 0x000b
	typePortOut               uint16 = 0x0108
)

// Key is the dispatch key of a variant: version<<16 | type.
type Key uint32

// KeyOf builds the dispatch key for a version/type pair.
func KeyOf(version, typ uint16) Key {
	return Key(uint32(version)<<16 | uint32(typ))
}

// String formats the key as version/type in hex.
func (k Key) String() string {
	return fmt.Sprintf("v%d/0x%04x", uint16(k>>16), uint16(k))
}

// Packet is implemented by every KiNet variant in this package.
//
// The set of variants is closed; the unexported methods keep other
// packages from adding their own.
type Packet interface {
	// Version returns the protocol version half of the dispatch key.
	Version() uint16
	// Type returns the type half of the dispatch key.
	Type() uint16
	// Seq returns the sequence number.
	Seq() uint32
	// SetSeq sets the sequence number. The client calls this at send time.
	SetSeq(seq uint32)

	payloadLen() (int, error)
	writePayload(w *wire.Writer)
}

// Base carries the sequence number shared by all variants. Variants that
// do not transmit a sequence still keep the client-assigned value locally.
type Base struct {
	Sequence uint32
}

// Seq returns the sequence number.
func (b *Base) Seq() uint32 { return b.Sequence }

// SetSeq sets the sequence number.
func (b *Base) SetSeq(seq uint32) { b.Sequence = seq }

// Length returns the encoded size of p including the header.
func Length(p Packet) (int, error) {
	n, err := p.payloadLen()
	if err != nil {
		return 0, err
	}
	return HeaderLength + n, nil
}

// Encode writes p into buf and returns the number of bytes written.
// buf must hold at least Length(p) bytes.
func Encode(p Packet, buf []byte) (int, error) {
	if _, err := p.payloadLen(); err != nil {
		return 0, fmt.Errorf("encode %T: %w", p, err)
	}

	w := wire.NewWriter(buf)
	w.Uint32(Magic)
	w.Uint16(p.Version())
	w.Uint16(p.Type())
	p.writePayload(w)

	if err := w.Err(); err != nil {
		return 0, fmt.Errorf("encode %T: %w", p, err)
	}
	return w.BytesWritten(), nil
}

// Marshal encodes p into a newly allocated slice.
func Marshal(p Packet) ([]byte, error) {
	n, err := Length(p)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", p, err)
	}
	buf := make([]byte, n)
	written, err := Encode(p, buf)
	if err != nil {
		return nil, err
	}
	return buf[:written], nil
}

// Decode parses a datagram.
//
// It returns ErrInvalidMagic for foreign datagrams and (nil, nil) for
// KiNet datagrams whose version/type pair is not in the decode table.
func Decode(buf []byte) (Packet, error) {
	r, key, err := readHeader(buf)
	if err != nil {
		return nil, err
	}
	decode, ok := decoders[key]
	if !ok {
		return nil, nil
	}
	return runDecoder(r, key, decode)
}

// decodeAs decodes buf with decode, bypassing the dispatch table. The
// header must carry want.
func decodeAs(buf []byte, want Key, decode decodeFunc) (Packet, error) {
	r, key, err := readHeader(buf)
	if err != nil {
		return nil, err
	}
	if key != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrMalformed, key, want)
	}
	return runDecoder(r, key, decode)
}

func readHeader(buf []byte) (*wire.Reader, Key, error) {
	r := wire.NewReader(buf)

	if r.BytesLeft() < 4 || r.Uint32() != Magic {
		return nil, 0, ErrInvalidMagic
	}

	version := r.Uint16()
	typ := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	return r, KeyOf(version, typ), nil
}

func runDecoder(r *wire.Reader, key Key, decode decodeFunc) (Packet, error) {
	p, err := decode(r)
	if err == nil {
		err = r.Err()
	}
	if err != nil {
		if errors.Is(err, wire.ErrTruncated) || errors.Is(err, wire.ErrUnterminated) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, key, err)
		}
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return p, nil
}

type decodeFunc func(r *wire.Reader) (Packet, error)

// decoders maps dispatch keys to variant decoders.
//
// Key collisions, resolved in favour of the listed variant:
//
//	v1/0x0001: DiscoverSuppliesRequest  (not DiscoverSupplies3Request)
//	v1/0x0002: DiscoverSuppliesResponse (not DiscoverSupplies3Response)
//	v1/0x0109: DiscoverSupplies2Request (not Sync)
//	v1/0x0201: DiscoverFixturesSerialResponse (not DiscoverFixturesSerialRequest)
var decoders = map[Key]decodeFunc{
	KeyOf(V1, typeDiscoverSupplies):                decodeDiscoverSuppliesRequest,
	KeyOf(V1, typeDiscoverSuppliesResponse):        decodeDiscoverSuppliesResponse,
	KeyOf(V1, typeDiscoverSupply4Response):         decodeDiscoverSupply4Response,
	KeyOf(V1, typeDmxOut):                          decodeDmxOut,
	KeyOf(V1, typeSupplyWriteProperties):           decodeSupplyWritePropertiesRequest,
	KeyOf(V1, typeSupplyReadProperties):            decodeSupplyReadPropertiesRequest,
	KeyOf(V1, typeDiscoverSupply2Response):         decodeDiscoverSupply2Response,
	KeyOf(V1, typeDiscoverSupplies2):               decodeDiscoverSupplies2Request,
	KeyOf(V1, typeDiscoverFixturesSerial):          decodeDiscoverFixturesSerialResponse,
	KeyOf(V1, typeDiscoverFixturesChannelResponse): decodeDiscoverFixturesChannelResponse,
	KeyOf(V2, typeDiscoverPorts):                   decodeDiscoverPortsRequest,
	KeyOf(V2, typeDiscoverPortsResponse):           decodeDiscoverPortsResponse,
	KeyOf(V2, typePortOut):                         decodePortOut,
}

// Registered reports whether Decode knows how to decode key.
func Registered(key Key) bool {
	_, ok := decoders[key]
	return ok
}

// ipv4 returns the four address bytes of a, which must be IPv4 or
// IPv4-mapped IPv6.
func ipv4(a netip.Addr) ([4]byte, error) {
	a = a.Unmap()
	if !a.Is4() {
		return [4]byte{}, fmt.Errorf("%w: %v is not an IPv4 address", ErrInvalidArgument, a)
	}
	return a.As4(), nil
}

func readIPv4(r *wire.Reader) netip.Addr {
	var b [4]byte
	r.Fixed(b[:])
	return netip.AddrFrom4(b)
}
