package packet

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addrComparer = cmp.Comparer(func(a, b netip.Addr) bool { return a == b })

func seq[P Packet](p P, n uint32) P {
	p.SetSeq(n)
	return p
}

func dmxRamp(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
	}{
		{"DiscoverSuppliesRequest", seq(NewDiscoverSuppliesRequest(netip.MustParseAddr("192.168.1.10")), 7)},
		{"DiscoverSupplies2Request", &DiscoverSupplies2Request{Unknown1: 1, Unknown2: 2, Unknown3: 0x0304, Unknown4: 0x05060708}},
		{"DiscoverSuppliesResponse", seq(&DiscoverSuppliesResponse{
			SourceIP:        netip.MustParseAddr("10.0.0.42"),
			MAC:             [6]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
			ProtocolVersion: 2,
			Serial:          [8]byte{0x12, 0x34, 0x56, 0x78},
			Details:         "M:Hauktest, Inc\nD:Test System",
			Model:           "Test Model",
			Unknown1:        0xbeef,
		}, 99)},
		{"DiscoverFixturesSerialResponse", &DiscoverFixturesSerialResponse{Address: netip.MustParseAddr("10.1.2.3"), Serial: 0xdeadbeef}},
		{"DiscoverPortsRequest", seq(&DiscoverPortsRequest{Unknown1: 3}, 12)},
		{"DiscoverPortsResponse", seq(&DiscoverPortsResponse{Ports: []PortData{
			{ID: 1, Type: PortDmxOutput},
			{ID: 2, Type: PortSACN, Extra: [3]byte{9, 8, 7}},
		}}, 13)},
		{"SupplyReadPropertiesRequest", seq(NewSupplyReadPropertiesRequest(), 14)},
		{"DmxOut", seq(&DmxOut{Port: 1, Flags: 2, Timer: 3, Universe: 4, StartCode: 5, Data: dmxRamp(512)}, 15)},
		{"PortOut", seq(&PortOut{Universe: 1, Port: 2, Flags: 3, StartCode: 4, Data: dmxRamp(100)}, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Marshal(tt.p)
			require.NoError(t, err)

			n, err := Length(tt.p)
			require.NoError(t, err)
			assert.Equal(t, n, len(buf))

			got, err := Decode(buf)
			require.NoError(t, err)
			require.NotNil(t, got)

			if diff := cmp.Diff(tt.p, got, addrComparer); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_DiscoverSuppliesRequestBytes(t *testing.T) {
	p := seq(NewDiscoverSuppliesRequest(netip.MustParseAddr("192.168.1.10")), 1)

	buf, err := Marshal(p)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x04, 0x01, 0xdc, 0x4a, // magic
		0x01, 0x00, // version
		0x01, 0x00, // type
		0x01, 0x00, 0x00, 0x00, // sequence
		192, 168, 1, 10,
	}, buf)
}

func TestEncode_BufferTooSmall(t *testing.T) {
	p := NewDiscoverSuppliesRequest(netip.MustParseAddr("10.0.0.1"))

	_, err := Encode(p, make([]byte, 10))
	assert.Error(t, err)
}

func TestEncode_RejectsNonIPv4(t *testing.T) {
	for _, addr := range []netip.Addr{{}, netip.MustParseAddr("fe80::1")} {
		_, err := Marshal(NewDiscoverSuppliesRequest(addr))
		assert.ErrorIs(t, err, ErrInvalidArgument, "addr %v", addr)
	}

	// IPv4-mapped IPv6 is unmapped
	buf, err := Marshal(NewDiscoverSuppliesRequest(netip.MustParseAddr("::ffff:10.0.0.1")))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0, 1}, buf[12:16])
}

func TestEncode_RejectsNULInIdentity(t *testing.T) {
	p := &DiscoverSuppliesResponse{SourceIP: netip.MustParseAddr("10.0.0.1"), Model: "bad\x00model"}

	_, err := Marshal(p)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecode_InvalidMagic(t *testing.T) {
	valid, err := Marshal(NewDmxOut(dmxRamp(24)))
	require.NoError(t, err)

	corrupt := bytes.Clone(valid)
	corrupt[0] ^= 0xff

	tests := map[string][]byte{
		"empty":          nil,
		"short":          {0x04, 0x01},
		"zeros":          make([]byte, 64),
		"ascii":          []byte("Art-Net\x00\x00\x50"),
		"corrupt magic":  corrupt,
		"big-endian tag": {0x4a, 0xdc, 0x01, 0x04, 0x01, 0x00, 0x01, 0x01},
	}

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := Decode(buf)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidMagic)
		})
	}
}

func header(version, typ uint16) []byte {
	return []byte{0x04, 0x01, 0xdc, 0x4a, byte(version), byte(version >> 8), byte(typ), byte(typ >> 8)}
}

func TestDecode_UnknownVariant(t *testing.T) {
	tests := map[string][]byte{
		"unknown version":   append(header(9, 0x0001), 1, 2, 3, 4),
		"unknown v1 type":   append(header(1, 0x7777), 1, 2, 3, 4),
		"encode-only v1":    append(header(1, typeDiscoverFixturesChannel), make([]byte, 10)...),
		"v2 discover reply": append(header(2, 0x0002), make([]byte, 40)...),
		"header only":       header(3, 3),
	}

	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := Decode(buf)
			assert.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestDecode_TruncatedHeader(t *testing.T) {
	p, err := Decode([]byte{0x04, 0x01, 0xdc, 0x4a, 0x01})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_TruncatedPayload(t *testing.T) {
	buf := append(header(1, typeDiscoverSupplies), 1, 0, 0)

	p, err := Decode(buf)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_NotImplemented(t *testing.T) {
	buf := append(header(1, typeDiscoverFixturesChannelResponse), make([]byte, 12)...)

	p, err := Decode(buf)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestEncode_NotImplemented(t *testing.T) {
	for _, p := range []Packet{
		&DiscoverSupply2Response{},
		&DiscoverSupply4Response{},
		&DiscoverSupplies3Response{},
		&SupplyWritePropertiesRequest{},
	} {
		_, err := Marshal(p)
		assert.ErrorIs(t, err, ErrNotImplemented, "%T", p)

		_, err = Length(p)
		assert.ErrorIs(t, err, ErrNotImplemented, "%T", p)

		_, err = Encode(p, make([]byte, 256))
		assert.ErrorIs(t, err, ErrNotImplemented, "%T", p)
	}
}

func TestDecode_DecodeOnlyVariants(t *testing.T) {
	body := []byte{
		5, 0, 0, 0, // sequence
		0xc0, 0, 0, 0xf0,
		1, 0, 0, 0,
	}

	p, err := Decode(append(header(1, typeDiscoverSupply2Response), body...))
	require.NoError(t, err)
	assert.Equal(t, &DiscoverSupply2Response{Base: Base{Sequence: 5}, Unknown1: 0xf00000c0, Unknown2: 1}, p)

	p, err = Decode(append(header(1, typeDiscoverSupply4Response), body...))
	require.NoError(t, err)
	assert.Equal(t, &DiscoverSupply4Response{Base: Base{Sequence: 5}, Unknown1: 0xf00000c0, Unknown2: 1}, p)

	p, err = Decode(append(header(1, typeSupplyWriteProperties), body...))
	require.NoError(t, err)
	assert.Equal(t, &SupplyWritePropertiesRequest{Base: Base{Sequence: 5}, Unknown1: 0xf00000c0, Unknown2: 1}, p)
}

func TestDecode_DiscoverSuppliesResponseTrailingBytes(t *testing.T) {
	want := &DiscoverSuppliesResponse{
		SourceIP: netip.MustParseAddr("10.0.0.9"),
		Details:  "M:Color Kinetics\nD:PDS-150e",
		Model:    "PDS-150e",
	}
	buf, err := Marshal(want)
	require.NoError(t, err)

	// PDS-150e firmware appends 22 undocumented bytes.
	extra := append(bytes.Clone(buf), bytes.Repeat([]byte{0xaa}, 22)...)

	got, err := Decode(extra)
	require.NoError(t, err)
	if diff := cmp.Diff(Packet(want), got, addrComparer); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// without the documented zero trailer the strings still decode
	short := buf[:len(buf)-discoverSuppliesResponseTrailer]
	got, err = Decode(short)
	require.NoError(t, err)
	assert.Equal(t, "PDS-150e", got.(*DiscoverSuppliesResponse).Model)
}

func TestDecodeDiscoverSupplies3Response(t *testing.T) {
	buf := header(1, typeDiscoverSuppliesResponse)
	buf = append(buf,
		9, 0, 0, 0, // sequence
		10, 0, 0, 7, // ip
		0x00, 0x0a, 0xc5, 0x01, 0x02, 0x03, // mac
		0xab, 0xcd, // data
		0x78, 0x56, 0x34, 0x12, // serial
		0, 0, 0, 0,
	)
	buf = append(buf, "M:Color Kinetics\x00sPDS-480ca\x00"...)
	buf = append(buf, 0, 0)

	got, err := DecodeDiscoverSupplies3Response(buf)
	require.NoError(t, err)
	want := &DiscoverSupplies3Response{
		Base:     Base{Sequence: 9},
		SourceIP: netip.MustParseAddr("10.0.0.7"),
		MAC:      [6]byte{0x00, 0x0a, 0xc5, 0x01, 0x02, 0x03},
		Data:     [2]byte{0xab, 0xcd},
		Serial:   0x12345678,
		Details:  "M:Color Kinetics",
		Model:    "sPDS-480ca",
	}
	if diff := cmp.Diff(want, got, addrComparer); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// the shared key still dispatches to DiscoverSuppliesResponse
	p, err := Decode(buf)
	require.NoError(t, err)
	assert.IsType(t, &DiscoverSuppliesResponse{}, p)

	_, err = DecodeDiscoverSupplies3Response(buf[:20])
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeDiscoverSupplies3Response(append(header(1, typeDmxOut), buf[8:]...))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeDiscoverSupplies3Response([]byte("nope"))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecode_DiscoverSuppliesResponseUnterminated(t *testing.T) {
	buf := append(header(1, typeDiscoverSuppliesResponse), make([]byte, 24)...)
	buf = append(buf, 'a', 'b', 'c')

	p, err := Decode(buf)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_DiscoverPortsResponseBadCount(t *testing.T) {
	for name, count := range map[string][]byte{
		"negative":    {0xff, 0xff, 0xff, 0xff},
		"overclaimed": {3, 0, 0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			buf := append(header(2, typeDiscoverPortsResponse), 1, 0, 0, 0)
			buf = append(buf, count...)
			buf = append(buf, make([]byte, portDataLength)...)

			p, err := Decode(buf)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestKeyCollisions(t *testing.T) {
	// Sync shares v1/0x0109 with DiscoverSupplies2Request.
	buf, err := Marshal(&Sync{})
	require.NoError(t, err)
	p, err := Decode(buf)
	require.NoError(t, err)
	assert.IsType(t, &DiscoverSupplies2Request{}, p)

	// DiscoverSupplies3Request shares v1/0x0001 with DiscoverSuppliesRequest.
	buf, err = Marshal(NewDiscoverSupplies3Request())
	require.NoError(t, err)
	p, err = Decode(buf)
	require.NoError(t, err)
	assert.IsType(t, &DiscoverSuppliesRequest{}, p)

	// DiscoverFixturesSerialRequest shares v1/0x0201 with its response; a
	// 4 byte request body is too short for the response layout.
	buf, err = Marshal(&DiscoverFixturesSerialRequest{Address: netip.MustParseAddr("10.0.0.1")})
	require.NoError(t, err)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeOnlyLengths(t *testing.T) {
	tests := []struct {
		p    Packet
		want int
	}{
		{NewDiscoverSupplies3Request(), 16},
		{NewDiscoverSupplyRequest(), 13},
		{&DiscoverFixturesSerialRequest{Address: netip.MustParseAddr("10.0.0.1")}, 12},
		{NewDiscoverFixturesChannelRequest(netip.MustParseAddr("10.0.0.1"), 5), 18},
		{&DiscoverFixturesChannelResponse{Address: netip.MustParseAddr("10.0.0.1")}, 20},
		{&Sync{}, 16},
	}

	for _, tt := range tests {
		buf, err := Marshal(tt.p)
		require.NoError(t, err, "%T", tt.p)
		assert.Len(t, buf, tt.want, "%T", tt.p)
	}
}

func TestRegistered(t *testing.T) {
	assert.True(t, Registered(KeyOf(V1, typeDmxOut)))
	assert.True(t, Registered(KeyOf(V2, typePortOut)))
	assert.False(t, Registered(KeyOf(V2, typeDmxOut)))
	assert.False(t, Registered(KeyOf(V1, typeDiscoverFixturesChannel)))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "v2/0x0108", KeyOf(V2, typePortOut).String())
	assert.Equal(t, Key(0x00010101), KeyOf(V1, typeDmxOut))
}

func TestPortTypeString(t *testing.T) {
	assert.Equal(t, "dmx-output", PortDmxOutput.String())
	assert.Equal(t, "PortType(42)", PortType(42).String())
}

func TestEncode_PadsShortDMX(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}

	buf, err := Marshal(NewDmxOut(data))
	require.NoError(t, err)
	require.Len(t, buf, HeaderLength+13+MinDMXLength)
	assert.Equal(t, data, buf[21:26])
	assert.Equal(t, make([]byte, MinDMXLength-len(data)), buf[26:])

	buf, err = Marshal(NewPortOut(3, data, 0))
	require.NoError(t, err)
	require.Len(t, buf, HeaderLength+16+MinDMXLength)
	assert.Equal(t, []byte{MinDMXLength, 0}, buf[20:22], "length field")
	assert.Equal(t, byte(3), buf[16], "port")
	assert.Equal(t, make([]byte, MinDMXLength-len(data)), buf[29:])

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Len(t, got.(*PortOut).Data, MinDMXLength)
}

func TestEncode_RejectsOversizedDMX(t *testing.T) {
	_, err := Marshal(NewPortOut(1, make([]byte, maxDMXLength+1), 0))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParsePortType(t *testing.T) {
	for typ := PortUnknown; typ <= PortVirtual; typ++ {
		got, ok := ParsePortType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}

	_, ok := ParsePortType("dali")
	assert.False(t, ok)
}
