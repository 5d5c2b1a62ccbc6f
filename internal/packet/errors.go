package packet

import "errors"

// Codec errors.
var (
	// ErrInvalidMagic is returned by Decode when the first four bytes of a
	// datagram are not the KiNet magic. Such datagrams are foreign traffic.
	ErrInvalidMagic = errors.New("packet: invalid magic")

	// ErrNotImplemented is returned when encoding or decoding a variant
	// whose wire layout is only partially known.
	ErrNotImplemented = errors.New("packet: not implemented")

	// ErrInvalidArgument is returned for field values that cannot be
	// represented on the wire, such as a non-IPv4 address.
	ErrInvalidArgument = errors.New("packet: invalid argument")

	// ErrMalformed is returned when a datagram carries a known header but
	// its body does not match the variant layout.
	ErrMalformed = errors.New("packet: malformed payload")

	// ErrFramingDrift is returned in kinetdebug builds when a declared
	// data length disagrees with the bytes actually present.
	ErrFramingDrift = errors.New("packet: declared length does not match payload")
)
