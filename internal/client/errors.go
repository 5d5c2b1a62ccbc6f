package client

import "errors"

var (
	// ErrClosed is returned by send calls once the client has stopped.
	ErrClosed = errors.New("client: closed")

	// ErrInvalidArgument reports a programmer error in a constructor or
	// send call, such as an address and mask of different lengths.
	ErrInvalidArgument = errors.New("client: invalid argument")

	// ErrUnsupportedProtocolVersion is returned by SendDmxData for versions
	// other than packet.V1 and packet.V2.
	ErrUnsupportedProtocolVersion = errors.New("client: unsupported protocol version")

	// ErrTransport wraps socket errors delivered on the Errors channel.
	ErrTransport = errors.New("client: transport error")

	// ErrNetworkUnreachable is the fatal cause reported by Err after the
	// network became unreachable.
	ErrNetworkUnreachable = errors.New("client: network unreachable")
)
