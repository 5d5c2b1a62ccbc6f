package client

import (
	"fmt"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults applied by New for zero Config fields.
const (
	// DefaultPort is the KiNet UDP port.
	DefaultPort uint16 = 6038

	// DefaultStaleAfter is how long an item may wait in the send queue
	// before it is dropped instead of sent.
	DefaultStaleAfter = 100 * time.Millisecond

	// DefaultSlowSendThreshold marks a single transmission as slow.
	DefaultSlowSendThreshold = 20 * time.Millisecond

	// DefaultQueueSize is the capacity of each send lane.
	DefaultQueueSize = 1024

	// DefaultReceiveBufferSize is the socket receive buffer and the largest
	// datagram the receiver accepts.
	DefaultReceiveBufferSize = 20480

	// DefaultSendBufferSize is the socket send buffer and the size of pooled
	// encode buffers.
	DefaultSendBufferSize = 1400

	errorBufferSize = 64
)

// Config holds the client construction parameters.
type Config struct {
	// LocalAddress is the IPv4 address of the interface the client sends
	// from. Required.
	LocalAddress netip.Addr

	// SubnetMask of the local interface, used to compute the broadcast
	// address. Required.
	SubnetMask netip.Addr

	// BindAddress is where the receive socket listens.
	// Default: 0.0.0.0, which receives unicast, broadcast and multicast.
	BindAddress netip.Addr

	// Port is the KiNet port for both directions.
	// Default: 6038.
	Port uint16

	// StaleAfter is the maximum queueing delay.
	// Default: 100ms.
	StaleAfter time.Duration

	// SlowSendThreshold counts transmissions slower than this as slow sends.
	// Default: 20ms.
	SlowSendThreshold time.Duration

	// QueueSize is the capacity of each send lane. Items queued while a lane
	// is full are dropped.
	// Default: 1024.
	QueueSize int

	// ReceiveBufferSize and SendBufferSize size the sockets.
	// Defaults: 20480 and 1400.
	ReceiveBufferSize int
	SendBufferSize    int

	// Logger receives pipeline logs.
	// Default: the logrus standard logger with component=kinet.
	Logger log.FieldLogger

	// Listen opens the client sockets.
	// Default: ListenUDP.
	Listen ListenFunc
}

func (cfg *Config) applyDefaults() error {
	if !cfg.LocalAddress.IsValid() || !cfg.LocalAddress.Unmap().Is4() {
		return fmt.Errorf("%w: local address %v is not IPv4", ErrInvalidArgument, cfg.LocalAddress)
	}
	if !cfg.SubnetMask.IsValid() {
		return fmt.Errorf("%w: subnet mask is required", ErrInvalidArgument)
	}
	cfg.LocalAddress = cfg.LocalAddress.Unmap()
	cfg.SubnetMask = cfg.SubnetMask.Unmap()

	if !cfg.BindAddress.IsValid() {
		cfg.BindAddress = netip.IPv4Unspecified()
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SlowSendThreshold <= 0 {
		cfg.SlowSendThreshold = DefaultSlowSendThreshold
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ReceiveBufferSize <= 0 {
		cfg.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "kinet")
	}
	if cfg.Listen == nil {
		cfg.Listen = ListenUDP
	}
	return nil
}
