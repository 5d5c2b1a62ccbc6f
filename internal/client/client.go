// Package client implements the KiNet client: socket setup, destination
// resolution, the send queue with staleness drops, and the receive loop
// that decodes datagrams and fans them out to subscribers.
//
// A Client runs exactly two goroutines, a sender and a receiver, under one
// shared cancellation. Close or a fatal transport error stops both.
package client

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// aLongTimeAgo is a past deadline that unblocks a pending read.
var aLongTimeAgo = time.Unix(1, 0)

// Client is a KiNet endpoint. All methods are safe for concurrent use.
type Client struct {
	cfg       Config
	log       log.FieldLogger
	start     time.Time
	broadcast netip.Addr
	resolver  *resolver
	pool      *bufferPool
	stats     *counters
	seq       atomic.Uint32

	sendConn Conn
	recvConn Conn

	priority chan sendItem
	normal   chan sendItem

	subMu      sync.RWMutex
	subs       map[*subscriber]struct{}
	subsClosed bool

	errs chan error

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// New opens the client sockets and starts the pipelines. ctx bounds socket
// setup only; use Close to stop the client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	broadcast, err := BroadcastAddress(cfg.LocalAddress, cfg.SubnetMask)
	if err != nil {
		return nil, err
	}

	sendConn, err := cfg.Listen(ctx, netip.AddrPortFrom(cfg.LocalAddress, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: open send socket: %w", ErrTransport, err)
	}
	recvConn, err := cfg.Listen(ctx, netip.AddrPortFrom(cfg.BindAddress, cfg.Port))
	if err != nil {
		sendConn.Close()
		return nil, fmt.Errorf("%w: open receive socket: %w", ErrTransport, err)
	}

	c := &Client{
		cfg:       cfg,
		log:       cfg.Logger,
		start:     time.Now(),
		broadcast: broadcast,
		resolver:  newResolver(broadcast, cfg.Port),
		pool:      newBufferPool(cfg.SendBufferSize),
		stats:     newCounters(),
		sendConn:  sendConn,
		recvConn:  recvConn,
		priority:  make(chan sendItem, cfg.QueueSize),
		normal:    make(chan sendItem, cfg.QueueSize),
		subs:      make(map[*subscriber]struct{}),
		errs:      make(chan error, errorBufferSize),
		done:      make(chan struct{}),
	}
	c.sizeBuffers(sendConn, recvConn)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(c.ctx)
	stopRead := context.AfterFunc(gctx, func() {
		if err := c.recvConn.SetReadDeadline(aLongTimeAgo); err != nil {
			c.log.Debugf("failed to interrupt receive: %v", err)
		}
	})

	g.Go(func() error { return c.sendLoop(gctx) })
	g.Go(func() error { return c.receiveLoop(gctx) })

	go func() {
		err := g.Wait()
		stopRead()
		c.cancel()
		c.drainQueues()
		if cerr := c.recvConn.Close(); cerr != nil {
			c.log.Debugf("failed to close receive socket: %v", cerr)
		}
		if cerr := c.sendConn.Close(); cerr != nil {
			c.log.Debugf("failed to close send socket: %v", cerr)
		}
		if err != nil {
			c.log.Errorf("kinet client stopped: %v", err)
		}
		c.err = err
		close(c.errs)
		close(c.done)
	}()

	c.log.Infof("kinet client on %v (receive %v, broadcast %v)",
		sendConn.LocalAddr(), recvConn.LocalAddr(), c.resolver.broadcast)
	return c, nil
}

func (c *Client) sizeBuffers(sendConn, recvConn Conn) {
	if s, ok := recvConn.(bufferSizer); ok {
		if err := s.SetReadBuffer(c.cfg.ReceiveBufferSize); err != nil {
			c.log.Warnf("failed to set receive buffer to %d: %v", c.cfg.ReceiveBufferSize, err)
		}
	}
	if s, ok := sendConn.(bufferSizer); ok {
		if err := s.SetWriteBuffer(c.cfg.SendBufferSize); err != nil {
			c.log.Warnf("failed to set send buffer to %d: %v", c.cfg.SendBufferSize, err)
		}
	}
}

// Close stops both pipelines, waits for them and releases the sockets.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(c.cancel)
	<-c.done
	return nil
}

// Done is closed once the client has stopped, whether by Close or by a
// fatal error.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that stopped the client, or nil if it is
// running or was closed normally.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Errors delivers non-fatal transport errors. It is closed when the client
// stops. Errors nobody drains in time are logged and discarded.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Statistics returns the counters since the previous call and resets them.
func (c *Client) Statistics() Statistics {
	return c.stats.sample()
}

// LocalAddress is the address the client sends from.
func (c *Client) LocalAddress() netip.Addr {
	return c.cfg.LocalAddress
}

// BroadcastAddress is the subnet broadcast address used for broadcasts.
func (c *Client) BroadcastAddress() netip.Addr {
	return c.broadcast
}

// Port is the KiNet port the client uses.
func (c *Client) Port() uint16 {
	return c.cfg.Port
}

// reportError delivers err on the error channel without blocking.
func (c *Client) reportError(err error) {
	select {
	case c.errs <- err:
	default:
		c.log.Warnf("error channel full, discarding: %v", err)
	}
}

// fatal wraps err as a fatal cause if it is one.
func fatal(err error) error {
	if isNetworkUnreachable(err) {
		return fmt.Errorf("%w: %w", ErrNetworkUnreachable, err)
	}
	return nil
}

func (c *Client) closed() bool {
	return c.ctx.Err() != nil
}
