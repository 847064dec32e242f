package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/connection"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// DialOptions configures Dial.
type DialOptions struct {
	// MaxMessageSize is the maximum message size (default: 8 MiB).
	MaxMessageSize uint32

	// ConnectTimeout bounds one connection attempt (default: 10s).
	ConnectTimeout time.Duration

	// Logger for transfer event logging (optional).
	Logger log.Logger
}

// Dial connects to the server of application app at ep.
func Dial(ctx context.Context, app string, ep *Endpoint, opts DialOptions) (*ClientConn, error) {
	if opts.MaxMessageSize == 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	// Apply timeout from options if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	var tlsConf *tls.Config
	if ep.Mode == ModeMTLS {
		var err error
		tlsConf, err = LoadClientTLSConfig(ep.CertsDir, ep.Host)
		if err != nil {
			return nil, connection.Permanent(fmt.Errorf("mtls: %w", err))
		}
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, ep.Network(), ep.Target(app))
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if tlsConf != nil {
		tlsConn := tls.Client(conn, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
			tlsConn.Close()
			return nil, connection.Permanent(fmt.Errorf("connection verification failed: %w", err))
		}
		conn = tlsConn
	}

	framer := NewFramer(conn, FrameOptions{
		MaxSize: opts.MaxMessageSize,
		Logger:  opts.Logger,
		ConnID:  "client",
	})

	return &ClientConn{
		conn:    conn,
		framer:  framer,
		closeCh: make(chan struct{}),
	}, nil
}

// DialWithRetry is Dial retried with exponential backoff until it
// succeeds, maxAttempts is reached (0 means unlimited) or ctx is done.
// Certificate problems are not retried.
func DialWithRetry(ctx context.Context, app string, ep *Endpoint, opts DialOptions, maxAttempts int) (*ClientConn, error) {
	var conn *ClientConn
	err := connection.Retry(ctx, connection.DefaultBackoff, maxAttempts, func(ctx context.Context, _ int) error {
		c, err := Dial(ctx, app, ep, opts)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ClientConn represents a connection from client to server.
type ClientConn struct {
	conn    net.Conn
	framer  *Framer
	closeCh chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
	readMu    sync.Mutex

	// ReadTimeout bounds each Recv when positive.
	ReadTimeout time.Duration
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send encodes and writes a request.
func (c *ClientConn) Send(req *wire.Request) error {
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	return c.framer.WriteFrame(data)
}

// Recv reads and decodes the next response.
func (c *ClientConn) Recv() (*wire.Response, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if c.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.DecodeResponse(data)
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
