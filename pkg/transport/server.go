package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/filetransfer-tool/filetransfer-go/pkg/connection"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// DefaultHandshakeTimeout bounds the TLS handshake of a new connection.
const DefaultHandshakeTimeout = 10 * time.Second

// acceptBackoff spaces out retries after consecutive Accept errors such as
// EMFILE.
var acceptBackoff = connection.Backoff{
	Initial:    5 * time.Millisecond,
	Max:        time.Second,
	Multiplier: 2,
}

// Handler serves one connection. ServeStream returns when the stream is
// finished; the server then closes the connection.
type Handler interface {
	ServeStream(ctx context.Context, s Stream)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s Stream)

// ServeStream calls f(ctx, s).
func (f HandlerFunc) ServeStream(ctx context.Context, s Stream) { f(ctx, s) }

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener to accept connections from (see Listen).
	Listener *Listener

	// Handler serves each connection.
	Handler Handler

	// MaxMessageSize is the maximum message size (default: 8 MiB).
	MaxMessageSize uint32

	// HandshakeTimeout bounds the TLS handshake in mtls mode.
	HandshakeTimeout time.Duration

	// Logger for transfer event logging (optional).
	Logger log.Logger

	// OnError is called when a connection-level error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts connections and hands each one to the Handler in its own
// goroutine.
type Server struct {
	config   ServerConfig
	listener *Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Listener == nil {
		return nil, fmt.Errorf("listener is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}

	return &Server{
		config:   config,
		listener: config.Listener,
		conns:    make(map[*ServerConn]struct{}),
	}, nil
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Serve starts the server and blocks until ctx is done, then stops it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop stops the server, closes the listener and all connections, and
// waits for their handlers to return.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	err := s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	failures := 0
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			s.reportError(nil, fmt.Errorf("accept error: %w", err))
			select {
			case <-time.After(acceptBackoff.Base(failures)):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		failures = 0

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) reportError(conn *ServerConn, err error) {
	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	remote := remoteString(conn)

	var tlsState *tls.ConnectionState
	if tlsConf := s.listener.TLSConfig; tlsConf != nil {
		tlsConn := tls.Server(conn, tlsConf)
		hsCtx, cancel := context.WithTimeout(s.ctx, s.config.HandshakeTimeout)
		err := tlsConn.HandshakeContext(hsCtx)
		cancel()
		if err != nil {
			conn.Close()
			s.reportError(nil, fmt.Errorf("TLS handshake failed: %w", err))
			return
		}

		state := tlsConn.ConnectionState()
		if err := VerifyConnection(state); err != nil {
			tlsConn.Close()
			s.reportError(nil, err)
			return
		}
		if len(state.PeerCertificates) == 0 {
			tlsConn.Close()
			s.reportError(nil, fmt.Errorf("client certificate required but not provided"))
			return
		}
		tlsState = &state
		conn = tlsConn
	}

	connID := uuid.New().String()

	framer := NewFramer(conn, FrameOptions{
		MaxSize: s.config.MaxMessageSize,
		Logger:  s.config.Logger,
		ConnID:  connID,
	})

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sconn := &ServerConn{
		conn:     conn,
		framer:   framer,
		tlsState: tlsState,
		closeCh:  make(chan struct{}),
		remote:   remote,
		connID:   connID,
		ctx:      ctx,
	}

	// Closing the connection unblocks a handler waiting in Recv.
	stop := context.AfterFunc(ctx, func() { sconn.Close() })
	defer stop()

	s.logState(connID, remote, "", "CONNECTED", "")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	s.config.Handler.ServeStream(ctx, sconn)
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(connID, remote, "CONNECTED", "DISCONNECTED", "")
}

func (s *Server) logState(connID, remote, oldState, newState, reason string) {
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// remoteString returns a printable peer address. Unix socket peers are
// usually unnamed.
func remoteString(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "unix"
	}
	switch s := addr.String(); s {
	case "", "@", "<nil>":
		return "unix"
	default:
		return s
	}
}

// ServerConn is one accepted connection. It implements Stream.
type ServerConn struct {
	conn      net.Conn
	framer    *Framer
	tlsState  *tls.ConnectionState
	closeCh   chan struct{}
	closeOnce sync.Once
	remote    string
	connID    string
	ctx       context.Context

	writeMu sync.Mutex
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// RemoteAddr returns a printable peer address.
func (c *ServerConn) RemoteAddr() string {
	return c.remote
}

// TLSState returns the TLS connection state, or nil for non-TLS modes.
func (c *ServerConn) TLSState() *tls.ConnectionState {
	return c.tlsState
}

// Context is cancelled when the server stops.
func (c *ServerConn) Context() context.Context {
	return c.ctx
}

// Recv reads and decodes the next request. A frame that decodes but fails
// validation is returned together with an error wrapping ErrInvalidMessage
// so the caller can answer it; any other error ends the stream.
func (c *ServerConn) Recv() (*wire.Request, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		select {
		case <-c.closeCh:
			return nil, ErrConnectionClosed
		default:
		}
		return nil, err
	}
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return req, nil
}

// Send encodes and writes a response.
func (c *ServerConn) Send(resp *wire.Response) error {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
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

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
