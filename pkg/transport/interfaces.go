package transport

import (
	"context"
	"errors"
	"net"

	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

var (
	// ErrConnectionClosed is returned by Send and Recv after Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidMessage wraps frames that are not a valid request. The
	// connection stays usable.
	ErrInvalidMessage = errors.New("invalid message")
)

// Stream is what a Handler sees of one accepted connection: requests in,
// responses out. Recv is called from one goroutine; Send may be called
// concurrently.
type Stream interface {
	ConnID() string
	RemoteAddr() string

	// Context is cancelled when the connection or the server shuts down.
	Context() context.Context

	// Recv returns the next request. A request that decodes but fails
	// validation comes back together with an ErrInvalidMessage error.
	Recv() (*wire.Request, error)
	Send(resp *wire.Response) error
}

// ClientConnection is the dialing side of one connection, as used by the
// client package. Tests substitute scripted implementations.
type ClientConnection interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Send(req *wire.Request) error
	Recv() (*wire.Response, error)
	Close() error
}

var (
	_ Stream           = (*ServerConn)(nil)
	_ ClientConnection = (*ClientConn)(nil)
)
