package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// ErrUnexpectedResponse is returned when the server answers with a message
// that does not fit the running operation.
var ErrUnexpectedResponse = errors.New("unexpected response")

// Options configures Dial.
type Options struct {
	// App is the server application name (default: transport.DefaultApp).
	App string

	// Dial configures the transport connection.
	Dial transport.DialOptions

	// MaxAttempts bounds connection attempts; 0 means a single attempt.
	MaxAttempts int

	// SkipHello disables the version handshake after connecting.
	SkipHello bool

	// Logger for operational messages (default: slog.Default()).
	Logger *slog.Logger
}

// Client runs file-transfer operations over one connection. Operations are
// serialized; a Client is safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	conn   transport.ClientConnection
	nextID uint32
	logger *slog.Logger

	serverVersion string
}

// New wraps an established connection.
func New(conn transport.ClientConnection, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, logger: logger}
}

// Dial connects to the server at ep and, unless disabled, exchanges
// versions with it.
func Dial(ctx context.Context, ep *transport.Endpoint, opts Options) (*Client, error) {
	app := opts.App
	if app == "" {
		app = transport.DefaultApp
	}

	var (
		conn *transport.ClientConn
		err  error
	)
	if opts.MaxAttempts > 1 {
		conn, err = transport.DialWithRetry(ctx, app, ep, opts.Dial, opts.MaxAttempts)
	} else {
		conn, err = transport.Dial(ctx, app, ep, opts.Dial)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", ep.Target(app), err)
	}

	c := New(conn, opts.Logger)
	if !opts.SkipHello {
		if _, err := c.Hello(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ServerVersion returns the version reported by the last Hello.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion
}

// Hello announces the client version and returns the server's.
func (c *Client) Hello(ctx context.Context) (string, error) {
	var serverVersion string
	err := c.run(ctx, func(op *operation) error {
		resp, err := op.call(&wire.Request{Operation: wire.OpHello, Version: version.Current})
		if err != nil {
			return err
		}
		if err := version.CheckPeer(resp.Version); err != nil {
			return fmt.Errorf("server version: %w", err)
		}
		serverVersion = resp.Version
		return nil
	})
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.serverVersion = serverVersion
	c.mu.Unlock()
	c.logger.Debug("connected", "serverVersion", serverVersion)
	return serverVersion, nil
}

// GetFileInfo returns the description of a remote file. exists is false
// when the file does not exist.
func (c *Client) GetFileInfo(ctx context.Context, name string, computeSHA1 bool) (info *wire.FileInfo, exists bool, err error) {
	err = c.run(ctx, func(op *operation) error {
		resp, err := op.call(&wire.Request{
			Operation:   wire.OpGetFileInfo,
			Filename:    name,
			ComputeSHA1: computeSHA1,
		})
		if err != nil {
			return err
		}
		if resp.Exists && resp.FileInfo == nil {
			return fmt.Errorf("%w: file info missing", ErrUnexpectedResponse)
		}
		info, exists = resp.FileInfo, resp.Exists
		return nil
	})
	return info, exists, err
}

// DeleteFile removes a remote file.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	return c.run(ctx, func(op *operation) error {
		_, err := op.call(&wire.Request{Operation: wire.OpDeleteFile, Filename: name})
		return err
	})
}

// operation is one RPC in progress: all its frames share id.
type operation struct {
	conn transport.ClientConnection
	id   uint32
}

// run executes fn as one operation with a fresh MessageID. Cancelling ctx
// closes the connection.
func (c *Client) run(ctx context.Context, fn func(op *operation) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	c.nextID++
	if c.nextID == wire.ReservedMessageID {
		c.nextID++
	}
	op := &operation{conn: c.conn, id: c.nextID}

	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	err := fn(op)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// send writes one frame of the operation.
func (op *operation) send(req *wire.Request) error {
	req.MessageID = op.id
	if err := op.conn.Send(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Operation, err)
	}
	return nil
}

// recv reads the next response of the operation. Failure statuses are
// returned as *filetransfer.Error.
func (op *operation) recv() (*wire.Response, error) {
	resp, err := op.conn.Recv()
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if resp.MessageID != op.id && resp.MessageID != wire.ReservedMessageID {
		return nil, fmt.Errorf("%w: message id %d, expected %d", ErrUnexpectedResponse, resp.MessageID, op.id)
	}
	if err := filetransfer.ErrorFromResponse(resp); err != nil {
		return nil, err
	}
	if resp.MessageID == wire.ReservedMessageID {
		return nil, fmt.Errorf("%w: message id 0", ErrUnexpectedResponse)
	}
	return resp, nil
}

// call sends req and reads one response.
func (op *operation) call(req *wire.Request) (*wire.Response, error) {
	if err := op.send(req); err != nil {
		return nil, err
	}
	return op.recv()
}

// progress reads the progress state of resp.
func progress(resp *wire.Response) (int32, error) {
	if resp.Progress == nil {
		return 0, fmt.Errorf("%w: progress missing", ErrUnexpectedResponse)
	}
	return resp.Progress.State, nil
}
