package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

// ErrSocketExists is returned when a socket file is already present.
// Another server instance may be running with the same name.
var ErrSocketExists = errors.New("socket file already exists")

// Listener is a bound server endpoint. For mtls the TLS handshake is not
// performed by Accept but by the Server, per connection.
type Listener struct {
	net.Listener

	// Endpoint the listener was created for.
	Endpoint *Endpoint

	// TLSConfig is set in mtls mode.
	TLSConfig *tls.Config

	// SocketPath is set in uds mode.
	SocketPath string
}

// Listen binds the endpoint for application app.
func Listen(app string, ep *Endpoint, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch ep.Mode {
	case ModeInsecure:
		logger.Warn("Starting server with an insecure connection. Traffic is not encrypted and clients are not authenticated.",
			"address", ep.Address())
		ln, err := net.Listen("tcp", ep.Address())
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
		return &Listener{Listener: ln, Endpoint: ep}, nil

	case ModeUDS:
		if err := os.MkdirAll(ep.UDSDir, 0o700); err != nil {
			return nil, fmt.Errorf("create socket directory: %w", err)
		}
		path := ep.SocketPath(app)
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrSocketExists, path)
		}
		ln, err := net.Listen("unix", path)
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
		return &Listener{Listener: ln, Endpoint: ep, SocketPath: path}, nil

	case ModeMTLS:
		tlsConf, err := LoadServerTLSConfig(ep.CertsDir)
		if err != nil {
			return nil, fmt.Errorf("mtls: %w", err)
		}
		ln, err := net.Listen("tcp", ep.Address())
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
		return &Listener{Listener: ln, Endpoint: ep, TLSConfig: tlsConf}, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidMode, ep.Mode)
	}
}

// Close closes the listener and removes the socket file in uds mode.
func (l *Listener) Close() error {
	err := l.Listener.Close()
	if l.SocketPath != "" {
		if rmErr := os.Remove(l.SocketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}

// Describe returns a human-readable location, e.g. for startup logs.
func (l *Listener) Describe() string {
	if l.SocketPath != "" {
		return "unix://" + l.SocketPath
	}
	return string(l.Endpoint.Mode) + "://" + l.Addr().String()
}
