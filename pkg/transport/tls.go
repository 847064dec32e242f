package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/filetransfer-tool/filetransfer-go/pkg/cert"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
)

// ErrMissingCertFile is wrapped for every certificate file that is absent.
var ErrMissingCertFile = errors.New("missing certificate file")

// TLSConfig holds the certificate material of one side of an mTLS
// connection.
type TLSConfig struct {
	// Certificate is the TLS certificate for this endpoint.
	Certificate tls.Certificate

	// RootCAs verifies server certificates (client side).
	RootCAs *x509.CertPool

	// ClientCAs verifies client certificates (server side).
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	ServerName string
}

// baseTLSConfig is shared by both sides: TLS 1.3 only, our ALPN protocol
// and no session resumption.
func baseTLSConfig(pair tls.Certificate) *tls.Config {
	return &tls.Config{
		MinVersion:             tls.VersionTLS13,
		MaxVersion:             tls.VersionTLS13,
		Certificates:           []tls.Certificate{pair},
		NextProtos:             []string{version.ALPNProtocol()},
		CurvePreferences:       []tls.CurveID{tls.X25519, tls.CurveP256},
		SessionTicketsDisabled: true,
	}
}

// NewServerTLSConfig returns a server configuration that requires and
// verifies a client certificate signed by cfg.ClientCAs.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("TLSConfig is required")
	case len(cfg.Certificate.Certificate) == 0:
		return nil, errors.New("server certificate is required")
	case cfg.ClientCAs == nil:
		return nil, errors.New("client CA pool is required")
	}
	conf := baseTLSConfig(cfg.Certificate)
	conf.ClientAuth = tls.RequireAndVerifyClientCert
	conf.ClientCAs = cfg.ClientCAs
	return conf, nil
}

// NewClientTLSConfig returns a client configuration presenting
// cfg.Certificate and trusting servers signed by cfg.RootCAs.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("TLSConfig is required")
	case len(cfg.Certificate.Certificate) == 0:
		return nil, errors.New("client certificate is required")
	case cfg.RootCAs == nil:
		return nil, errors.New("root CA pool is required")
	}
	conf := baseTLSConfig(cfg.Certificate)
	conf.RootCAs = cfg.RootCAs
	conf.ServerName = cfg.ServerName
	return conf, nil
}

// checkFiles returns an aggregated error naming every missing file.
func checkFiles(dir string, names ...string) error {
	var result *multierror.Error
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrMissingCertFile, path))
		}
	}
	return result.ErrorOrNil()
}

// loadTLSMaterial reads a key pair and a CA pool from certsDir.
func loadTLSMaterial(certsDir, certFile, keyFile string) (tls.Certificate, *x509.CertPool, error) {
	if err := checkFiles(certsDir, certFile, keyFile, cert.CAFile); err != nil {
		return tls.Certificate{}, nil, err
	}
	pair, err := tls.LoadX509KeyPair(filepath.Join(certsDir, certFile), filepath.Join(certsDir, keyFile))
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("load key pair: %w", err)
	}
	pool, err := cert.LoadCertPool(filepath.Join(certsDir, cert.CAFile))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	return pair, pool, nil
}

// LoadServerTLSConfig builds the server configuration from server.crt,
// server.key and ca.crt in certsDir. All missing files are reported
// together.
func LoadServerTLSConfig(certsDir string) (*tls.Config, error) {
	pair, pool, err := loadTLSMaterial(certsDir, cert.ServerCertFile, cert.ServerKeyFile)
	if err != nil {
		return nil, err
	}
	return NewServerTLSConfig(&TLSConfig{Certificate: pair, ClientCAs: pool})
}

// LoadClientTLSConfig builds a client configuration from client.crt,
// client.key and ca.crt in certsDir.
func LoadClientTLSConfig(certsDir, serverName string) (*tls.Config, error) {
	pair, pool, err := loadTLSMaterial(certsDir, cert.ClientCertFile, cert.ClientKeyFile)
	if err != nil {
		return nil, err
	}
	return NewClientTLSConfig(&TLSConfig{Certificate: pair, RootCAs: pool, ServerName: serverName})
}

// VerifyConnection checks the negotiated parameters after a handshake.
func VerifyConnection(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("negotiated TLS version %#04x, want TLS 1.3", state.Version)
	}
	if want := version.ALPNProtocol(); state.NegotiatedProtocol != want {
		return fmt.Errorf("negotiated ALPN protocol %q, want %q", state.NegotiatedProtocol, want)
	}
	return nil
}
