package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// File names inside a certificates directory.
const (
	CAFile         = "ca.crt"
	CAKeyFile      = "ca.key"
	ServerCertFile = "server.crt"
	ServerKeyFile  = "server.key"
	ClientCertFile = "client.crt"
	ClientKeyFile  = "client.key"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 365 * 24 * time.Hour

// Role selects the extended key usage of a leaf certificate.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// KeyPair is a certificate with its private key.
type KeyPair struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// TLSCertificate returns the pair as a tls.Certificate.
func (kp *KeyPair) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{kp.Cert.Raw},
		PrivateKey:  kp.Key,
		Leaf:        kp.Cert,
	}
}

// GenerateKey creates a new P-256 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

func serialNumber() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
}

// GenerateCA creates a self-signed CA certificate.
func GenerateCA(commonName string, validity time.Duration) (*KeyPair, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Cert: c, Key: key}, nil
}

// Issue creates a leaf certificate signed by ca. Hosts may be DNS names
// or IP addresses and are placed in the subject alternative names.
func Issue(ca *KeyPair, role Role, commonName string, hosts []string, validity time.Duration) (*KeyPair, error) {
	if ca == nil {
		return nil, errors.New("CA is required")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", role, err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	switch role {
	case RoleServer:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	case RoleClient:
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	default:
		return nil, fmt.Errorf("unknown role %d", role)
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("create %s certificate: %w", role, err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Cert: c, Key: key}, nil
}

// DefaultHosts are the names placed in a generated server certificate.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// GenerateDirOptions configures GenerateDir.
type GenerateDirOptions struct {
	// Hosts for the server certificate; DefaultHosts when empty.
	Hosts []string

	// Validity of all generated certificates.
	Validity time.Duration

	// Overwrite replaces existing files.
	Overwrite bool
}

// GenerateDir writes a CA, a server pair and a client pair into dir.
func GenerateDir(dir string, opts GenerateDirOptions) error {
	if len(opts.Hosts) == 0 {
		opts.Hosts = DefaultHosts
	}
	if !opts.Overwrite {
		for _, name := range []string{CAFile, ServerCertFile, ClientCertFile} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return fmt.Errorf("%s already exists in %s", name, dir)
			}
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFile, err)
	}

	ca, err := GenerateCA("filetransfer CA", opts.Validity)
	if err != nil {
		return err
	}
	server, err := Issue(ca, RoleServer, opts.Hosts[0], opts.Hosts, opts.Validity)
	if err != nil {
		return err
	}
	client, err := Issue(ca, RoleClient, "filetransfer client", nil, opts.Validity)
	if err != nil {
		return err
	}

	pairs := []struct {
		kp        *KeyPair
		cert, key string
	}{
		{ca, CAFile, CAKeyFile},
		{server, ServerCertFile, ServerKeyFile},
		{client, ClientCertFile, ClientKeyFile},
	}
	for _, p := range pairs {
		if err := WriteCertFile(filepath.Join(dir, p.cert), p.kp.Cert); err != nil {
			return err
		}
		if err := WriteKeyFile(filepath.Join(dir, p.key), p.kp.Key); err != nil {
			return err
		}
	}
	return nil
}

// LoadCertPool reads a PEM bundle of CA certificates.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidPEM, path)
	}
	return pool, nil
}
