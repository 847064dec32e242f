package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PEM errors.
var (
	ErrInvalidPEM     = errors.New("invalid PEM data")
	ErrReadFile       = errors.New("failed to read file")
	ErrWriteFile      = errors.New("failed to write file")
	ErrUnsupportedKey = errors.New("unsupported private key type")
)

// PEM block types.
const (
	blockCertificate = "CERTIFICATE"
	blockPKCS8Key    = "PRIVATE KEY"
	blockECKey       = "EC PRIVATE KEY"
)

// EncodeCertPEM returns cert as a CERTIFICATE block.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCertificate, Bytes: cert.Raw})
}

// DecodeCertPEM returns the first certificate in data. Blocks of other
// types before it are skipped.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	certs, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// DecodeCertsPEM returns every certificate of a PEM bundle in order.
func DecodeCertsPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != blockCertificate {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificate found", ErrInvalidPEM)
	}
	return certs, nil
}

// EncodeKeyPEM returns key as a PKCS#8 PRIVATE KEY block, the format
// openssl writes by default.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockPKCS8Key, Bytes: der}), nil
}

// DecodeKeyPEM parses an ECDSA key in PKCS#8 or SEC 1 ("EC PRIVATE KEY")
// form.
func DecodeKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	switch block.Type {
	case blockECKey:
		return x509.ParseECPrivateKey(block.Bytes)
	case blockPKCS8Key:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
		}
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return ec, nil
	default:
		return nil, fmt.Errorf("%w: block type %q", ErrUnsupportedKey, block.Type)
	}
}

// WriteCertFile writes cert to path (mode 0644).
func WriteCertFile(path string, cert *x509.Certificate) error {
	if err := os.WriteFile(path, EncodeCertPEM(cert), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFile, err)
	}
	return nil
}

// ReadCertFile reads the first certificate of the PEM file at path.
func ReadCertFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	return DecodeCertPEM(data)
}

// WriteKeyFile writes key to path, readable by the owner only.
func WriteKeyFile(path string, key *ecdsa.PrivateKey) error {
	data, err := EncodeKeyPEM(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFile, err)
	}
	return nil
}

// ReadKeyFile reads a private key from the PEM file at path.
func ReadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	return DecodeKeyPEM(data)
}
