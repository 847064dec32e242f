package discovery

import (
	"errors"
	"time"
)

// Service type constants.
const (
	// ServiceType is the DNS-SD service type of file-transfer servers.
	ServiceType = "_filetransfer._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record keys.
const (
	// TXTKeyVersion carries the server version.
	TXTKeyVersion = "version"

	// TXTKeyTransport carries the transport mode (insecure or mtls).
	TXTKeyTransport = "transport"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 3 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertisable     = errors.New("transport mode cannot be advertised")
)

// ServerInfo describes a server to advertise.
type ServerInfo struct {
	// Instance is the DNS-SD instance name (default: "filetransfer-<hostname>").
	Instance string

	// Port the server listens on.
	Port int

	// Version of the server.
	Version string

	// Transport mode name.
	Transport string
}

// Server is a discovered file-transfer server.
type Server struct {
	Instance  string   `json:"instance"`
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Addresses []string `json:"addresses"`
	Version   string   `json:"version"`
	Transport string   `json:"transport"`
}
