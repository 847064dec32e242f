package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// Advertiser announces a file-transfer server via mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates a new mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// Advertise starts advertising info, replacing any earlier advertisement.
// Unix-domain-socket servers are not reachable over the network and
// return ErrNotAdvertisable.
func (a *Advertiser) Advertise(info *ServerInfo) error {
	if info.Transport == "uds" {
		return ErrNotAdvertisable
	}
	if info.Port <= 0 {
		return fmt.Errorf("invalid port %d", info.Port)
	}

	instance := info.Instance
	if instance == "" {
		instance = DefaultInstanceName()
		if len(instance) > MaxInstanceNameLen {
			instance = instance[:MaxInstanceNameLen]
		}
	}
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		info.Port,
		info.TXT(),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// DefaultInstanceName returns "filetransfer-<hostname>".
func DefaultInstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	name := "filetransfer-" + host
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}
