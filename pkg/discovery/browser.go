package discovery

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// Browser finds file-transfer servers via mDNS.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a new mDNS browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for servers until ctx is done. Services are aggregated
// by instance name: addresses from multiple interfaces are combined into
// a single entry, and each server is emitted once. The returned channel is
// closed when ctx is done.
func (b *Browser) Browse(ctx context.Context) (<-chan *Server, error) {
	out := make(chan *Server)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.options()

	go func() {
		defer close(out)

		services := make(map[string]*Server)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToServer(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[svc.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Instance] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// Discover browses for timeout (BrowseTimeout when zero) and returns the
// servers found, sorted by instance name.
func (b *Browser) Discover(ctx context.Context, timeout time.Duration) ([]*Server, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var servers []*Server
	for svc := range found {
		servers = append(servers, svc)
	}
	sortServers(servers)
	return servers, nil
}

// options returns zeroconf client options based on config.
func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToServer converts a zeroconf entry to a Server. Entries without
// valid TXT records are ignored.
func entryToServer(entry *zeroconf.ServiceEntry) *Server {
	version, transport, err := parseTXT(entry.Text)
	if err != nil {
		return nil
	}
	return &Server{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: entryAddresses(entry),
		Version:   version,
		Transport: transport,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

func sortServers(servers []*Server) {
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Instance < servers[j].Instance
	})
}
