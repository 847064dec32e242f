// Package discovery advertises and finds file-transfer servers via
// mDNS/DNS-SD.
//
// Servers listening on TCP (insecure or mtls transport) register the
// service type _filetransfer._tcp in the local domain. The instance name
// defaults to filetransfer-<hostname>. TXT records:
//
//	version=<server version>
//	transport=<insecure|mtls>
//
// Servers on Unix domain sockets are never advertised.
package discovery
